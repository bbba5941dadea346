package alloc

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/tz"
)

// garbageAllocator hands out blocks full of 0xAB, like uninitialized memory.
type garbageAllocator struct {
	memory.Allocator
}

func (g garbageAllocator) Allocate(size int) []byte {
	b := g.Allocator.Allocate(size)
	for i := range b {
		b[i] = 0xAB
	}
	return b
}

var garbageTick = int64(binary.LittleEndian.Uint64(bytes.Repeat([]byte{0xAB}, 8)))

func newAllocator(t *testing.T, mem memory.Allocator, strategy tz.Strategy) *Allocator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mem = mem
	cfg.Strategy = strategy
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestAllocate_Shape(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	a := newAllocator(t, mem, tz.SafeFill)

	names := []string{"a", "b", "c", "d", "e"}
	want := []record.Kind{record.Int32, record.Int64, record.Float64, record.Float64, record.Object}

	for _, n := range []int{0, 1, 7, 1000} {
		tbl, views, err := a.Allocate(Request{Types: record.Codes("i4,i8,f8,f8,O"), Rows: n, Columns: names})
		require.NoError(t, err)

		rows, cols := tbl.Shape()
		require.Equal(t, n, rows)
		require.Equal(t, len(names), cols)
		require.Len(t, views, len(names))
		for i, dt := range tbl.DTypes() {
			require.Equal(t, want[i], dt.Kind, "column %s", names[i])
			require.Equal(t, n, views[names[i]].Len())
		}
		require.True(t, tbl.Index().IsRange())
		tbl.Release()
	}
}

func TestAllocate_UniformBroadcast(t *testing.T) {
	tbl, views, err := Allocate(Request{
		Types:   record.Uniform(record.DType{Kind: record.Float32}),
		Rows:    4,
		Columns: []string{"x", "y", "z"},
	})
	require.NoError(t, err)
	defer tbl.Release()

	require.Len(t, views, 3)
	for _, v := range views {
		require.Len(t, frame.MustSlice[float32](v), 4)
	}
}

func TestAllocate_CategoricalWidth(t *testing.T) {
	tbl, views, err := Allocate(Request{
		Types:   record.Codes("category,category,category"),
		Rows:    3,
		Columns: []string{"plain", "wide", "edge"},
		Categories: map[string]record.CategorySpec{
			"wide": record.Hint(1 << 20),
			"edge": record.Hint(record.MaxCodes16),
		},
	})
	require.NoError(t, err)
	defer tbl.Release()

	require.Equal(t, []int16{0, 0, 0}, frame.MustSlice[int16](views["plain"]))
	require.Equal(t, []int32{0, 0, 0}, frame.MustSlice[int32](views["wide"]))
	require.Equal(t, record.Int16, views["edge"].DType().Kind)

	col, ok := tbl.Column("wide")
	require.True(t, ok)
	require.Nil(t, col.Dictionary(), "hint-only columns wait for a dictionary")
}

func TestAllocate_CategoricalValues(t *testing.T) {
	tbl, views, err := Allocate(Request{
		Types:      record.Codes("category"),
		Rows:       2,
		Columns:    []string{"c"},
		Categories: map[string]record.CategorySpec{"c": record.Values("one", "two")},
	})
	require.NoError(t, err)
	defer tbl.Release()

	frame.MustSlice[int16](views["c"])[0] = 1

	col, _ := tbl.Column("c")
	require.Equal(t, []any{"two", "one"}, col.Values())
}

func TestAllocate_LateDictionary(t *testing.T) {
	tbl, views, err := Allocate(Request{
		Types:      record.Codes("category"),
		Rows:       2,
		Columns:    []string{"c"},
		Categories: map[string]record.CategorySpec{"c": record.Hint(3)},
	})
	require.NoError(t, err)
	defer tbl.Release()

	codes := frame.MustSlice[int16](views["c"])
	codes[0], codes[1] = 2, -1

	dict, err := frame.NewDictionary([]any{"a", "b", "c"})
	require.NoError(t, err)
	col, _ := tbl.Column("c")
	require.NoError(t, col.AttachDictionary(dict))
	require.ErrorIs(t, col.AttachDictionary(dict), frame.ErrDictionaryBound)

	require.Equal(t, []any{"c", nil}, col.Values())
}

func TestAllocate_Timezones(t *testing.T) {
	tbl, _, err := Allocate(Request{
		Types:   record.Codes("M8[ns],M8[ms],i8"),
		Rows:    2,
		Columns: []string{"east", "central", "n"},
		// zones on non-datetime or unknown columns are ignored, even bogus ones
		Timezones: map[string]string{
			"east":    "US/Eastern",
			"central": "US/Central",
			"n":       "Not/AZone",
			"missing": "UTC",
		},
	})
	require.NoError(t, err)
	defer tbl.Release()

	east, _ := tbl.Column("east")
	require.Equal(t, "US/Eastern", east.Zone())
	require.Equal(t, "US/Eastern", east.Time(0).Location().String())
	require.True(t, time.Unix(0, 0).Equal(east.Time(0)), "safe fill starts at the epoch")

	central, _ := tbl.Column("central")
	require.Equal(t, "US/Central", central.Zone())

	n, _ := tbl.Column("n")
	require.Empty(t, n.Zone())
}

// A full leap year of hourly ticks under a DST-observing zone covers both
// the spring gap and the autumn repeat. Binding and reading must not fail.
func TestAllocate_TimezoneHazard(t *testing.T) {
	const hours = 8784

	cet, err := time.LoadLocation("CET")
	require.NoError(t, err)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, strategy := range []tz.Strategy{tz.SafeFill, tz.Deferred} {
		t.Run(strategy.String(), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(garbageAllocator{memory.NewGoAllocator()})
			defer mem.AssertSize(t, 0)
			a := newAllocator(t, mem, strategy)

			tbl, views, err := a.Allocate(Request{
				Types:     record.Codes("M8[ns],M8[ns]"),
				Rows:      hours,
				Columns:   []string{"utc", "cet"},
				Timezones: map[string]string{"utc": "UTC", "cet": "CET"},
			})
			require.NoError(t, err)
			defer tbl.Release()

			ticks := frame.MustSlice[int64](views["cet"])
			switch strategy {
			case tz.SafeFill:
				require.Equal(t, tz.SafeTick, ticks[0])
				require.Equal(t, tz.SafeTick, ticks[hours-1])
			case tz.Deferred:
				require.Equal(t, garbageTick, ticks[0], "deferred leaves storage as allocated")
			}

			col, _ := tbl.Column("cet")
			ambiguous := 0
			for i := range ticks {
				at := start.Add(time.Duration(i) * time.Hour)
				ticks[i] = at.UnixNano()
				got := col.Time(i)
				require.True(t, at.Equal(got))
				if tz.Ambiguous(got, cet) {
					ambiguous++
				}
			}
			require.Positive(t, ambiguous, "the year crosses a DST transition")
		})
	}
}

func TestAllocate_DatetimeIndexFromColumn(t *testing.T) {
	tbl, views, err := Allocate(Request{
		Types:        record.Codes("i8,f8"),
		Rows:         3,
		Columns:      []string{"ts", "v"},
		Timezones:    map[string]string{"index": "UTC"},
		IndexTypes:   record.Codes("datetime64[ms]"),
		IndexNames:   []string{"timestamp"},
		IndexSources: map[string]string{"timestamp": "ts"},
	})
	require.NoError(t, err)
	defer tbl.Release()

	ix := tbl.Index()
	require.True(t, ix.IsDatetime())
	require.Equal(t, []string{"timestamp"}, ix.Names())
	require.Equal(t, "UTC", ix.Zone())
	require.Len(t, views, 2)
	require.Empty(t, tbl.IndexViews())

	want := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	frame.MustSlice[int64](views["ts"])[2] = want.UnixMilli()
	key := ix.Key(2)
	require.True(t, want.Equal(key[0].(time.Time)))
}

func TestAllocate_DedicatedIndexLevels(t *testing.T) {
	tbl, _, err := Allocate(Request{
		Types:      record.Codes("f8"),
		Rows:       2,
		Columns:    []string{"v"},
		IndexTypes: record.Codes("M8[s],i4"),
		Timezones:  map[string]string{"index": "Europe/Berlin"},
	})
	require.NoError(t, err)
	defer tbl.Release()

	ix := tbl.Index()
	require.True(t, ix.IsMulti())
	require.Equal(t, []string{"level_0", "level_1"}, ix.Names())
	require.Equal(t, "Europe/Berlin", ix.Level(0).Zone())

	views := tbl.IndexViews()
	require.Len(t, views, 2)
	frame.MustSlice[int32](views["level_1"])[1] = 9
	require.Equal(t, int32(9), ix.Key(1)[1])
}

func TestAllocate_SingleUnnamedLevel(t *testing.T) {
	tbl, _, err := Allocate(Request{
		Types:      record.Codes("f8"),
		Rows:       1,
		Columns:    []string{"v"},
		IndexTypes: record.Codes("M8[us]"),
	})
	require.NoError(t, err)
	defer tbl.Release()
	require.Equal(t, []string{"index"}, tbl.Index().Names())
}

func TestAllocate_Errors(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{
			name: "type count mismatch",
			req:  Request{Types: record.Codes("i4,i8"), Rows: 1, Columns: []string{"a"}},
			want: ErrSchemaMismatch,
		},
		{
			name: "negative rows",
			req:  Request{Types: record.Codes("i4"), Rows: -1, Columns: []string{"a"}},
			want: ErrAllocation,
		},
		{
			name: "object rows past heap limit",
			req:  Request{Types: record.Codes("O"), Rows: 1 << 58, Columns: []string{"o"}},
			want: ErrAllocation,
		},
		{
			name: "unknown zone",
			req: Request{
				Types: record.Codes("M8[ns]"), Rows: 1, Columns: []string{"t"},
				Timezones: map[string]string{"t": "Mars/Olympus"},
			},
			want: ErrSchemaMismatch,
		},
		{
			name: "negative hint",
			req: Request{
				Types: record.Codes("category"), Rows: 1, Columns: []string{"c"},
				Categories: map[string]record.CategorySpec{"c": record.Hint(-1)},
			},
			want: ErrSchemaMismatch,
		},
		{
			name: "unhashable category value",
			req: Request{
				Types: record.Codes("category"), Rows: 1, Columns: []string{"c"},
				Categories: map[string]record.CategorySpec{"c": record.Values([1]any{[]int{1}})},
			},
			want: ErrSchemaMismatch,
		},
		{
			name: "index source missing",
			req: Request{
				Types: record.Codes("i8"), Rows: 1, Columns: []string{"a"},
				IndexTypes: record.Codes("M8[ms]"), IndexNames: []string{"t"},
				IndexSources: map[string]string{"t": "nope"},
			},
			want: ErrIndexSpec,
		},
		{
			name: "index level collides with column",
			req: Request{
				Types: record.Codes("i8"), Rows: 1, Columns: []string{"a"},
				IndexTypes: record.Codes("i8"), IndexNames: []string{"a"},
			},
			want: ErrIndexSpec,
		},
		{
			name: "index names without types",
			req: Request{
				Types: record.Codes("i8"), Rows: 1, Columns: []string{"a"},
				IndexNames: []string{"t"},
			},
			want: ErrIndexSpec,
		},
		{
			name: "index type count mismatch",
			req: Request{
				Types: record.Codes("i8"), Rows: 1, Columns: []string{"a"},
				IndexTypes: record.Codes("i8,i8"), IndexNames: []string{"t"},
			},
			want: ErrIndexSpec,
		},
		{
			name: "unsupported unit",
			req: Request{
				Types: record.Codes("i8"), Rows: 1, Columns: []string{"a"},
				IndexTypes: record.Codes("M8[D]"), IndexNames: []string{"t"},
			},
			want: ErrIndexSpec,
		},
		{
			name: "source not reinterpretable",
			req: Request{
				Types: record.Codes("f8"), Rows: 1, Columns: []string{"a"},
				IndexTypes: record.Codes("M8[ms]"), IndexNames: []string{"t"},
				IndexSources: map[string]string{"t": "a"},
			},
			want: ErrIndexSpec,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			tbl, views, err := newAllocator(t, mem, tz.SafeFill).Allocate(tc.req)
			require.ErrorIs(t, err, tc.want)
			require.Nil(t, tbl)
			require.Nil(t, views)
		})
	}
}

func TestAllocate_BudgetReleasesPartialBlocks(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	cfg := DefaultConfig()
	cfg.Mem = mem
	cfg.MaxBytes = 1024
	a, err := New(cfg)
	require.NoError(t, err)

	// the first two columns fit, the third does not
	_, _, err = a.Allocate(Request{
		Types:   record.Codes("i8,i8,i8"),
		Rows:    50,
		Columns: []string{"a", "b", "c"},
	})
	require.ErrorIs(t, err, ErrAllocation)
}
