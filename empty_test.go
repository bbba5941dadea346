package novaframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	tbl, views, err := Empty(Codes("i4,i8,f8,f8,O"), 5, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	defer tbl.Release()

	rows, cols := tbl.Shape()
	require.Equal(t, 5, rows)
	require.Equal(t, 5, cols)
	require.Len(t, views, 5)

	a, err := Slice[int32](views["a"])
	require.NoError(t, err)
	a[4] = 7
	v, ok := tbl.Value(4, "a")
	require.True(t, ok)
	require.Equal(t, int32(7), v)

	_, err = Slice[int64](views["a"])
	require.ErrorIs(t, err, ErrViewType)
}

func TestEmpty_Options(t *testing.T) {
	cfg := Config{Strategy: Deferred}
	tbl, views, err := Empty(Codes("M8[ms],category"), 2, []string{"at", "c"},
		WithCategories(map[string]CategorySpec{"c": Values("one", "two")}),
		WithTimezones(map[string]string{"at": "US/Eastern"}),
		WithIndex(Codes("M8[ms]"), "timestamp"),
		WithIndexSource("timestamp", "at"),
		WithConfig(cfg),
	)
	require.NoError(t, err)
	defer tbl.Release()

	codes, err := Slice[int16](views["c"])
	require.NoError(t, err)
	codes[0] = 1
	c, _ := tbl.Column("c")
	require.Equal(t, []any{"two", "one"}, c.Values())

	ix := tbl.Index()
	require.True(t, ix.IsDatetime())
	require.Equal(t, "US/Eastern", ix.Zone())

	ticks, err := Slice[int64](views["at"])
	require.NoError(t, err)
	at := time.Date(2021, 3, 14, 7, 0, 0, 0, time.UTC)
	ticks[1] = at.UnixMilli()
	require.True(t, at.Equal(ix.Key(1)[0].(time.Time)))
}

func TestEmpty_Errors(t *testing.T) {
	_, _, err := Empty(Codes("i4"), 1, []string{"a", "b"})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, _, err = Empty(Codes("i4"), -1, []string{"a"})
	require.ErrorIs(t, err, ErrAllocation)

	_, _, err = Empty(Codes("i4"), 1, []string{"a"}, WithIndex(Codes("M8[ms]"), "t"), WithIndexSource("t", "zz"))
	require.ErrorIs(t, err, ErrIndexSpec)
}
