package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaframe/internal/record"
)

// newTestColumns builds three plain columns of n rows.
func newTestColumns(t *testing.T, n int) []*Column {
	t.Helper()

	id, err := NewColumn("id", record.DType{Kind: record.Int64}, make([]int64, n))
	require.NoError(t, err)
	score, err := NewColumn("score", record.DType{Kind: record.Float64}, make([]float64, n))
	require.NoError(t, err)
	name, err := NewColumn("name", record.DType{Kind: record.Object}, make([]any, n))
	require.NoError(t, err)

	return []*Column{id, score, name}
}

func TestNewTable_ShapeAndViews(t *testing.T) {
	const n = 10
	tbl, err := NewTable(n, newTestColumns(t, n), nil)
	require.NoError(t, err)

	rows, cols := tbl.Shape()
	require.Equal(t, n, rows)
	require.Equal(t, 3, cols)
	require.Equal(t, []string{"id", "score", "name"}, tbl.Names())
	require.True(t, tbl.Index().IsRange())
	require.Equal(t, []any{4}, tbl.Index().Key(4))

	views := tbl.Views()
	require.Len(t, views, 3)
	require.Empty(t, tbl.IndexViews())

	// writes through a view are visible through the column
	MustSlice[int64](views["id"])[3] = 42
	MustSlice[any](views["name"])[3] = "alice"
	v, ok := tbl.Value(3, "id")
	require.True(t, ok)
	require.Equal(t, int64(42), v)
	require.Equal(t, []any{int64(42), float64(0), "alice"}, tbl.Row(3))

	// object placeholders read as missing
	_, ok = tbl.Value(0, "name")
	require.False(t, ok)
	_, ok = tbl.Value(n, "id")
	require.False(t, ok)
}

func TestNewTable_RowCountMismatch(t *testing.T) {
	cols := newTestColumns(t, 5)
	short, err := NewColumn("short", record.DType{Kind: record.Int8}, make([]int8, 4))
	require.NoError(t, err)

	_, err = NewTable(5, append(cols, short), nil)
	require.ErrorIs(t, err, ErrTableConstruction)

	_, err = NewTable(5, cols, RangeIndex(6))
	require.ErrorIs(t, err, ErrTableConstruction)

	_, err = NewTable(-1, nil, nil)
	require.ErrorIs(t, err, ErrTableConstruction)
}

func TestNewTable_DuplicateColumn(t *testing.T) {
	cols := newTestColumns(t, 2)
	_, err := NewTable(2, append(cols, cols[0]), nil)
	require.ErrorIs(t, err, ErrTableConstruction)
}

func TestNewTable_Release(t *testing.T) {
	calls := 0
	tbl, err := NewTable(0, nil, nil, WithReleaser(func() { calls++ }))
	require.NoError(t, err)

	tbl.Retain()
	tbl.Release()
	require.Zero(t, calls, "still retained")

	tbl.Release()
	tbl.Release()
	require.Equal(t, 1, calls)
}

func TestNewTable_SealsColumns(t *testing.T) {
	ts, err := NewColumn("ts", record.DatetimeOf(record.Nano), make([]int64, 1))
	require.NoError(t, err)
	_, err = NewTable(1, []*Column{ts}, nil)
	require.NoError(t, err)

	require.False(t, ts.BindZone("UTC", time.UTC), "zones bind before construction only")
	require.Empty(t, ts.Zone())
}
