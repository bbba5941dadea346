package frame

import (
	"fmt"

	"github.com/tuannm99/novaframe/internal/record"
)

// Table owns its columns and index. It is built once by NewTable; afterwards
// only the contents of its storage change, through views.
type Table struct {
	n       int
	cols    []*Column
	byName  map[string]int
	index   *Index
	refs    *refCount
	release func()
}

type TableOption func(*Table)

// WithReleaser registers fn to run once on Release.
func WithReleaser(fn func()) TableOption {
	return func(t *Table) { t.release = fn }
}

// NewTable assembles columns and index into a table of n rows. A nil index
// means a range index.
func NewTable(n int, cols []*Column, index *Index, opts ...TableOption) (*Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative row count %d", ErrTableConstruction, n)
	}
	t := &Table{
		n:      n,
		cols:   append([]*Column(nil), cols...),
		byName: make(map[string]int, len(cols)),
		index:  index,
		refs:   newRefCount(),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("%w: nil column at %d", ErrTableConstruction, i)
		}
		if c.Len() != n {
			return nil, fmt.Errorf("%w: column %q has %d rows, table has %d",
				ErrTableConstruction, c.Name(), c.Len(), n)
		}
		if _, dup := t.byName[c.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrTableConstruction, c.Name())
		}
		t.byName[c.Name()] = i
	}
	if t.index == nil {
		t.index = RangeIndex(n)
	}
	if t.index.Len() != n {
		return nil, fmt.Errorf("%w: index has %d rows, table has %d", ErrTableConstruction, t.index.Len(), n)
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, c := range t.cols {
		c.seal()
	}
	return t, nil
}

func (t *Table) NumRows() int { return t.n }
func (t *Table) NumCols() int { return len(t.cols) }

// Shape is (rows, columns).
func (t *Table) Shape() (int, int) { return t.n, len(t.cols) }

func (t *Table) Index() *Index { return t.index }

func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name()
	}
	return out
}

func (t *Table) DTypes() []record.DType {
	out := make([]record.DType, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.DType()
	}
	return out
}

func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

func (t *Table) Columns() []*Column { return append([]*Column(nil), t.cols...) }

// Views returns one view per data column keyed by name.
func (t *Table) Views() Views {
	out := make(Views, len(t.cols))
	for _, c := range t.cols {
		out[c.Name()] = c.View()
	}
	return out
}

// IndexViews returns views over dedicated index level storage.
func (t *Table) IndexViews() Views {
	out := make(Views)
	for _, l := range t.index.levels {
		if v, ok := l.View(); ok {
			out[l.Name()] = v
		}
	}
	return out
}

// Value reads the logical value of column name at row i.
func (t *Table) Value(row int, name string) (any, bool) {
	c, ok := t.Column(name)
	if !ok || row < 0 || row >= t.n {
		return nil, false
	}
	return c.Value(row)
}

// Row returns the logical values of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j], _ = c.Value(i)
	}
	return out
}

// Retain adds a holder. Each Retain needs a matching Release.
func (t *Table) Retain() { t.refs.Inc() }

// Release drops a holder. The last Release returns the table's storage to
// its allocator; views and the table must not be used afterwards. Releases
// beyond the last are no-ops.
func (t *Table) Release() {
	if !t.refs.Dec() {
		return
	}
	if fn := t.release; fn != nil {
		t.release = nil
		fn()
	}
}
