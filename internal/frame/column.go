package frame

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/tz"
)

// Column owns one contiguous storage block plus its logical type. For
// categorical columns the block holds integer codes and the dictionary is a
// read-only reference set at most once.
type Column struct {
	name  string
	dtype record.DType
	data  any
	n     int

	zone string
	loc  *time.Location

	dict   atomic.Pointer[Dictionary]
	sealed bool
}

// NewColumn wraps data as the storage of a column of dtype. The storage
// layout must match: int16/int32 codes for Category, int64 ticks for
// Datetime, []any for Object.
func NewColumn(name string, dtype record.DType, data any) (*Column, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: column %q: invalid type %s", record.ErrSchemaMismatch, name, dtype)
	}
	got := storageKind(data)
	ok := false
	switch dtype.Kind {
	case record.Category:
		ok = got == record.Int16 || got == record.Int32
	case record.Datetime:
		ok = got == record.Int64
	default:
		ok = got == dtype.Kind
	}
	if !ok {
		return nil, fmt.Errorf("%w: column %q: %T cannot store %s", record.ErrSchemaMismatch, name, data, dtype)
	}
	return &Column{name: name, dtype: dtype, data: data, n: lenOf(data)}, nil
}

// NewCategorical wraps a code block and binds dict (which may be nil for
// columns whose dictionary arrives later).
func NewCategorical(name string, codes any, dict *Dictionary) (*Column, error) {
	c, err := NewColumn(name, record.DType{Kind: record.Category}, codes)
	if err != nil {
		return nil, err
	}
	if dict != nil {
		if err := c.AttachDictionary(dict); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Column) Name() string        { return c.name }
func (c *Column) DType() record.DType { return c.dtype }
func (c *Column) Len() int            { return c.n }

// ViewType is the physical element type exposed by the column's view.
func (c *Column) ViewType() record.DType {
	if c.dtype.Kind == record.Category {
		return record.DType{Kind: storageKind(c.data)}
	}
	return c.dtype
}

// CodeWidth is 16 or 32 for categorical columns and 0 otherwise.
func (c *Column) CodeWidth() int {
	if c.dtype.Kind != record.Category {
		return 0
	}
	if storageKind(c.data) == record.Int32 {
		return 32
	}
	return 16
}

// View aliases the column storage.
func (c *Column) View() View {
	return View{name: c.name, dtype: c.ViewType(), data: c.data}
}

// BindZone attaches a timezone to a datetime column. Storage is untouched.
// It reports false, doing nothing, for non-datetime or sealed columns.
func (c *Column) BindZone(label string, loc *time.Location) bool {
	if c.sealed || c.dtype.Kind != record.Datetime {
		return false
	}
	c.zone, c.loc = label, loc
	return true
}

// Zone is the bound timezone label ("" when naive).
func (c *Column) Zone() string { return c.zone }

func (c *Column) Location() *time.Location { return c.loc }

// Dictionary returns the bound dictionary or nil.
func (c *Column) Dictionary() *Dictionary { return c.dict.Load() }

// AttachDictionary binds d to a categorical column. It succeeds at most once.
func (c *Column) AttachDictionary(d *Dictionary) error {
	if c.dtype.Kind != record.Category {
		return fmt.Errorf("%w: column %q is %s, not category", record.ErrSchemaMismatch, c.name, c.dtype)
	}
	if d == nil {
		return fmt.Errorf("%w: column %q: nil dictionary", record.ErrSchemaMismatch, c.name)
	}
	if !record.Fits(d.Len(), c.CodeWidth()) {
		return fmt.Errorf("%w: column %q: %d categories do not fit %d-bit codes",
			record.ErrSchemaMismatch, c.name, d.Len(), c.CodeWidth())
	}
	if !c.dict.CompareAndSwap(nil, d) {
		return fmt.Errorf("%w: column %q", ErrDictionaryBound, c.name)
	}
	return nil
}

// Code returns the raw categorical code at row i.
func (c *Column) Code(i int) int { return intAt(c.data, i) }

// Time returns the datetime at row i in the bound zone (UTC when naive).
func (c *Column) Time(i int) time.Time {
	ticks := c.data.([]int64)[i]
	return tz.Localize(ticks, c.dtype.Unit, c.loc)
}

// Value returns the logical value at row i. The bool is false for missing
// values: nil objects, out-of-range codes, and codes of a column whose
// dictionary has not been attached yet.
func (c *Column) Value(i int) (any, bool) {
	switch c.dtype.Kind {
	case record.Category:
		d := c.dict.Load()
		if d == nil {
			return nil, false
		}
		return d.Value(intAt(c.data, i))
	case record.Datetime:
		return c.Time(i), true
	case record.Object:
		v := c.data.([]any)[i]
		return v, v != nil
	default:
		return scalarAt(c.data, i), true
	}
}

// Values returns every logical value; missing values are nil.
func (c *Column) Values() []any {
	out := make([]any, c.n)
	for i := range out {
		out[i], _ = c.Value(i)
	}
	return out
}

func (c *Column) seal() { c.sealed = true }
