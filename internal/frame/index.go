package frame

import (
	"fmt"
	"time"

	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/tz"
)

// LevelSpec describes one index level. An empty Source asks for dedicated
// storage; otherwise Source names a data column whose storage the level
// reinterprets.
type LevelSpec struct {
	Name   string
	Type   record.DType
	Source string
}

// Level is one level of a (possibly multi-level) row index.
type Level struct {
	name   string
	dtype  record.DType
	data   any
	source string

	zone string
	loc  *time.Location
}

// NewLevel wraps dedicated storage as an index level.
func NewLevel(name string, dtype record.DType, data any) (*Level, error) {
	if err := checkLevelType(name, dtype); err != nil {
		return nil, err
	}
	want := dtype.Kind
	if want == record.Datetime {
		want = record.Int64
	}
	if got := storageKind(data); got != want {
		return nil, fmt.Errorf("%w: level %q: %T cannot store %s", ErrIndexSpec, name, data, dtype)
	}
	return &Level{name: name, dtype: dtype, data: data}, nil
}

// LevelFrom builds a level over src's storage without copying. Raw ticks are
// reinterpreted at dtype's unit, and a datetime level may also be built from
// an int64 column.
func LevelFrom(name string, dtype record.DType, src *Column) (*Level, error) {
	if err := checkLevelType(name, dtype); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: level %q: no source column", ErrIndexSpec, name)
	}
	phys := src.ViewType().Kind
	switch {
	case src.DType().Kind == record.Category:
		return nil, fmt.Errorf("%w: level %q: categorical source %q", ErrIndexSpec, name, src.Name())
	case dtype.Kind == record.Datetime && (phys == record.Int64 || phys == record.Datetime):
	case dtype.Kind == phys:
	case dtype.Kind == record.Int64 && phys == record.Datetime:
	default:
		return nil, fmt.Errorf("%w: level %q: cannot read %s column %q as %s",
			ErrIndexSpec, name, src.DType(), src.Name(), dtype)
	}
	lv := &Level{name: name, dtype: dtype, data: src.data, source: src.Name()}
	if dtype.Kind == record.Datetime && src.Zone() != "" {
		lv.zone, lv.loc = src.Zone(), src.Location()
	}
	return lv, nil
}

func checkLevelType(name string, dtype record.DType) error {
	switch {
	case !dtype.Valid():
		return fmt.Errorf("%w: level %q: unsupported type %s", ErrIndexSpec, name, dtype)
	case dtype.Kind == record.Category:
		return fmt.Errorf("%w: level %q: categorical index levels are not supported", ErrIndexSpec, name)
	}
	return nil
}

func (l *Level) Name() string        { return l.name }
func (l *Level) DType() record.DType { return l.dtype }
func (l *Level) Len() int            { return lenOf(l.data) }
func (l *Level) IsDatetime() bool    { return l.dtype.Kind == record.Datetime }

// Source is the data column the level aliases ("" for dedicated storage).
func (l *Level) Source() string { return l.source }

func (l *Level) Zone() string             { return l.zone }
func (l *Level) Location() *time.Location { return l.loc }

// BindZone attaches a timezone to a datetime level.
func (l *Level) BindZone(label string, loc *time.Location) bool {
	if l.dtype.Kind != record.Datetime {
		return false
	}
	l.zone, l.loc = label, loc
	return true
}

// View exposes dedicated level storage. Levels aliasing a data column have
// no view of their own; populate them through the column's view.
func (l *Level) View() (View, bool) {
	if l.source != "" {
		return View{}, false
	}
	return View{name: l.name, dtype: l.dtype, data: l.data}, true
}

func (l *Level) Time(i int) time.Time {
	return tz.Localize(l.data.([]int64)[i], l.dtype.Unit, l.loc)
}

func (l *Level) Value(i int) (any, bool) {
	if l.IsDatetime() {
		return l.Time(i), true
	}
	v := scalarAt(l.data, i)
	if l.dtype.Kind == record.Object {
		return v, v != nil
	}
	return v, true
}

// Index is the table's row index. With no levels it is the implicit range
// 0..n-1.
type Index struct {
	levels []*Level
	n      int
}

// NewIndex composes levels in order. All levels must have n rows.
func NewIndex(n int, levels ...*Level) (*Index, error) {
	seen := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		if l.Len() != n {
			return nil, fmt.Errorf("%w: index level %q has %d rows, table has %d",
				ErrTableConstruction, l.Name(), l.Len(), n)
		}
		if _, dup := seen[l.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate index level %q", ErrIndexSpec, l.Name())
		}
		seen[l.Name()] = struct{}{}
	}
	return &Index{levels: levels, n: n}, nil
}

// RangeIndex is the default index over n rows.
func RangeIndex(n int) *Index { return &Index{n: n} }

func (ix *Index) Len() int           { return ix.n }
func (ix *Index) NumLevels() int     { return len(ix.levels) }
func (ix *Index) IsRange() bool      { return len(ix.levels) == 0 }
func (ix *Index) IsMulti() bool      { return len(ix.levels) > 1 }
func (ix *Index) Level(i int) *Level { return ix.levels[i] }

func (ix *Index) Levels() []*Level { return append([]*Level(nil), ix.levels...) }

// IsDatetime reports a single point-in-time level.
func (ix *Index) IsDatetime() bool {
	return len(ix.levels) == 1 && ix.levels[0].IsDatetime()
}

// Zone is the zone of a single datetime level.
func (ix *Index) Zone() string {
	if !ix.IsDatetime() {
		return ""
	}
	return ix.levels[0].Zone()
}

func (ix *Index) Names() []string {
	out := make([]string, len(ix.levels))
	for i, l := range ix.levels {
		out[i] = l.Name()
	}
	return out
}

// LevelByName finds a level.
func (ix *Index) LevelByName(name string) (*Level, bool) {
	for _, l := range ix.levels {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// Key returns the index key of row i: one entry per level, or the row
// number for a range index.
func (ix *Index) Key(i int) []any {
	if ix.IsRange() {
		return []any{i}
	}
	out := make([]any, len(ix.levels))
	for j, l := range ix.levels {
		out[j], _ = l.Value(i)
	}
	return out
}
