package frame

import (
	"fmt"

	"github.com/tuannm99/novaframe/internal/record"
)

// View is a writable, non-owning alias over one column's raw storage. It is
// valid until the owning table is released. Each view should have a single
// writer; the table does not synchronize access.
type View struct {
	name  string
	dtype record.DType
	data  any
}

func (v View) Name() string { return v.name }

// DType is the physical element type: int16/int32 codes for categorical
// columns, datetime ticks for datetime columns.
func (v View) DType() record.DType { return v.dtype }

func (v View) Len() int { return lenOf(v.data) }

// Data returns the backing slice ([]int16, []int64, []any, ...).
func (v View) Data() any { return v.data }

// Slice returns the view's backing slice as []T.
func Slice[T any](v View) ([]T, error) {
	s, ok := v.data.([]T)
	if !ok {
		var z T
		return nil, fmt.Errorf("%w: view %q holds %T, not []%T", ErrViewType, v.name, v.data, z)
	}
	return s, nil
}

// MustSlice is Slice for callers that already checked the dtype.
func MustSlice[T any](v View) []T {
	s, err := Slice[T](v)
	if err != nil {
		panic(err)
	}
	return s
}

// Views maps column name to view.
type Views map[string]View

// Names returns the view names in no particular order.
func (vs Views) Names() []string {
	out := make([]string, 0, len(vs))
	for n := range vs {
		out = append(out, n)
	}
	return out
}

func lenOf(data any) int {
	switch s := data.(type) {
	case []int8:
		return len(s)
	case []int16:
		return len(s)
	case []int32:
		return len(s)
	case []int64:
		return len(s)
	case []uint8:
		return len(s)
	case []uint16:
		return len(s)
	case []uint32:
		return len(s)
	case []uint64:
		return len(s)
	case []float32:
		return len(s)
	case []float64:
		return len(s)
	case []bool:
		return len(s)
	case []any:
		return len(s)
	default:
		return -1
	}
}

// storageKind reports the kind whose storage layout data has. Datetime and
// Int64 share []int64.
func storageKind(data any) record.Kind {
	switch data.(type) {
	case []int8:
		return record.Int8
	case []int16:
		return record.Int16
	case []int32:
		return record.Int32
	case []int64:
		return record.Int64
	case []uint8:
		return record.Uint8
	case []uint16:
		return record.Uint16
	case []uint32:
		return record.Uint32
	case []uint64:
		return record.Uint64
	case []float32:
		return record.Float32
	case []float64:
		return record.Float64
	case []bool:
		return record.Bool
	case []any:
		return record.Object
	default:
		return record.KindInvalid
	}
}

// intAt reads an integer code from an int16/int32 slice.
func intAt(data any, i int) int {
	switch s := data.(type) {
	case []int16:
		return int(s[i])
	case []int32:
		return int(s[i])
	default:
		return -1
	}
}

func scalarAt(data any, i int) any {
	switch s := data.(type) {
	case []int8:
		return s[i]
	case []int16:
		return s[i]
	case []int32:
		return s[i]
	case []int64:
		return s[i]
	case []uint8:
		return s[i]
	case []uint16:
		return s[i]
	case []uint32:
		return s[i]
	case []uint64:
		return s[i]
	case []float32:
		return s[i]
	case []float64:
		return s[i]
	case []bool:
		return s[i]
	case []any:
		return s[i]
	default:
		return nil
	}
}
