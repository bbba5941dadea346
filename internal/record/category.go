package record

import (
	"fmt"
	"math"
)

// CategorySpec binds categorical metadata to one column. The zero value
// means "unspecified".
type CategorySpec struct {
	hint   int
	values []any
	set    bool
}

// Hint declares the expected number of distinct values.
func Hint(n int) CategorySpec { return CategorySpec{hint: n, set: true} }

// Values declares the ordered, distinct category values.
func Values(vs ...any) CategorySpec {
	return CategorySpec{values: append(make([]any, 0, len(vs)), vs...), hint: len(vs), set: true}
}

func (c CategorySpec) IsSet() bool { return c.set }

// HasValues reports whether an explicit value list was given.
func (c CategorySpec) HasValues() bool { return c.values != nil }

// ValueList returns a copy of the explicit values (nil for hints).
func (c CategorySpec) ValueList() []any {
	if c.values == nil {
		return nil
	}
	return append(make([]any, 0, len(c.values)), c.values...)
}

// Cardinality is the declared or inferred number of distinct values.
func (c CategorySpec) Cardinality() int { return c.hint }

const (
	// MaxCodes16 is the largest cardinality addressable by int16 codes with
	// -1 kept as the missing sentinel.
	MaxCodes16 = math.MaxInt16
	MaxCodes32 = math.MaxInt32
)

// CodeWidth picks the narrowest code width (16 or 32 bits) for spec.
// An unspecified spec gets 16 bits.
func CodeWidth(spec CategorySpec) (int, error) {
	if !spec.IsSet() {
		return 16, nil
	}
	n := spec.Cardinality()
	switch {
	case n < 0:
		return 0, fmt.Errorf("%w: negative category hint %d", ErrSchemaMismatch, n)
	case n <= MaxCodes16:
		return 16, nil
	case n <= MaxCodes32:
		return 32, nil
	default:
		return 0, fmt.Errorf("%w: %d categories exceed 32-bit codes", ErrAllocation, n)
	}
}

// CodeKind maps a code width to its physical integer kind.
func CodeKind(width int) Kind {
	if width == 32 {
		return Int32
	}
	return Int16
}

// Fits reports whether n categories can be addressed by codes of width bits.
func Fits(n, width int) bool {
	if width == 32 {
		return n <= MaxCodes32
	}
	return n <= MaxCodes16
}
