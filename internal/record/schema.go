package record

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaMismatch = errors.New("record: schema mismatch")
	ErrAllocation     = errors.New("record: allocation error")
)

// Kind is the closed set of logical column kinds.
type Kind uint8

const (
	KindInvalid Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	Object
	Datetime
	Category
)

func (k Kind) String() string {
	switch k {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case Object:
		return "object"
	case Datetime:
		return "datetime64"
	case Category:
		return "category"
	default:
		return "invalid"
	}
}

// IsInteger reports whether k is a signed or unsigned integer kind.
func (k Kind) IsInteger() bool { return k >= Int8 && k <= Uint64 }

// Width is the physical element size in bytes. Object and Category have no
// intrinsic width (category width comes from CodeWidth).
func (k Kind) Width() int {
	switch k {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Datetime:
		return 8
	default:
		return 0
	}
}

// DType is a resolved logical type. Unit is only set for Datetime.
type DType struct {
	Kind Kind
	Unit Unit
}

func (d DType) String() string {
	if d.Kind == Datetime {
		return fmt.Sprintf("datetime64[%s]", d.Unit)
	}
	return d.Kind.String()
}

func (d DType) IsDatetime() bool { return d.Kind == Datetime }

// DatetimeOf returns a datetime dtype at unit u.
func DatetimeOf(u Unit) DType { return DType{Kind: Datetime, Unit: u} }

func (d DType) Valid() bool {
	return d.Kind != KindInvalid && (d.Kind != Datetime || d.Unit.Valid())
}

type Column struct {
	Name string
	Type DType
}

type Schema struct {
	Cols []Column
}

func (s Schema) NumCols() int { return len(s.Cols) }

// Lookup returns the column called name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Cols))
	for i, c := range s.Cols {
		out[i] = c.Name
	}
	return out
}

// NewSchema zips names and types. Names must be unique.
func NewSchema(names []string, types []DType) (Schema, error) {
	if len(names) != len(types) {
		return Schema{}, fmt.Errorf("%w: %d types for %d columns", ErrSchemaMismatch, len(types), len(names))
	}
	seen := make(map[string]struct{}, len(names))
	cols := make([]Column, len(names))
	for i, n := range names {
		if _, dup := seen[n]; dup {
			return Schema{}, fmt.Errorf("%w: duplicate column name %q", ErrSchemaMismatch, n)
		}
		seen[n] = struct{}{}
		cols[i] = Column{Name: n, Type: types[i]}
	}
	return Schema{Cols: cols}, nil
}
