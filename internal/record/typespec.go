package record

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// TypeSpec describes column types before resolution. The variants are
// Codes, Descriptors and Uniform.
type TypeSpec interface {
	resolve(names []string) ([]DType, error)
}

// Codes is the compact form: comma separated type codes, one per column,
// e.g. "i4,i8,f8,f8,O".
type Codes string

// Descriptors is the explicit form: one DType per column.
type Descriptors []DType

// Uniform is the homogeneous-table shorthand. Its single type is broadcast
// to every column name.
type Uniform DType

func (c Codes) resolve(names []string) ([]DType, error) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		if len(names) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: empty type codes for %d columns", ErrSchemaMismatch, len(names))
	}
	parts := SplitCodes(s)
	if len(parts) != len(names) {
		return nil, fmt.Errorf("%w: %d type codes for %d columns", ErrSchemaMismatch, len(parts), len(names))
	}

	out := make([]DType, len(parts))
	var errs error
	for i, p := range parts {
		dt, err := ParseCode(p)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("column %q: %w", names[i], err))
			continue
		}
		out[i] = dt
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func (d Descriptors) resolve(names []string) ([]DType, error) {
	if len(d) != len(names) {
		return nil, fmt.Errorf("%w: %d type descriptors for %d columns", ErrSchemaMismatch, len(d), len(names))
	}
	var errs error
	for i, dt := range d {
		if !dt.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("%w: column %q: invalid type %s", ErrSchemaMismatch, names[i], dt))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return append([]DType(nil), d...), nil
}

func (u Uniform) resolve(names []string) ([]DType, error) {
	dt := DType(u)
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: invalid type %s", ErrSchemaMismatch, dt)
	}
	out := make([]DType, len(names))
	for i := range out {
		out[i] = dt
	}
	return out, nil
}

// Resolve turns spec into exactly one DType per name and builds the schema.
func Resolve(spec TypeSpec, names []string) (Schema, error) {
	if spec == nil {
		return Schema{}, fmt.Errorf("%w: no types given", ErrSchemaMismatch)
	}
	types, err := spec.resolve(names)
	if err != nil {
		return Schema{}, err
	}
	return NewSchema(names, types)
}

// SplitCodes splits compact codes on commas that are not inside a unit
// bracket.
func SplitCodes(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

var simpleCodes = map[string]Kind{
	// numpy character codes
	"b": Int8, "h": Int16, "i": Int32, "l": Int64, "q": Int64,
	"B": Uint8, "H": Uint16, "I": Uint32, "L": Uint64, "Q": Uint64,
	"f": Float32, "d": Float64, "?": Bool, "O": Object,

	// sized codes
	"i1": Int8, "i2": Int16, "i4": Int32, "i8": Int64,
	"u1": Uint8, "u2": Uint16, "u4": Uint32, "u8": Uint64,
	"f4": Float32, "f8": Float64, "b1": Bool,

	// names
	"int8": Int8, "int16": Int16, "int32": Int32, "int64": Int64,
	"uint8": Uint8, "uint16": Uint16, "uint32": Uint32, "uint64": Uint64,
	"float32": Float32, "float64": Float64, "bool": Bool,
	"object": Object, "str": Object,
	"category": Category,
}

// ParseCode resolves a single compact type code.
func ParseCode(code string) (DType, error) {
	code = strings.TrimSpace(code)
	// byte order markers carry no meaning for in-memory buffers
	c := strings.TrimLeft(code, "<>=|")
	if k, ok := simpleCodes[c]; ok {
		return DType{Kind: k}, nil
	}

	for _, prefix := range []string{"datetime64", "M8"} {
		rest, ok := strings.CutPrefix(c, prefix)
		if !ok {
			continue
		}
		unit := ""
		if rest != "" {
			inner, ok := strings.CutPrefix(rest, "[")
			if !ok || !strings.HasSuffix(inner, "]") {
				return DType{}, fmt.Errorf("%w: malformed datetime code %q", ErrSchemaMismatch, code)
			}
			unit = strings.TrimSuffix(inner, "]")
		}
		u, err := ParseUnit(unit)
		if err != nil {
			return DType{}, err
		}
		return DatetimeOf(u), nil
	}

	return DType{}, fmt.Errorf("%w: unknown type code %q", ErrSchemaMismatch, code)
}
