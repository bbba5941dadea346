package frame

import (
	"fmt"
	"reflect"

	"github.com/tuannm99/novaframe/internal/record"
)

// Dictionary is an ordered, immutable code -> value mapping for one
// categorical column.
type Dictionary struct {
	values []any
	pos    map[any]int
}

// NewDictionary builds a dictionary from distinct, comparable values.
// Position i in values becomes code i.
func NewDictionary(values []any) (*Dictionary, error) {
	d := &Dictionary{
		values: make([]any, len(values)),
		pos:    make(map[any]int, len(values)),
	}
	for i, v := range values {
		rt := reflect.TypeOf(v)
		if rt == nil || !rt.Comparable() {
			return nil, fmt.Errorf("%w: category value %v at %d is not comparable", record.ErrSchemaMismatch, v, i)
		}
		prev, dup, err := d.find(v)
		if err != nil {
			return nil, fmt.Errorf("%w: category value at %d: %v", record.ErrSchemaMismatch, i, err)
		}
		if dup {
			return nil, fmt.Errorf("%w: duplicate category value %v at %d and %d", record.ErrSchemaMismatch, v, prev, i)
		}
		d.pos[v] = i
		d.values[i] = v
	}
	return d, nil
}

func (d *Dictionary) Len() int { return len(d.values) }

// Value maps code to its value. Codes outside [0, Len) are missing.
func (d *Dictionary) Value(code int) (any, bool) {
	if code < 0 || code >= len(d.values) {
		return nil, false
	}
	return d.values[code], true
}

// Lookup is the inverse of Value.
func (d *Dictionary) Lookup(v any) (int, bool) {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return -1, false
	}
	code, ok, err := d.find(v)
	if err != nil || !ok {
		return -1, false
	}
	return code, true
}

// find looks v up in pos. A comparable static type such as [1]any can still
// hold an unhashable dynamic value, which makes the map access panic.
func (d *Dictionary) find(v any) (code int, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			code, ok, err = -1, false, fmt.Errorf("unhashable value %v: %v", v, r)
		}
	}()
	code, ok = d.pos[v]
	return code, ok, nil
}

// Values returns a copy of the ordered values.
func (d *Dictionary) Values() []any {
	return append(make([]any, 0, len(d.values)), d.values...)
}
