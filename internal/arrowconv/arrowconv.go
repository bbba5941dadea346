// Package arrowconv exports allocated tables as Arrow records. Fixed-width
// storage is shared with the table, not copied; the table must outlive the
// record.
package arrowconv

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cast"

	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
)

// IndexMetadataKey lists the index level names in schema metadata.
const IndexMetadataKey = "novaframe.index"

// DataType maps a resolved type to its Arrow equivalent. Categorical columns
// need their code width, which only the column knows; see ToRecord.
func DataType(dt record.DType, zone string) (arrow.DataType, error) {
	switch dt.Kind {
	case record.Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case record.Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case record.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case record.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case record.Uint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case record.Uint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case record.Uint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case record.Uint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case record.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case record.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case record.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case record.Object:
		return arrow.BinaryTypes.String, nil
	case record.Datetime:
		return &arrow.TimestampType{Unit: timeUnit(dt.Unit), TimeZone: zone}, nil
	default:
		return nil, fmt.Errorf("arrowconv: no arrow type for %s", dt)
	}
}

func timeUnit(u record.Unit) arrow.TimeUnit {
	switch u {
	case record.Second:
		return arrow.Second
	case record.Milli:
		return arrow.Millisecond
	case record.Micro:
		return arrow.Microsecond
	default:
		return arrow.Nanosecond
	}
}

// ToRecord exports the data columns of tbl, followed by its dedicated index
// levels. mem backs the arrays that cannot alias table storage (booleans,
// strings, dictionaries, validity bitmaps). The caller releases the record.
func ToRecord(mem memory.Allocator, tbl *frame.Table) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	var (
		fields []arrow.Field
		arrs   []arrow.Array
	)
	release := func() {
		for _, a := range arrs {
			a.Release()
		}
	}

	for _, c := range tbl.Columns() {
		arr, err := columnArray(mem, c)
		if err != nil {
			release()
			return nil, fmt.Errorf("arrowconv: column %q: %w", c.Name(), err)
		}
		fields = append(fields, arrow.Field{Name: c.Name(), Type: arr.DataType(), Nullable: arr.NullN() > 0 || isNullable(c.DType())})
		arrs = append(arrs, arr)
	}

	ix := tbl.Index()
	for _, l := range ix.Levels() {
		v, ok := l.View()
		if !ok {
			continue
		}
		dt, err := DataType(l.DType(), l.Zone())
		if err != nil {
			release()
			return nil, fmt.Errorf("arrowconv: index level %q: %w", l.Name(), err)
		}
		arr, err := viewArray(mem, dt, v)
		if err != nil {
			release()
			return nil, fmt.Errorf("arrowconv: index level %q: %w", l.Name(), err)
		}
		fields = append(fields, arrow.Field{Name: l.Name(), Type: dt, Nullable: isNullable(l.DType())})
		arrs = append(arrs, arr)
	}

	var md *arrow.Metadata
	if !ix.IsRange() {
		m := arrow.NewMetadata([]string{IndexMetadataKey}, []string{strings.Join(ix.Names(), ",")})
		md = &m
	}
	schema := arrow.NewSchema(fields, md)

	rec := array.NewRecord(schema, arrs, int64(tbl.NumRows()))
	// the record holds its own references
	release()
	return rec, nil
}

func isNullable(dt record.DType) bool {
	return dt.Kind == record.Object || dt.Kind == record.Category
}

func columnArray(mem memory.Allocator, c *frame.Column) (arrow.Array, error) {
	if c.DType().Kind == record.Category {
		return dictionaryArray(mem, c)
	}
	dt, err := DataType(c.DType(), c.Zone())
	if err != nil {
		return nil, err
	}
	return viewArray(mem, dt, c.View())
}

// viewArray wraps fixed-width storage without copying; bools are bit-packed
// and objects are rendered as strings, so those two are built.
func viewArray(mem memory.Allocator, dt arrow.DataType, v frame.View) (arrow.Array, error) {
	switch s := v.Data().(type) {
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(s, nil)
		return b.NewArray(), nil
	case []any:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, x := range s {
			if x == nil {
				b.AppendNull()
				continue
			}
			str, err := cast.ToStringE(x)
			if err != nil {
				return nil, err
			}
			b.Append(str)
		}
		return b.NewArray(), nil
	}

	raw, err := fixedBytes(v.Data())
	if err != nil {
		return nil, err
	}
	return wrap(dt, v.Len(), raw, nil, 0), nil
}

func wrap(dt arrow.DataType, n int, raw, validity []byte, nulls int) arrow.Array {
	var vb *memory.Buffer
	if validity != nil {
		vb = memory.NewBufferBytes(validity)
	}
	data := array.NewData(dt, n, []*memory.Buffer{vb, memory.NewBufferBytes(raw)}, nil, nulls, 0)
	defer data.Release()
	return array.MakeFromData(data)
}

func fixedBytes(data any) ([]byte, error) {
	switch s := data.(type) {
	case []int8:
		return arrow.GetBytes(s), nil
	case []int16:
		return arrow.GetBytes(s), nil
	case []int32:
		return arrow.GetBytes(s), nil
	case []int64:
		return arrow.GetBytes(s), nil
	case []uint8:
		return arrow.GetBytes(s), nil
	case []uint16:
		return arrow.GetBytes(s), nil
	case []uint32:
		return arrow.GetBytes(s), nil
	case []uint64:
		return arrow.GetBytes(s), nil
	case []float32:
		return arrow.GetBytes(s), nil
	case []float64:
		return arrow.GetBytes(s), nil
	default:
		return nil, fmt.Errorf("unsupported storage %T", data)
	}
}

// dictionaryArray shares the code block as dictionary indices. Codes outside
// the dictionary, including the -1 sentinel and every code of a column with
// no dictionary yet, become nulls.
func dictionaryArray(mem memory.Allocator, c *frame.Column) (arrow.Array, error) {
	dict := c.Dictionary()
	var values []any
	if dict != nil {
		values = dict.Values()
	}
	dictArr, err := valuesArray(mem, values)
	if err != nil {
		return nil, err
	}
	defer dictArr.Release()

	n := c.Len()
	indexType := arrow.DataType(arrow.PrimitiveTypes.Int16)
	if c.CodeWidth() == 32 {
		indexType = arrow.PrimitiveTypes.Int32
	}

	validity := make([]byte, bitutil.CeilByte(n)/8)
	nulls := 0
	for i := 0; i < n; i++ {
		if code := c.Code(i); code >= 0 && code < len(values) {
			bitutil.SetBit(validity, i)
		} else {
			nulls++
		}
	}
	if nulls == 0 {
		validity = nil
	}

	raw, err := fixedBytes(c.View().Data())
	if err != nil {
		return nil, err
	}
	indices := wrap(indexType, n, raw, validity, nulls)
	defer indices.Release()

	typ := &arrow.DictionaryType{IndexType: indexType, ValueType: dictArr.DataType()}
	return array.NewDictionaryArray(typ, indices, dictArr), nil
}

// valuesArray builds the dictionary values. Homogeneous int64, float64 and
// bool dictionaries keep their type; anything else is rendered as strings.
func valuesArray(mem memory.Allocator, values []any) (arrow.Array, error) {
	switch kindOf(values) {
	case record.Int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, v := range values {
			b.Append(cast.ToInt64(v))
		}
		return b.NewArray(), nil
	case record.Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, v := range values {
			b.Append(v.(float64))
		}
		return b.NewArray(), nil
	case record.Bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, v := range values {
			b.Append(v.(bool))
		}
		return b.NewArray(), nil
	}

	b := array.NewStringBuilder(mem)
	defer b.Release()
	for _, v := range values {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		b.Append(s)
	}
	return b.NewArray(), nil
}

func kindOf(values []any) record.Kind {
	if len(values) == 0 {
		return record.Object
	}
	var k record.Kind
	for i, v := range values {
		var vk record.Kind
		switch v.(type) {
		case int, int8, int16, int32, int64:
			vk = record.Int64
		case float64:
			vk = record.Float64
		case bool:
			vk = record.Bool
		default:
			return record.Object
		}
		if i > 0 && vk != k {
			return record.Object
		}
		k = vk
	}
	return k
}
