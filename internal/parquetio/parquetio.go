// Package parquetio moves table contents to and from parquet files. The
// parquet-go library owns the format; this package only maps storage blocks
// to parquet columns and back.
package parquetio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/parquet-go/parquet-go"
	"github.com/sourcegraph/conc/pool"

	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
)

var (
	ErrShape      = errors.New("parquetio: file does not match table")
	ErrObjectType = errors.New("parquetio: object value is not a string")
)

const readBatch = 256

// target is one writable block: a data column or a dedicated index level.
type target struct {
	name  string
	dtype record.DType // physical type of the block
	data  any
}

func targets(tbl *frame.Table) []target {
	var out []target
	for _, c := range tbl.Columns() {
		v := c.View()
		out = append(out, target{name: c.Name(), dtype: v.DType(), data: v.Data()})
	}
	for _, l := range tbl.Index().Levels() {
		if v, ok := l.View(); ok {
			out = append(out, target{name: l.Name(), dtype: l.DType(), data: v.Data()})
		}
	}
	return out
}

// node maps a block to a parquet leaf. Categorical columns are written as
// their integer codes, objects as optional strings.
func node(dt record.DType) (parquet.Node, error) {
	switch dt.Kind {
	case record.Int8:
		return parquet.Int(8), nil
	case record.Int16:
		return parquet.Int(16), nil
	case record.Int32:
		return parquet.Int(32), nil
	case record.Int64:
		return parquet.Int(64), nil
	case record.Uint8:
		return parquet.Uint(8), nil
	case record.Uint16:
		return parquet.Uint(16), nil
	case record.Uint32:
		return parquet.Uint(32), nil
	case record.Uint64:
		return parquet.Uint(64), nil
	case record.Float32:
		return parquet.Leaf(parquet.FloatType), nil
	case record.Float64:
		return parquet.Leaf(parquet.DoubleType), nil
	case record.Bool:
		return parquet.Leaf(parquet.BooleanType), nil
	case record.Object:
		return parquet.Optional(parquet.String()), nil
	case record.Datetime:
		switch dt.Unit {
		case record.Milli:
			return parquet.Timestamp(parquet.Millisecond), nil
		case record.Micro:
			return parquet.Timestamp(parquet.Microsecond), nil
		case record.Nano:
			return parquet.Timestamp(parquet.Nanosecond), nil
		default:
			// parquet has no second-resolution timestamp
			return parquet.Int(64), nil
		}
	default:
		return nil, fmt.Errorf("parquetio: no parquet type for %s", dt)
	}
}

// Schema describes the parquet layout Write uses for tbl.
func Schema(tbl *frame.Table) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, t := range targets(tbl) {
		n, err := node(t.dtype)
		if err != nil {
			return nil, fmt.Errorf("%w (column %q)", err, t.name)
		}
		group[t.name] = n
	}
	return parquet.NewSchema("novaframe", group), nil
}

// Write encodes every row of tbl to w. Object columns are stored as
// optional strings; any other non-nil object value fails with ErrObjectType
// so that Fill always reads back what was written.
func Write(w io.Writer, tbl *frame.Table) error {
	schema, err := Schema(tbl)
	if err != nil {
		return err
	}
	ts := targets(tbl)
	cols := make([]int, len(ts))
	for i, t := range ts {
		leaf, _ := schema.Lookup(t.name)
		cols[i] = leaf.ColumnIndex
	}

	pw := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, 0, readBatch)
	flush := func() error {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("parquetio: write rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for i := 0; i < tbl.NumRows(); i++ {
		row := make(parquet.Row, len(ts))
		for j, t := range ts {
			v, err := encode(t, i)
			if err != nil {
				return fmt.Errorf("parquetio: column %q row %d: %w", t.name, i, err)
			}
			def := 0
			if t.dtype.Kind == record.Object && !v.IsNull() {
				def = 1
			}
			row[cols[j]] = v.Level(0, def, cols[j])
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if len(rows) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("parquetio: close: %w", err)
	}

	slog.Debug("parquetio: write", "rows", tbl.NumRows(), "cols", len(ts))
	return nil
}

func encode(t target, i int) (parquet.Value, error) {
	switch s := t.data.(type) {
	case []int8:
		return parquet.Int32Value(int32(s[i])), nil
	case []int16:
		return parquet.Int32Value(int32(s[i])), nil
	case []int32:
		return parquet.Int32Value(s[i]), nil
	case []int64:
		return parquet.Int64Value(s[i]), nil
	case []uint8:
		return parquet.Int32Value(int32(s[i])), nil
	case []uint16:
		return parquet.Int32Value(int32(s[i])), nil
	case []uint32:
		return parquet.Int32Value(int32(s[i])), nil
	case []uint64:
		return parquet.Int64Value(int64(s[i])), nil
	case []float32:
		return parquet.FloatValue(s[i]), nil
	case []float64:
		return parquet.DoubleValue(s[i]), nil
	case []bool:
		return parquet.BooleanValue(s[i]), nil
	case []any:
		if s[i] == nil {
			return parquet.NullValue(), nil
		}
		str, ok := s[i].(string)
		if !ok {
			return parquet.Value{}, fmt.Errorf("%w: %T", ErrObjectType, s[i])
		}
		return parquet.ByteArrayValue([]byte(str)), nil
	default:
		return parquet.Value{}, fmt.Errorf("unsupported storage %T", t.data)
	}
}

// Fill decodes the parquet file in r into the views of tbl, which must have
// the file's row count and a column for every view. Each block is written
// by exactly one goroutine.
func Fill(r io.ReaderAt, size int64, tbl *frame.Table) error {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return fmt.Errorf("parquetio: open: %w", err)
	}
	if f.NumRows() != int64(tbl.NumRows()) {
		return fmt.Errorf("%w: file has %d rows, table has %d", ErrShape, f.NumRows(), tbl.NumRows())
	}

	ts := targets(tbl)
	cols := make([]int, len(ts))
	for i, t := range ts {
		leaf, ok := f.Schema().Lookup(t.name)
		if !ok {
			return fmt.Errorf("%w: no column %q in file", ErrShape, t.name)
		}
		cols[i] = leaf.ColumnIndex
	}

	rows, err := readAll(parquet.NewReader(f), tbl.NumRows())
	if err != nil {
		return err
	}

	p := pool.New().WithErrors().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, t := range ts {
		col := cols[i]
		p.Go(func() error {
			for row, values := range rows {
				if err := decode(t, row, valueAt(values, col)); err != nil {
					return fmt.Errorf("parquetio: column %q row %d: %w", t.name, row, err)
				}
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	slog.Debug("parquetio: fill", "rows", len(rows), "cols", len(ts))
	return nil
}

func readAll(pr *parquet.Reader, n int) ([]parquet.Row, error) {
	defer pr.Close()

	out := make([]parquet.Row, 0, n)
	buf := make([]parquet.Row, readBatch)
	for {
		k, err := pr.ReadRows(buf)
		for _, row := range buf[:k] {
			out = append(out, row.Clone())
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parquetio: read rows: %w", err)
		}
		if k == 0 {
			return out, nil
		}
	}
}

// valueAt finds the value of leaf column col in a flat row.
func valueAt(row parquet.Row, col int) parquet.Value {
	if col < len(row) && row[col].Column() == col {
		return row[col]
	}
	for _, v := range row {
		if v.Column() == col {
			return v
		}
	}
	return parquet.NullValue()
}

func decode(t target, i int, v parquet.Value) error {
	switch s := t.data.(type) {
	case []int8:
		s[i] = int8(v.Int32())
	case []int16:
		s[i] = int16(v.Int32())
	case []int32:
		s[i] = v.Int32()
	case []int64:
		s[i] = v.Int64()
	case []uint8:
		s[i] = uint8(v.Int32())
	case []uint16:
		s[i] = uint16(v.Int32())
	case []uint32:
		s[i] = uint32(v.Int32())
	case []uint64:
		s[i] = uint64(v.Int64())
	case []float32:
		s[i] = v.Float()
	case []float64:
		s[i] = v.Double()
	case []bool:
		s[i] = v.Boolean()
	case []any:
		if v.IsNull() {
			s[i] = nil
		} else {
			s[i] = string(v.ByteArray())
		}
	default:
		return fmt.Errorf("unsupported storage %T", t.data)
	}
	return nil
}
