package alloc

import (
	"fmt"

	"github.com/tuannm99/novaframe/internal/buffer"
	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/tz"
)

// builder carries the state of one Allocate call. Every block it takes from
// buf is released by the caller if build fails.
type builder struct {
	cfg    Config
	n      int
	buf    *buffer.Allocator
	zones  map[string]boundZone
	blocks map[string]*buffer.Block
}

func (b *builder) build(schema record.Schema, cats map[string]record.CategorySpec, specs []frame.LevelSpec) (*frame.Table, error) {
	cols := make([]*frame.Column, 0, schema.NumCols())
	byName := make(map[string]*frame.Column, schema.NumCols())
	for _, c := range schema.Cols {
		col, err := b.column(c, cats[c.Name])
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		byName[c.Name] = col
	}

	var index *frame.Index
	if len(specs) > 0 {
		levels := make([]*frame.Level, 0, len(specs))
		for _, spec := range specs {
			lv, err := b.level(spec, byName)
			if err != nil {
				return nil, err
			}
			levels = append(levels, lv)
		}
		ix, err := frame.NewIndex(b.n, levels...)
		if err != nil {
			return nil, err
		}
		index = ix
	}

	return frame.NewTable(b.n, cols, index, frame.WithReleaser(b.buf.ReleaseAll))
}

func (b *builder) column(c record.Column, cat record.CategorySpec) (*frame.Column, error) {
	if c.Type.Kind == record.Category {
		return b.categorical(c.Name, cat)
	}

	blk, err := b.buf.Alloc(c.Type.Kind, b.n)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.Name, err)
	}
	b.blocks[c.Name] = blk

	col, err := frame.NewColumn(c.Name, c.Type, blk.Data())
	if err != nil {
		return nil, err
	}
	if z, ok := b.zones[c.Name]; ok {
		b.prepare(blk)
		col.BindZone(z.label, z.loc)
	}
	return col, nil
}

// categorical allocates zeroed codes at the width the cardinality needs and
// binds the dictionary when the values are known up front.
func (b *builder) categorical(name string, cat record.CategorySpec) (*frame.Column, error) {
	width, err := record.CodeWidth(cat)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	blk, err := b.buf.Alloc(record.CodeKind(width), b.n)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	blk.Zero()
	b.blocks[name] = blk

	var dict *frame.Dictionary
	if cat.HasValues() {
		dict, err = frame.NewDictionary(cat.ValueList())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
	}
	return frame.NewCategorical(name, blk.Data(), dict)
}

func (b *builder) level(spec frame.LevelSpec, cols map[string]*frame.Column) (*frame.Level, error) {
	var (
		lv  *frame.Level
		err error
	)
	if spec.Source != "" {
		src := cols[spec.Source]
		lv, err = frame.LevelFrom(spec.Name, spec.Type, src)
		if err != nil {
			return nil, err
		}
		if z, ok := b.levelZone(spec.Name); ok && lv.IsDatetime() {
			b.prepare(b.blocks[spec.Source])
			lv.BindZone(z.label, z.loc)
		}
		return lv, nil
	}

	kind := spec.Type.Kind
	if kind == record.Datetime {
		kind = record.Int64
	}
	blk, err := b.buf.Alloc(kind, b.n)
	if err != nil {
		return nil, fmt.Errorf("index level %q: %w", spec.Name, err)
	}
	lv, err = frame.NewLevel(spec.Name, spec.Type, blk.Data())
	if err != nil {
		return nil, err
	}
	if z, ok := b.levelZone(spec.Name); ok && lv.IsDatetime() {
		b.prepare(blk)
		lv.BindZone(z.label, z.loc)
	}
	return lv, nil
}

// levelZone looks a level's zone up by its own name first, then by the
// reserved index key.
func (b *builder) levelZone(name string) (boundZone, bool) {
	if z, ok := b.zones[name]; ok {
		return z, true
	}
	z, ok := b.zones[b.cfg.IndexKey]
	return z, ok
}

// prepare initializes a zone-bound tick block according to the strategy.
// Under SafeFill every slot holds an instant that exists in all zones, so
// reading an unpopulated row never lands on a DST gap.
func (b *builder) prepare(blk *buffer.Block) {
	if blk == nil || b.cfg.Strategy != tz.SafeFill {
		return
	}
	blk.FillInt64(tz.SafeTick)
}
