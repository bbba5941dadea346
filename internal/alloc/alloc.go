// Package alloc builds empty, correctly typed tables whose column storage
// can be populated in place through views.
package alloc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tuannm99/novaframe/internal/buffer"
	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/tz"
)

var (
	ErrSchemaMismatch    = record.ErrSchemaMismatch
	ErrAllocation        = record.ErrAllocation
	ErrIndexSpec         = frame.ErrIndexSpec
	ErrTableConstruction = frame.ErrTableConstruction
)

// DefaultIndexKey is the reserved timezone key that applies to index levels.
const DefaultIndexKey = "index"

type Config struct {
	// Strategy controls initialization of zone-bound datetime storage.
	Strategy tz.Strategy
	// IndexKey is the reserved timezone key for index levels; it also names a
	// single unnamed level.
	IndexKey string
	// MaxBytes caps the storage of one table; <= 0 means unlimited.
	MaxBytes int64
	// ZoneCacheSize bounds the number of cached timezone locations.
	ZoneCacheSize int
	// Mem provides fixed-width storage. Defaults to arrow's Go allocator.
	Mem memory.Allocator
}

func DefaultConfig() Config {
	return Config{
		Strategy:      tz.SafeFill,
		IndexKey:      DefaultIndexKey,
		ZoneCacheSize: tz.DefaultCacheSize,
	}
}

// Request describes one table to allocate.
type Request struct {
	Types   record.TypeSpec
	Rows    int
	Columns []string

	// Categories maps a categorical column to its hint or value list.
	Categories map[string]record.CategorySpec
	// Timezones maps a column or index level name (or the reserved index
	// key) to a timezone label. Entries for non-datetime targets are ignored.
	Timezones map[string]string

	// IndexTypes and IndexNames describe index levels in order.
	IndexTypes record.TypeSpec
	IndexNames []string
	// IndexSources maps a level name to the data column it reinterprets.
	// Levels without a source get dedicated storage.
	IndexSources map[string]string
}

// Allocator turns Requests into tables. It keeps a timezone cache and is
// otherwise stateless; concurrent Allocate calls are safe.
type Allocator struct {
	cfg   Config
	zones *tz.Registry
}

func New(cfg Config) (*Allocator, error) {
	def := DefaultConfig()
	if cfg.Strategy == 0 {
		cfg.Strategy = def.Strategy
	}
	if cfg.IndexKey == "" {
		cfg.IndexKey = def.IndexKey
	}
	if cfg.ZoneCacheSize <= 0 {
		cfg.ZoneCacheSize = def.ZoneCacheSize
	}
	zones, err := tz.NewRegistry(cfg.ZoneCacheSize)
	if err != nil {
		return nil, err
	}
	return &Allocator{cfg: cfg, zones: zones}, nil
}

func (a *Allocator) Config() Config { return a.cfg }

// Allocate returns a table of req.Rows rows and one view per data column.
// On error nothing is allocated.
func Allocate(req Request) (*frame.Table, frame.Views, error) {
	a, err := New(DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	return a.Allocate(req)
}

func (a *Allocator) Allocate(req Request) (*frame.Table, frame.Views, error) {
	if req.Rows < 0 {
		return nil, nil, fmt.Errorf("%w: negative row count %d", ErrAllocation, req.Rows)
	}
	schema, err := record.Resolve(req.Types, req.Columns)
	if err != nil {
		return nil, nil, err
	}
	levels, err := a.resolveIndex(req, schema)
	if err != nil {
		return nil, nil, err
	}
	zones, err := a.resolveZones(req.Timezones, schema, levels)
	if err != nil {
		return nil, nil, err
	}

	b := &builder{
		cfg:    a.cfg,
		n:      req.Rows,
		buf:    buffer.New(a.cfg.Mem, a.cfg.MaxBytes),
		zones:  zones,
		blocks: make(map[string]*buffer.Block, schema.NumCols()),
	}
	tbl, err := b.build(schema, req.Categories, levels)
	if err != nil {
		b.buf.ReleaseAll()
		return nil, nil, err
	}

	slog.Debug("alloc: table",
		"rows", req.Rows,
		"cols", tbl.NumCols(),
		"levels", tbl.Index().NumLevels(),
		"bytes", b.buf.Used(),
	)
	return tbl, tbl.Views(), nil
}

// boundZone is a validated timezone binding.
type boundZone struct {
	label string
	loc   *time.Location
}

// resolveZones loads every zone that targets a datetime column or level.
// Zone labels are validated here, before any storage exists.
func (a *Allocator) resolveZones(in map[string]string, schema record.Schema, levels []frame.LevelSpec) (map[string]boundZone, error) {
	datetime := make(map[string]bool)
	for _, c := range schema.Cols {
		datetime[c.Name] = c.Type.IsDatetime()
	}
	for _, l := range levels {
		if l.Type.IsDatetime() {
			datetime[l.Name] = true
			datetime[a.cfg.IndexKey] = true
		}
	}

	out := make(map[string]boundZone, len(in))
	for name, label := range in {
		if !datetime[name] {
			slog.Debug("alloc: ignoring timezone for non-datetime target", "name", name, "tz", label)
			continue
		}
		loc, err := a.zones.Load(label)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone for %q: %v", ErrSchemaMismatch, name, err)
		}
		out[name] = boundZone{label: label, loc: loc}
	}
	return out, nil
}

// resolveIndex validates index levels against the schema.
func (a *Allocator) resolveIndex(req Request, schema record.Schema) ([]frame.LevelSpec, error) {
	if req.IndexTypes == nil {
		if len(req.IndexNames) > 0 {
			return nil, fmt.Errorf("%w: %d index names without types", ErrIndexSpec, len(req.IndexNames))
		}
		return nil, nil
	}

	names := req.IndexNames
	if names == nil {
		// size the name list from the index types
		names = make([]string, countLevels(req.IndexTypes))
	}
	named := make([]string, len(names))
	for i, n := range names {
		switch {
		case n != "":
			named[i] = n
		case len(names) == 1:
			named[i] = a.cfg.IndexKey
		default:
			named[i] = fmt.Sprintf("level_%d", i)
		}
	}

	idxSchema, err := record.Resolve(req.IndexTypes, named)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexSpec, err)
	}

	cols := make(map[string]bool, schema.NumCols())
	for _, c := range schema.Cols {
		cols[c.Name] = true
	}
	for src := range req.IndexSources {
		if _, ok := idxSchema.Lookup(src); !ok {
			return nil, fmt.Errorf("%w: source given for unknown level %q", ErrIndexSpec, src)
		}
	}

	out := make([]frame.LevelSpec, len(idxSchema.Cols))
	for i, c := range idxSchema.Cols {
		spec := frame.LevelSpec{Name: c.Name, Type: c.Type, Source: req.IndexSources[c.Name]}
		switch {
		case spec.Source != "" && !cols[spec.Source]:
			return nil, fmt.Errorf("%w: level %q: source column %q not allocated", ErrIndexSpec, c.Name, spec.Source)
		case spec.Source == "" && cols[c.Name]:
			return nil, fmt.Errorf("%w: level %q collides with a data column", ErrIndexSpec, c.Name)
		}
		out[i] = spec
	}
	return out, nil
}

// countLevels infers the number of levels of a spec given without names.
func countLevels(spec record.TypeSpec) int {
	switch s := spec.(type) {
	case record.Codes:
		if s == "" {
			return 0
		}
		return len(record.SplitCodes(string(s)))
	case record.Descriptors:
		return len(s)
	default:
		return 1
	}
}
