package novaframe

import (
	"github.com/tuannm99/novaframe/internal/alloc"
)

type options struct {
	req alloc.Request
	cfg alloc.Config
}

type Option func(*options)

// WithCategories sets per-column categorical specs.
func WithCategories(cats map[string]CategorySpec) Option {
	return func(o *options) { o.req.Categories = cats }
}

// WithTimezones maps datetime columns or index levels (or the reserved
// index key) to timezone labels.
func WithTimezones(zones map[string]string) Option {
	return func(o *options) { o.req.Timezones = zones }
}

// WithIndex describes the index levels. Names may be empty to use the
// default level names.
func WithIndex(types TypeSpec, names ...string) Option {
	return func(o *options) {
		o.req.IndexTypes = types
		o.req.IndexNames = names
	}
}

// WithIndexSource builds the index level named level over the storage of
// data column column instead of dedicated storage.
func WithIndexSource(level, column string) Option {
	return func(o *options) {
		if o.req.IndexSources == nil {
			o.req.IndexSources = make(map[string]string)
		}
		o.req.IndexSources[level] = column
	}
}

func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// Empty allocates a table of rows rows with one column per name in cols and
// returns it with one writable view per column. Nothing is allocated when
// it fails.
func Empty(types TypeSpec, rows int, cols []string, opts ...Option) (*Table, Views, error) {
	o := options{
		req: alloc.Request{Types: types, Rows: rows, Columns: cols},
		cfg: alloc.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.req.IndexNames) == 0 {
		o.req.IndexNames = nil
	}

	a, err := alloc.New(o.cfg)
	if err != nil {
		return nil, nil, err
	}
	return a.Allocate(o.req)
}
