// Package schemafile reads allocation requests from YAML documents:
//
//	rows: 8784
//	columns: [at, load, zone]
//	types: "M8[ns],f8,category"     # or a list: ["M8[ns]", f8, category]
//	categories:
//	  zone: [north, south]           # values, or a cardinality hint: 40000
//	timezones:
//	  at: CET
//	index:
//	  types: "M8[ns]"
//	  names: [timestamp]
//	  sources: {timestamp: at}
//
// "uniform: f8" may replace types to give every column the same type.
package schemafile

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/tuannm99/novaframe/internal/alloc"
	"github.com/tuannm99/novaframe/internal/record"
)

var ErrSchemaFile = errors.New("schemafile: invalid document")

type document struct {
	Rows       int                  `yaml:"rows"`
	Columns    []string             `yaml:"columns"`
	Types      yaml.Node            `yaml:"types"`
	Uniform    string               `yaml:"uniform"`
	Categories map[string]yaml.Node `yaml:"categories"`
	Timezones  map[string]string    `yaml:"timezones"`
	Index      *struct {
		Types   yaml.Node         `yaml:"types"`
		Names   []string          `yaml:"names"`
		Sources map[string]string `yaml:"sources"`
	} `yaml:"index"`
}

// Load reads and parses the document at path.
func Load(fs afero.Fs, path string) (alloc.Request, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return alloc.Request{}, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse turns a YAML document into an allocation request. A compact code
// string is resolved later by the allocator; list entries are parsed here.
func Parse(data []byte) (alloc.Request, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return alloc.Request{}, fmt.Errorf("%w: %v", ErrSchemaFile, err)
	}

	req := alloc.Request{
		Rows:      doc.Rows,
		Columns:   doc.Columns,
		Timezones: doc.Timezones,
	}

	switch {
	case doc.Uniform != "" && !isZero(doc.Types):
		return alloc.Request{}, fmt.Errorf("%w: types and uniform are exclusive", ErrSchemaFile)
	case doc.Uniform != "":
		dt, err := record.ParseCode(doc.Uniform)
		if err != nil {
			return alloc.Request{}, err
		}
		req.Types = record.Uniform(dt)
	default:
		spec, err := typeSpec(&doc.Types)
		if err != nil {
			return alloc.Request{}, fmt.Errorf("types: %w", err)
		}
		req.Types = spec
	}

	if len(doc.Categories) > 0 {
		req.Categories = make(map[string]record.CategorySpec, len(doc.Categories))
		for name, n := range doc.Categories {
			spec, err := categorySpec(&n)
			if err != nil {
				return alloc.Request{}, fmt.Errorf("categories %q: %w", name, err)
			}
			req.Categories[name] = spec
		}
	}

	if doc.Index != nil {
		spec, err := typeSpec(&doc.Index.Types)
		if err != nil {
			return alloc.Request{}, fmt.Errorf("index types: %w", err)
		}
		req.IndexTypes = spec
		req.IndexNames = doc.Index.Names
		req.IndexSources = doc.Index.Sources
	}
	return req, nil
}

func isZero(n yaml.Node) bool { return n.Kind == 0 }

// typeSpec accepts a compact code string or a list of codes.
func typeSpec(n *yaml.Node) (record.TypeSpec, error) {
	switch n.Kind {
	case 0:
		return record.Codes(""), nil
	case yaml.ScalarNode:
		return record.Codes(n.Value), nil
	case yaml.SequenceNode:
		var codes []string
		if err := n.Decode(&codes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaFile, err)
		}
		out := make(record.Descriptors, len(codes))
		for i, c := range codes {
			dt, err := record.ParseCode(c)
			if err != nil {
				return nil, err
			}
			out[i] = dt
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: line %d: want a code string or a list", ErrSchemaFile, n.Line)
	}
}

// categorySpec accepts an integer hint or a list of values.
func categorySpec(n *yaml.Node) (record.CategorySpec, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		hint, err := cast.ToIntE(n.Value)
		if err != nil {
			return record.CategorySpec{}, fmt.Errorf("%w: line %d: hint %q is not an integer", ErrSchemaFile, n.Line, n.Value)
		}
		return record.Hint(hint), nil
	case yaml.SequenceNode:
		var values []any
		if err := n.Decode(&values); err != nil {
			return record.CategorySpec{}, fmt.Errorf("%w: %v", ErrSchemaFile, err)
		}
		return record.Values(values...), nil
	default:
		return record.CategorySpec{}, fmt.Errorf("%w: line %d: want a hint or a list of values", ErrSchemaFile, n.Line)
	}
}
