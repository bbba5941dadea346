package schemafile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaframe/internal/alloc"
	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
)

const meterDoc = `
rows: 24
columns: [at, load, zone, site]
types: "M8[ns],f8,category,category"
categories:
  zone: [north, south]
  site: 40000
timezones:
  at: CET
index:
  types: "M8[ns]"
  names: [timestamp]
  sources: {timestamp: at}
`

func TestLoad_AllocatesRequest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/schemas/meter.yaml", []byte(meterDoc), 0o644))

	req, err := Load(fs, "/schemas/meter.yaml")
	require.NoError(t, err)
	require.Equal(t, 24, req.Rows)
	require.Equal(t, record.Codes("M8[ns],f8,category,category"), req.Types)
	require.True(t, req.Categories["zone"].HasValues())
	require.Equal(t, 40000, req.Categories["site"].Cardinality())

	tbl, views, err := alloc.Allocate(req)
	require.NoError(t, err)
	defer tbl.Release()

	require.Len(t, views, 4)
	require.True(t, tbl.Index().IsDatetime())
	require.Equal(t, "CET", tbl.Index().Zone())
	require.Len(t, frame.MustSlice[int16](views["zone"]), 24)
	require.Len(t, frame.MustSlice[int32](views["site"]), 24)

	zone, _ := tbl.Column("zone")
	require.Equal(t, "north", zone.Values()[0])
}

func TestParse_TypeForms(t *testing.T) {
	req, err := Parse([]byte(`
rows: 2
columns: [a, b]
types: [i4, "datetime64[ms]"]
`))
	require.NoError(t, err)
	require.Equal(t, record.Descriptors{{Kind: record.Int32}, record.DatetimeOf(record.Milli)}, req.Types)

	req, err = Parse([]byte(`
rows: 2
columns: [a, b, c]
uniform: f4
`))
	require.NoError(t, err)
	require.Equal(t, record.Uniform(record.DType{Kind: record.Float32}), req.Types)

	req, err = Parse([]byte(`rows: 0`))
	require.NoError(t, err)
	tbl, views, err := alloc.Allocate(req)
	require.NoError(t, err)
	require.Empty(t, views)
	tbl.Release()
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"not yaml":          {doc: "rows: [", want: ErrSchemaFile},
		"types and uniform": {doc: "columns: [a]\ntypes: i4\nuniform: i4", want: ErrSchemaFile},
		"types mapping":     {doc: "columns: [a]\ntypes: {a: i4}", want: ErrSchemaFile},
		"bad list code":     {doc: "columns: [a]\ntypes: [zz]", want: record.ErrSchemaMismatch},
		"bad hint":          {doc: "columns: [c]\ntypes: category\ncategories: {c: many}", want: ErrSchemaFile},
		"category mapping":  {doc: "columns: [c]\ntypes: category\ncategories: {c: {x: 1}}", want: ErrSchemaFile},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Load(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
}
