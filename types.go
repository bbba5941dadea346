// Package novaframe allocates empty, typed, column-oriented tables whose
// storage is populated in place through views.
package novaframe

import (
	"github.com/tuannm99/novaframe/internal/alloc"
	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/tz"
)

type (
	Table      = frame.Table
	Column     = frame.Column
	View       = frame.View
	Views      = frame.Views
	Index      = frame.Index
	Level      = frame.Level
	Dictionary = frame.Dictionary

	DType        = record.DType
	Kind         = record.Kind
	Unit         = record.Unit
	TypeSpec     = record.TypeSpec
	Codes        = record.Codes
	Descriptors  = record.Descriptors
	Uniform      = record.Uniform
	CategorySpec = record.CategorySpec

	Config   = alloc.Config
	Strategy = tz.Strategy
)

const (
	SafeFill = tz.SafeFill
	Deferred = tz.Deferred
)

var (
	ErrSchemaMismatch    = record.ErrSchemaMismatch
	ErrAllocation        = record.ErrAllocation
	ErrIndexSpec         = frame.ErrIndexSpec
	ErrTableConstruction = frame.ErrTableConstruction
	ErrDictionaryBound   = frame.ErrDictionaryBound
	ErrViewType          = frame.ErrViewType
)

// Hint declares the expected number of categories of a categorical column.
func Hint(n int) CategorySpec { return record.Hint(n) }

// Values declares the ordered categories of a categorical column.
func Values(vs ...any) CategorySpec { return record.Values(vs...) }

// Slice returns the typed storage behind v.
func Slice[T any](v View) ([]T, error) { return frame.Slice[T](v) }

func NewDictionary(values []any) (*Dictionary, error) { return frame.NewDictionary(values) }
