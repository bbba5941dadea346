package buffer

import (
	"fmt"
	"log/slog"
	"math"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tuannm99/novaframe/internal/record"
)

// objectSlotSize is what one []any slot costs against the budget.
const objectSlotSize = int(unsafe.Sizeof(any(nil)))

// Block is one contiguous storage block of exactly N slots.
type Block struct {
	Kind record.Kind
	N    int

	raw     []byte // exactly what the memory allocator returned
	objects []any
	data    any
}

// Data returns the typed slice backing the block ([]int16, []int64, []any, ...).
func (b *Block) Data() any { return b.data }

// Bytes exposes the raw bytes of a fixed-width block (nil for objects).
func (b *Block) Bytes() []byte {
	if b.raw == nil {
		return nil
	}
	return b.raw[:b.N*b.Kind.Width()]
}

// Size is the number of bytes charged for the block.
func (b *Block) Size() int {
	if b.Kind == record.Object {
		return b.N * objectSlotSize
	}
	return b.N * b.Kind.Width()
}

// Zero clears the block.
func (b *Block) Zero() {
	if b.Kind == record.Object {
		clear(b.objects)
		return
	}
	clear(b.Bytes())
}

// FillInt64 sets every slot of an int64-backed block to v.
func (b *Block) FillInt64(v int64) {
	s, ok := b.data.([]int64)
	if !ok {
		return
	}
	for i := range s {
		s[i] = v
	}
}

// Allocator hands out blocks from an arrow memory.Allocator and remembers
// them so they can be released together. Not safe for concurrent use.
type Allocator struct {
	mem      memory.Allocator
	maxBytes int64
	used     int64
	blocks   []*Block
}

// New returns an Allocator over mem. maxBytes <= 0 disables the budget.
func New(mem memory.Allocator, maxBytes int64) *Allocator {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Allocator{mem: mem, maxBytes: maxBytes}
}

// Used is the number of bytes currently charged.
func (a *Allocator) Used() int64 { return a.used }

// Blocks returns the number of live blocks.
func (a *Allocator) Blocks() int { return len(a.blocks) }

// Alloc returns a block of n slots for kind. Category is not a storage kind;
// callers pass the code kind chosen by record.CodeWidth.
func (a *Allocator) Alloc(kind record.Kind, n int) (*Block, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative row count %d", record.ErrAllocation, n)
	}
	if kind == record.Category || kind == record.KindInvalid {
		return nil, fmt.Errorf("%w: %s has no storage representation", record.ErrAllocation, kind)
	}

	width := kind.Width()
	if kind == record.Object {
		width = objectSlotSize
	}
	if width > 0 && n > math.MaxInt/width {
		return nil, fmt.Errorf("%w: %d rows of %s overflow", record.ErrAllocation, n, kind)
	}
	size := n * width
	if a.maxBytes > 0 && a.used+int64(size) > a.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes for %s exceeds budget (%d of %d used)",
			record.ErrAllocation, size, kind, a.used, a.maxBytes)
	}

	b := &Block{Kind: kind, N: n}
	if kind == record.Object {
		objects, err := makeObjects(n)
		if err != nil {
			return nil, err
		}
		b.objects = objects
		b.data = objects
	} else {
		raw, err := a.allocate(size)
		if err != nil {
			return nil, err
		}
		b.raw = raw
		if kind == record.Bool {
			// a Go bool must hold 0 or 1
			clear(raw)
		}
		b.data = typed(kind, raw[:size], n)
	}

	a.used += int64(size)
	a.blocks = append(a.blocks, b)

	slog.Debug("buffer: alloc", "kind", kind, "rows", n, "bytes", size)
	return b, nil
}

func (a *Allocator) allocate(size int) (raw []byte, err error) {
	if size == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("%w: memory allocator failed: %v", record.ErrAllocation, r)
		}
	}()
	raw = a.mem.Allocate(size)
	if len(raw) < size {
		if raw != nil {
			a.mem.Free(raw)
		}
		return nil, fmt.Errorf("%w: short block: got %d bytes, want %d", record.ErrAllocation, len(raw), size)
	}
	return raw, nil
}

// makeObjects allocates an object block on the Go heap, where a row count
// past the runtime's limit panics instead of failing.
func makeObjects(n int) (objects []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			objects = nil
			err = fmt.Errorf("%w: object block of %d rows: %v", record.ErrAllocation, n, r)
		}
	}()
	return make([]any, n), nil
}

// ReleaseAll returns every block to the memory allocator. Views over the
// released blocks must not be used afterwards.
func (a *Allocator) ReleaseAll() {
	for _, b := range a.blocks {
		if b.raw != nil {
			a.mem.Free(b.raw)
		}
		b.raw, b.objects, b.data = nil, nil, nil
	}
	slog.Debug("buffer: release", "blocks", len(a.blocks), "bytes", a.used)
	a.blocks = nil
	a.used = 0
}

func typed(kind record.Kind, raw []byte, n int) any {
	if n == 0 {
		return emptyOf(kind)
	}
	switch kind {
	case record.Int8:
		return arrow.GetData[int8](raw)
	case record.Int16:
		return arrow.GetData[int16](raw)
	case record.Int32:
		return arrow.GetData[int32](raw)
	case record.Int64, record.Datetime:
		return arrow.GetData[int64](raw)
	case record.Uint8:
		return arrow.GetData[uint8](raw)
	case record.Uint16:
		return arrow.GetData[uint16](raw)
	case record.Uint32:
		return arrow.GetData[uint32](raw)
	case record.Uint64:
		return arrow.GetData[uint64](raw)
	case record.Float32:
		return arrow.GetData[float32](raw)
	case record.Float64:
		return arrow.GetData[float64](raw)
	case record.Bool:
		return unsafe.Slice((*bool)(unsafe.Pointer(unsafe.SliceData(raw))), n)
	default:
		return nil
	}
}

func emptyOf(kind record.Kind) any {
	switch kind {
	case record.Int8:
		return []int8{}
	case record.Int16:
		return []int16{}
	case record.Int32:
		return []int32{}
	case record.Int64, record.Datetime:
		return []int64{}
	case record.Uint8:
		return []uint8{}
	case record.Uint16:
		return []uint16{}
	case record.Uint32:
		return []uint32{}
	case record.Uint64:
		return []uint64{}
	case record.Float32:
		return []float32{}
	case record.Float64:
		return []float64{}
	case record.Bool:
		return []bool{}
	default:
		return nil
	}
}
