package view

import (
	"unsafe"

	"github.com/kiln-engine/kiln/schema"
)

// Number is the set of primitive scalar kinds a Primitive view can wrap:
// every fixed-width integer and float named in the type string grammar,
// plus bool.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64 | ~bool
}

// Primitive is a view over a single fixed-width scalar field. One
// generic definition covers every primitive type string (u8..f64, bool)
// rather than one hand-written type per width.
type Primitive[T Number] struct {
	offset uint32
	layout schema.PropertyLayout
}

// NewPrimitive constructs a Primitive view bound to offset, failing with
// MisalignedError if offset is not a multiple of the type's own size.
func NewPrimitive[T Number](offset uint32, layout schema.PropertyLayout) (Primitive[T], error) {
	var zero T
	size := uint32(unsafe.Sizeof(zero))
	if err := checkAlign(offset, size); err != nil {
		return Primitive[T]{}, err
	}
	return Primitive[T]{offset: offset, layout: layout}, nil
}

func (p Primitive[T]) Offset() uint32               { return p.offset }
func (p Primitive[T]) Layout() schema.PropertyLayout { return p.layout }

// Get reads the value at this view's offset within buf.
func (p Primitive[T]) Get(buf []byte) T {
	return *(*T)(unsafe.Pointer(&buf[p.offset]))
}

// Set writes v at this view's offset within buf.
func (p Primitive[T]) Set(buf []byte, v T) {
	*(*T)(unsafe.Pointer(&buf[p.offset])) = v
}

// ApproxEqual reports whether two float values are equal within
// epsilon, the documented approximate-equality operation for f32/f64
// (spec.md §6 "Numeric semantics": EPSILON-based equality for floats
// only).
func ApproxEqual[T ~float32 | ~float64](a, b, epsilon T) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilon
}
