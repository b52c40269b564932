package view

import (
	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// TupleElement describes one fixed-position slot of a Tuple.
type TupleElement struct {
	Offset uint32
	Size   uint32
}

// Tuple is a view over a fixed sequence of heterogeneously-typed
// elements, each stored inline at its own declared offset; the tuple's
// own alignment is the max of its elements' alignments and its total
// size is padded up to that alignment (spec.md §4.2 "Tuple").
type Tuple struct {
	offset   uint32
	elements []TupleElement
	layout   schema.PropertyLayout
}

// NewTuple constructs a Tuple view. elements[i].Offset is the element's
// absolute position in the buffer, so it must already include offset.
func NewTuple(offset uint32, elements []TupleElement, layout schema.PropertyLayout) (Tuple, error) {
	return Tuple{offset: offset, elements: elements, layout: layout}, nil
}

func (t Tuple) Offset() uint32               { return t.offset }
func (t Tuple) Layout() schema.PropertyLayout { return t.layout }
func (t Tuple) Len() int                     { return len(t.elements) }

// Get returns the byte slice for element i.
func (t Tuple) Get(buf []byte, i int) []byte {
	e := t.elements[i]
	return buf[e.Offset : e.Offset+e.Size]
}

// Free releases each element's dynamic data via elemFrees[i] (a nil
// entry means that element owns no dynamic data).
func (t Tuple) Free(buf []byte, pool *mem.Pool, elemFrees []ElemFreeFunc) error {
	for i := range t.elements {
		if i < len(elemFrees) && elemFrees[i] != nil {
			if err := elemFrees[i](t.Get(buf, i), pool); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyFrom deep-copies each element from src via elemCopies[i] (a nil
// entry falls back to a raw byte copy).
func (t Tuple) CopyFrom(buf []byte, pool *mem.Pool, src []byte, srcView Tuple, elemCopies []ElemCopyFunc) error {
	for i := range t.elements {
		dst := t.Get(buf, i)
		s := srcView.Get(src, i)
		if i < len(elemCopies) && elemCopies[i] != nil {
			if err := elemCopies[i](dst, s, pool); err != nil {
				return err
			}
			continue
		}
		copy(dst, s)
	}
	return nil
}
