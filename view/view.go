// Package view interprets a (buffer, offset) pair as a typed value
// according to a schema.PropertyLayout. Views never own memory: they
// read and write bytes owned either by an enclosing struct's buffer or,
// for their dynamic payloads, by a mem.Pool they borrow.
package view

import (
	"fmt"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// MisalignedError is returned when a view is constructed over an offset
// that does not satisfy its schema's alignment requirement.
type MisalignedError struct {
	Offset    uint32
	Alignment uint32
}

func (e MisalignedError) Error() string {
	return fmt.Sprintf("view: offset %d is not aligned to %d", e.Offset, e.Alignment)
}

// View is the contract every view kind in this package satisfies.
type View interface {
	// Offset is the control-block position within the backing buffer.
	Offset() uint32
	// Layout is the schema this view was bound to.
	Layout() schema.PropertyLayout
}

// Dynamic describes a view that owns storage in a mem.Pool behind one
// uniform Free/CopyFrom signature. No view in this package implements
// it: the string, dynamic array, hash map, hash set and tagged union
// views each declare Free and CopyFrom with their own extra parameters
// (element callbacks, owner tag, source view), and the hash map and
// hash set have no CopyFrom.
type Dynamic interface {
	View
	// Free releases this view's control block and every dynamic child in
	// depth-first order.
	Free(buf []byte, pool *mem.Pool) error
	// CopyFrom deep-copies src into this view's slot, reallocating any
	// dynamic children from pool.
	CopyFrom(buf []byte, pool *mem.Pool, src []byte) error
}

func checkAlign(offset, alignment uint32) error {
	if alignment != 0 && offset%alignment != 0 {
		return MisalignedError{Offset: offset, Alignment: alignment}
	}
	return nil
}
