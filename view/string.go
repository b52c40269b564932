package view

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// String is a dynamic UTF-8 string view. Its control block is a single
// 4-byte pool offset stored in the containing struct; the pool region it
// points to is laid out as [u32 length][utf-8 bytes]. An empty string is
// represented by a null (zero) control-block pointer, never an
// allocation of length zero.
type String struct {
	offset uint32
	layout schema.PropertyLayout
}

const stringLenFieldSize = 4

// NewString constructs a String view over the 4-byte control block at
// offset.
func NewString(offset uint32, layout schema.PropertyLayout) (String, error) {
	if err := checkAlign(offset, 4); err != nil {
		return String{}, err
	}
	return String{offset: offset, layout: layout}, nil
}

func (s String) Offset() uint32               { return s.offset }
func (s String) Layout() schema.PropertyLayout { return s.layout }

func (s String) controlPtr(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[s.offset:])
}

func (s String) setControlPtr(buf []byte, ptr uint32) {
	binary.LittleEndian.PutUint32(buf[s.offset:], ptr)
}

// Get returns the string currently stored, or "" if the control block is
// null.
func (s String) Get(buf []byte, pool *mem.Pool) string {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return ""
	}
	region := pool.Bytes()
	length := binary.LittleEndian.Uint32(region[ptr:])
	return string(region[ptr+stringLenFieldSize : ptr+stringLenFieldSize+length])
}

// Set reallocates the backing pool region (growing or shrinking as
// needed) and writes v. Passing "" frees any existing allocation and
// leaves the control block null.
func (s String) Set(buf []byte, pool *mem.Pool, owner string, v string) error {
	if !utf8.ValidString(v) {
		return ErrInvalidUTF8
	}
	old := s.controlPtr(buf)
	if v == "" {
		if old != 0 {
			pool.Free(old)
			s.setControlPtr(buf, 0)
		}
		return nil
	}
	need := uint32(stringLenFieldSize + len(v))
	var ptr uint32
	if old == 0 {
		ptr = pool.Allocate(need, owner, 0)
	} else {
		ptr = pool.Reallocate(old, need, owner, 0)
	}
	if ptr == 0 {
		return ErrOutOfMemory
	}
	region := pool.Bytes()
	binary.LittleEndian.PutUint32(region[ptr:], uint32(len(v)))
	copy(region[ptr+stringLenFieldSize:ptr+stringLenFieldSize+uint32(len(v))], v)
	s.setControlPtr(buf, ptr)
	return nil
}

// Free releases the backing allocation, if any, and nulls the control
// block.
func (s String) Free(buf []byte, pool *mem.Pool) error {
	ptr := s.controlPtr(buf)
	if ptr != 0 {
		pool.Free(ptr)
		s.setControlPtr(buf, 0)
	}
	return nil
}

// CopyFrom deep-copies src's string value into s, reallocating from pool.
func (s String) CopyFrom(buf []byte, pool *mem.Pool, owner string, src []byte, srcView String) error {
	return s.Set(buf, pool, owner, srcView.Get(src, pool))
}
