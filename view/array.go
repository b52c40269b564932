package view

import (
	"encoding/binary"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// ElemFreeFunc releases any dynamic storage owned by one fixed-size
// element slot. Collections pass nil when their element type has no
// dynamic data (schema.PropertyLayout.Binary.Element.HasDynamicData ==
// false).
type ElemFreeFunc func(elem []byte, pool *mem.Pool) error

// ElemCopyFunc deep-copies one element slot from src into dst,
// reallocating any dynamic children from pool.
type ElemCopyFunc func(dst, src []byte, pool *mem.Pool) error

const (
	arrayLenFieldSize = 4
	arrayCapFieldSize = 4
	arrayHeaderSize   = arrayLenFieldSize + arrayCapFieldSize
)

// DynamicArray is a view over a growable, insertion-ordered sequence of
// fixed-size elements. Its control block is a single 4-byte pool offset;
// the pointed-to region is [u32 length][u32 capacity][element 0..length).
type DynamicArray struct {
	offset   uint32
	elemSize uint32
	layout   schema.PropertyLayout
}

// NewDynamicArray constructs a DynamicArray view whose elements are
// elemSize bytes each.
func NewDynamicArray(offset, elemSize uint32, layout schema.PropertyLayout) (DynamicArray, error) {
	if err := checkAlign(offset, 4); err != nil {
		return DynamicArray{}, err
	}
	return DynamicArray{offset: offset, elemSize: elemSize, layout: layout}, nil
}

func (a DynamicArray) Offset() uint32               { return a.offset }
func (a DynamicArray) Layout() schema.PropertyLayout { return a.layout }

func (a DynamicArray) controlPtr(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[a.offset:])
}
func (a DynamicArray) setControlPtr(buf []byte, ptr uint32) {
	binary.LittleEndian.PutUint32(buf[a.offset:], ptr)
}

// Length returns the number of elements currently stored.
func (a DynamicArray) Length(buf []byte, pool *mem.Pool) uint32 {
	ptr := a.controlPtr(buf)
	if ptr == 0 {
		return 0
	}
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr:])
}

func (a DynamicArray) capacity(pool *mem.Pool, ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+4:])
}

// Get returns the byte slice for element i.
func (a DynamicArray) Get(buf []byte, pool *mem.Pool, i uint32) []byte {
	ptr := a.controlPtr(buf)
	start := ptr + arrayHeaderSize + i*a.elemSize
	return pool.Bytes()[start : start+a.elemSize]
}

// Push appends a copy of elem, growing the backing allocation
// geometrically (doubling) when the current capacity is exhausted.
func (a DynamicArray) Push(buf []byte, pool *mem.Pool, owner string, elem []byte) error {
	ptr := a.controlPtr(buf)
	var length, cap uint32
	if ptr != 0 {
		length = binary.LittleEndian.Uint32(pool.Bytes()[ptr:])
		cap = a.capacity(pool, ptr)
	}
	if ptr == 0 || length >= cap {
		newCap := cap * 2
		if newCap == 0 {
			newCap = 4
		}
		needBytes := arrayHeaderSize + newCap*a.elemSize
		newPtr := pool.Reallocate(ptr, needBytes, owner, 0)
		if newPtr == 0 {
			return ErrOutOfMemory
		}
		ptr = newPtr
		binary.LittleEndian.PutUint32(pool.Bytes()[ptr+4:], newCap)
		a.setControlPtr(buf, ptr)
	}
	start := ptr + arrayHeaderSize + length*a.elemSize
	copy(pool.Bytes()[start:start+a.elemSize], elem)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr:], length+1)
	return nil
}

// Pop removes and returns the last element, or nil if the array is
// empty.
func (a DynamicArray) Pop(buf []byte, pool *mem.Pool) []byte {
	ptr := a.controlPtr(buf)
	if ptr == 0 {
		return nil
	}
	length := binary.LittleEndian.Uint32(pool.Bytes()[ptr:])
	if length == 0 {
		return nil
	}
	start := ptr + arrayHeaderSize + (length-1)*a.elemSize
	out := append([]byte(nil), pool.Bytes()[start:start+a.elemSize]...)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr:], length-1)
	return out
}

// Set deep-copies v into slot i, freeing whatever dynamic data the
// existing element at i owns first (via elemFree, which may be nil).
func (a DynamicArray) Set(buf []byte, pool *mem.Pool, i uint32, v []byte, elemFree ElemFreeFunc) error {
	dst := a.Get(buf, pool, i)
	if elemFree != nil {
		if err := elemFree(dst, pool); err != nil {
			return err
		}
	}
	copy(dst, v)
	return nil
}

// Free releases every element's dynamic data (depth-first, via elemFree)
// followed by the backing allocation itself.
func (a DynamicArray) Free(buf []byte, pool *mem.Pool, elemFree ElemFreeFunc) error {
	ptr := a.controlPtr(buf)
	if ptr == 0 {
		return nil
	}
	if elemFree != nil {
		length := binary.LittleEndian.Uint32(pool.Bytes()[ptr:])
		for i := uint32(0); i < length; i++ {
			if err := elemFree(a.Get(buf, pool, i), pool); err != nil {
				return err
			}
		}
	}
	pool.Free(ptr)
	a.setControlPtr(buf, 0)
	return nil
}

// CopyFrom deep-copies src's elements into a freshly allocated backing
// region sized to match, using elemCopy for per-element deep copy.
func (a DynamicArray) CopyFrom(buf []byte, pool *mem.Pool, owner string, src []byte, srcView DynamicArray, elemCopy ElemCopyFunc) error {
	length := srcView.Length(src, pool)
	if length == 0 {
		return nil
	}
	needBytes := arrayHeaderSize + length*a.elemSize
	ptr := pool.Allocate(needBytes, owner, 0)
	if ptr == 0 {
		return ErrOutOfMemory
	}
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr:], length)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+4:], length)
	a.setControlPtr(buf, ptr)
	for i := uint32(0); i < length; i++ {
		dst := a.Get(buf, pool, i)
		s := srcView.Get(src, pool, i)
		if elemCopy != nil {
			if err := elemCopy(dst, s, pool); err != nil {
				return err
			}
		} else {
			copy(dst, s)
		}
	}
	return nil
}
