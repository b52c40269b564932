package view

import (
	"bytes"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// FixedArray is a view over N fixed-size elements stored inline in the
// containing struct (no control block, no pool allocation of its own).
type FixedArray struct {
	offset   uint32
	elemSize uint32
	count    uint32
	layout   schema.PropertyLayout
}

// NewFixedArray constructs a FixedArray of count elements, each elemSize
// bytes, starting at offset.
func NewFixedArray(offset, elemSize, count uint32, layout schema.PropertyLayout) (FixedArray, error) {
	if err := checkAlign(offset, layout.Alignment); err != nil {
		return FixedArray{}, err
	}
	return FixedArray{offset: offset, elemSize: elemSize, count: count, layout: layout}, nil
}

func (f FixedArray) Offset() uint32               { return f.offset }
func (f FixedArray) Layout() schema.PropertyLayout { return f.layout }
func (f FixedArray) Count() uint32                 { return f.count }

// Get returns the byte slice for element i.
func (f FixedArray) Get(buf []byte, i uint32) []byte {
	start := f.offset + i*f.elemSize
	return buf[start : start+f.elemSize]
}

// IndexOf returns the index of the first element structurally equal to
// v (byte-for-byte, since a fixed-array element never contains dynamic
// data per its own layout), or -1 if none matches.
func (f FixedArray) IndexOf(buf []byte, v []byte) int {
	for i := uint32(0); i < f.count; i++ {
		if bytes.Equal(f.Get(buf, i), v) {
			return int(i)
		}
	}
	return -1
}

// Free releases every element's dynamic data in place (the array's own
// storage is inline and not itself freed).
func (f FixedArray) Free(buf []byte, pool *mem.Pool, elemFree ElemFreeFunc) error {
	if elemFree == nil {
		return nil
	}
	for i := uint32(0); i < f.count; i++ {
		if err := elemFree(f.Get(buf, i), pool); err != nil {
			return err
		}
	}
	return nil
}

// CopyFrom deep-copies each element from src into this view's slots.
func (f FixedArray) CopyFrom(buf []byte, pool *mem.Pool, src []byte, srcView FixedArray, elemCopy ElemCopyFunc) error {
	for i := uint32(0); i < f.count; i++ {
		dst := f.Get(buf, i)
		s := srcView.Get(src, i)
		if elemCopy != nil {
			if err := elemCopy(dst, s, pool); err != nil {
				return err
			}
			continue
		}
		copy(dst, s)
	}
	return nil
}
