package view

import (
	"encoding/binary"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

const sparseAbsent = 0xFFFFFFFF

const (
	sparseHeaderDenseLen  = 0
	sparseHeaderDenseCap  = 4
	sparseHeaderDensePtr  = 8
	sparseHeaderSparsePtr = 12
	sparseHeaderSparseCap = 16
	sparseHeaderSize      = 20
)

// SparseSet is a view over a classic dense/sparse pair of u32 arrays:
// dense holds the member values in insertion (then swap-remove) order,
// sparse is indexed directly by value and holds that value's index into
// dense, or sparseAbsent when the value is not a member (spec.md §4.2
// "Sparse set of u32, used for entity membership tests").
type SparseSet struct {
	offset uint32
	layout schema.PropertyLayout
}

func NewSparseSet(offset uint32, layout schema.PropertyLayout) (SparseSet, error) {
	if err := checkAlign(offset, 4); err != nil {
		return SparseSet{}, err
	}
	return SparseSet{offset: offset, layout: layout}, nil
}

func (s SparseSet) Offset() uint32               { return s.offset }
func (s SparseSet) Layout() schema.PropertyLayout { return s.layout }

func (s SparseSet) controlPtr(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf[s.offset:]) }
func (s SparseSet) setControlPtr(buf []byte, ptr uint32) {
	binary.LittleEndian.PutUint32(buf[s.offset:], ptr)
}

// Len returns the number of members currently stored.
func (s SparseSet) Len(buf []byte, pool *mem.Pool) uint32 {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return 0
	}
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDenseLen:])
}

func (s SparseSet) ensureInit(buf []byte, pool *mem.Pool, owner string) (uint32, error) {
	ptr := s.controlPtr(buf)
	if ptr != 0 {
		return ptr, nil
	}
	ptr = pool.Allocate(sparseHeaderSize, owner, 0)
	if ptr == 0 {
		return 0, ErrOutOfMemory
	}
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDenseLen:], 0)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDenseCap:], 0)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDensePtr:], 0)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:], 0)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderSparseCap:], 0)
	s.setControlPtr(buf, ptr)
	return ptr, nil
}

func (s SparseSet) sparseIndexFor(pool *mem.Pool, ptr, value uint32) uint32 {
	sparseCap := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparseCap:])
	if value >= sparseCap {
		return sparseAbsent
	}
	sparsePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:])
	if sparsePtr == 0 {
		return sparseAbsent
	}
	return binary.LittleEndian.Uint32(pool.Bytes()[sparsePtr+value*4:])
}

// Contains reports whether value is a member.
func (s SparseSet) Contains(buf []byte, pool *mem.Pool, value uint32) bool {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return false
	}
	idx := s.sparseIndexFor(pool, ptr, value)
	if idx == sparseAbsent {
		return false
	}
	denseLen := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDenseLen:])
	if idx >= denseLen {
		return false
	}
	densePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDensePtr:])
	return binary.LittleEndian.Uint32(pool.Bytes()[densePtr+idx*4:]) == value
}

func (s SparseSet) growSparse(pool *mem.Pool, ptr uint32, owner string, needCap uint32) error {
	oldCap := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparseCap:])
	if needCap <= oldCap {
		return nil
	}
	newCap := oldCap * 2
	if newCap < needCap {
		newCap = needCap
	}
	if newCap < 8 {
		newCap = 8
	}
	oldPtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:])
	newPtr := pool.Reallocate(oldPtr, newCap*4, owner, ptr)
	if newPtr == 0 {
		return ErrOutOfMemory
	}
	for i := oldCap; i < newCap; i++ {
		binary.LittleEndian.PutUint32(pool.Bytes()[newPtr+i*4:], sparseAbsent)
	}
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:], newPtr)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderSparseCap:], newCap)
	return nil
}

// Insert appends value if not already present, returning true if it was
// newly added.
func (s SparseSet) Insert(buf []byte, pool *mem.Pool, owner string, value uint32) (bool, error) {
	ptr, err := s.ensureInit(buf, pool, owner)
	if err != nil {
		return false, err
	}
	if s.Contains(buf, pool, value) {
		return false, nil
	}
	if err := s.growSparse(pool, ptr, owner, value+1); err != nil {
		return false, err
	}
	denseLen := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDenseLen:])
	denseCap := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDenseCap:])
	densePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDensePtr:])
	if denseLen >= denseCap {
		newCap := denseCap * 2
		if newCap == 0 {
			newCap = 4
		}
		newDensePtr := pool.Reallocate(densePtr, newCap*4, owner, ptr)
		if newDensePtr == 0 {
			return false, ErrOutOfMemory
		}
		densePtr = newDensePtr
		binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDensePtr:], densePtr)
		binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDenseCap:], newCap)
	}
	binary.LittleEndian.PutUint32(pool.Bytes()[densePtr+denseLen*4:], value)
	sparsePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:])
	binary.LittleEndian.PutUint32(pool.Bytes()[sparsePtr+value*4:], denseLen)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDenseLen:], denseLen+1)
	return true, nil
}

// Remove deletes value if present via swap-with-last, returning whether
// it was found.
func (s SparseSet) Remove(buf []byte, pool *mem.Pool, value uint32) bool {
	ptr := s.controlPtr(buf)
	if ptr == 0 || !s.Contains(buf, pool, value) {
		return false
	}
	denseLen := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDenseLen:])
	densePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDensePtr:])
	sparsePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:])

	idx := binary.LittleEndian.Uint32(pool.Bytes()[sparsePtr+value*4:])
	lastIdx := denseLen - 1
	lastValue := binary.LittleEndian.Uint32(pool.Bytes()[densePtr+lastIdx*4:])

	binary.LittleEndian.PutUint32(pool.Bytes()[densePtr+idx*4:], lastValue)
	binary.LittleEndian.PutUint32(pool.Bytes()[sparsePtr+lastValue*4:], idx)
	binary.LittleEndian.PutUint32(pool.Bytes()[sparsePtr+value*4:], sparseAbsent)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+sparseHeaderDenseLen:], lastIdx)
	return true
}

// Each calls visit(value) for every member, in dense (insertion/swap)
// order.
func (s SparseSet) Each(buf []byte, pool *mem.Pool, visit func(value uint32)) {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return
	}
	denseLen := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDenseLen:])
	densePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDensePtr:])
	for i := uint32(0); i < denseLen; i++ {
		visit(binary.LittleEndian.Uint32(pool.Bytes()[densePtr+i*4:]))
	}
}

// Free releases the dense array, sparse array, and header allocation.
// Members are plain u32s with no dynamic data of their own.
func (s SparseSet) Free(buf []byte, pool *mem.Pool) error {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return nil
	}
	if densePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderDensePtr:]); densePtr != 0 {
		pool.Free(densePtr)
	}
	if sparsePtr := binary.LittleEndian.Uint32(pool.Bytes()[ptr+sparseHeaderSparsePtr:]); sparsePtr != 0 {
		pool.Free(sparsePtr)
	}
	pool.Free(ptr)
	s.setControlPtr(buf, 0)
	return nil
}
