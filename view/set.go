package view

import (
	"encoding/binary"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

const (
	setHeaderBucketCount = 0
	setHeaderCount       = 4
	setHeaderBuckets     = 8
	setHeaderSize        = 12
)

// HashSet is a view over a chained hash table of unique elements,
// sharing its node/bucket mechanics with HashMap but storing no value
// payload (spec.md §4.2 "Hash map and hash set").
type HashSet struct {
	offset    uint32
	elemSize  uint32
	elemAlign uint32
	layout    schema.PropertyLayout
}

func NewHashSet(offset, elemSize, elemAlign uint32, layout schema.PropertyLayout) (HashSet, error) {
	if err := checkAlign(offset, 4); err != nil {
		return HashSet{}, err
	}
	return HashSet{offset: offset, elemSize: elemSize, elemAlign: elemAlign, layout: layout}, nil
}

func (s HashSet) Offset() uint32               { return s.offset }
func (s HashSet) Layout() schema.PropertyLayout { return s.layout }

func (s HashSet) controlPtr(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf[s.offset:]) }
func (s HashSet) setControlPtr(buf []byte, ptr uint32) {
	binary.LittleEndian.PutUint32(buf[s.offset:], ptr)
}

func (s HashSet) nodeLayout() (elemOff, nodeSize uint32) {
	align := s.elemAlign
	if align < 4 {
		align = 4
	}
	elemOff = alignUpTo(nodeNextFieldSize, align)
	nodeSize = elemOff + s.elemSize
	return
}

func (s HashSet) Count(buf []byte, pool *mem.Pool) uint32 {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return 0
	}
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+setHeaderCount:])
}

func (s HashSet) bucketCount(pool *mem.Pool, ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+setHeaderBucketCount:])
}

func (s HashSet) bucketArrayPtr(pool *mem.Pool, ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+setHeaderBuckets:])
}

func (s HashSet) ensureInit(buf []byte, pool *mem.Pool, owner string) (uint32, error) {
	ptr := s.controlPtr(buf)
	if ptr != 0 {
		return ptr, nil
	}
	ptr = pool.Allocate(setHeaderSize, owner, 0)
	if ptr == 0 {
		return 0, ErrOutOfMemory
	}
	bucketCount := uint32(1) << initialBucketCountLog2
	bucketsPtr := pool.Allocate(bucketCount*4, owner, ptr)
	if bucketsPtr == 0 {
		return 0, ErrOutOfMemory
	}
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderBucketCount:], bucketCount)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderCount:], 0)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderBuckets:], bucketsPtr)
	s.setControlPtr(buf, ptr)
	return ptr, nil
}

func (s HashSet) findNode(pool *mem.Pool, ptr uint32, elem []byte, hash HashFunc, eq EqualFunc) uint32 {
	bc := s.bucketCount(pool, ptr)
	bucketsPtr := s.bucketArrayPtr(pool, ptr)
	idx := hash(elem) % uint64(bc)
	elemOff, _ := s.nodeLayout()
	node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:])
	for node != 0 {
		candidate := pool.Bytes()[node+elemOff : node+elemOff+s.elemSize]
		if eq(candidate, elem) {
			return node
		}
		node = binary.LittleEndian.Uint32(pool.Bytes()[node:])
	}
	return 0
}

// Contains reports whether elem is a member of the set.
func (s HashSet) Contains(buf []byte, pool *mem.Pool, elem []byte, hash HashFunc, eq EqualFunc) bool {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return false
	}
	return s.findNode(pool, ptr, elem, hash, eq) != 0
}

// Add inserts elem if not already present, rehashing to double capacity
// when the load factor reaches 0.75. Returns true if elem was newly
// added.
func (s HashSet) Add(buf []byte, pool *mem.Pool, owner string, elem []byte, hash HashFunc, eq EqualFunc) (bool, error) {
	ptr, err := s.ensureInit(buf, pool, owner)
	if err != nil {
		return false, err
	}
	if s.findNode(pool, ptr, elem, hash, eq) != 0 {
		return false, nil
	}
	count := binary.LittleEndian.Uint32(pool.Bytes()[ptr+setHeaderCount:])
	bc := s.bucketCount(pool, ptr)
	if (count+1)*4 >= bc*3 {
		if err := s.rehash(pool, ptr, bc*2, hash); err != nil {
			return false, err
		}
	}
	elemOff, nodeSize := s.nodeLayout()
	node := pool.Allocate(nodeSize, owner, ptr)
	if node == 0 {
		return false, ErrOutOfMemory
	}
	copy(pool.Bytes()[node+elemOff:node+elemOff+s.elemSize], elem)

	bucketsPtr := s.bucketArrayPtr(pool, ptr)
	idx := hash(elem) % uint64(s.bucketCount(pool, ptr))
	head := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:])
	binary.LittleEndian.PutUint32(pool.Bytes()[node:], head)
	binary.LittleEndian.PutUint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:], node)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderCount:], count+1)
	return true, nil
}

func (s HashSet) rehash(pool *mem.Pool, ptr uint32, newBucketCount uint32, hash HashFunc) error {
	oldBucketsPtr := s.bucketArrayPtr(pool, ptr)
	oldBucketCount := s.bucketCount(pool, ptr)

	newBucketsPtr := pool.Allocate(newBucketCount*4, "hashset.buckets", ptr)
	if newBucketsPtr == 0 {
		return ErrOutOfMemory
	}
	elemOff, _ := s.nodeLayout()
	for i := uint32(0); i < oldBucketCount; i++ {
		node := binary.LittleEndian.Uint32(pool.Bytes()[oldBucketsPtr+i*4:])
		for node != 0 {
			next := binary.LittleEndian.Uint32(pool.Bytes()[node:])
			elem := pool.Bytes()[node+elemOff : node+elemOff+s.elemSize]
			idx := hash(elem) % uint64(newBucketCount)
			head := binary.LittleEndian.Uint32(pool.Bytes()[newBucketsPtr+uint32(idx)*4:])
			binary.LittleEndian.PutUint32(pool.Bytes()[node:], head)
			binary.LittleEndian.PutUint32(pool.Bytes()[newBucketsPtr+uint32(idx)*4:], node)
			node = next
		}
	}
	pool.Free(oldBucketsPtr)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderBucketCount:], newBucketCount)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderBuckets:], newBucketsPtr)
	return nil
}

// Remove deletes elem if present, returning whether it was found.
func (s HashSet) Remove(buf []byte, pool *mem.Pool, elem []byte, hash HashFunc, eq EqualFunc) bool {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return false
	}
	bc := s.bucketCount(pool, ptr)
	bucketsPtr := s.bucketArrayPtr(pool, ptr)
	idx := hash(elem) % uint64(bc)
	elemOff, _ := s.nodeLayout()
	var prev uint32
	node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:])
	for node != 0 {
		candidate := pool.Bytes()[node+elemOff : node+elemOff+s.elemSize]
		next := binary.LittleEndian.Uint32(pool.Bytes()[node:])
		if eq(candidate, elem) {
			if prev == 0 {
				binary.LittleEndian.PutUint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:], next)
			} else {
				binary.LittleEndian.PutUint32(pool.Bytes()[prev:], next)
			}
			pool.Free(node)
			count := binary.LittleEndian.Uint32(pool.Bytes()[ptr+setHeaderCount:])
			binary.LittleEndian.PutUint32(pool.Bytes()[ptr+setHeaderCount:], count-1)
			return true
		}
		prev = node
		node = next
	}
	return false
}

// Each calls visit(elem) for every member, in unspecified order.
func (s HashSet) Each(buf []byte, pool *mem.Pool, visit func(elem []byte)) {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return
	}
	bc := s.bucketCount(pool, ptr)
	bucketsPtr := s.bucketArrayPtr(pool, ptr)
	elemOff, _ := s.nodeLayout()
	for i := uint32(0); i < bc; i++ {
		node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+i*4:])
		for node != 0 {
			visit(pool.Bytes()[node+elemOff : node+elemOff+s.elemSize])
			node = binary.LittleEndian.Uint32(pool.Bytes()[node:])
		}
	}
}

// Free releases every entry node, the bucket array, and the header
// allocation. Set elements never carry dynamic data of their own.
func (s HashSet) Free(buf []byte, pool *mem.Pool) error {
	ptr := s.controlPtr(buf)
	if ptr == 0 {
		return nil
	}
	pool.Free(ptr)
	s.setControlPtr(buf, 0)
	return nil
}
