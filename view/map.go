package view

import (
	"encoding/binary"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// HashFunc computes a structural hash for a key's raw bytes; for
// structured keys this is the key type's hash() method, for primitive
// keys an identity/integer hash (spec.md §4.2 "Hash map and hash set").
type HashFunc func(key []byte) uint64

// EqualFunc compares two keys' raw bytes for equality.
type EqualFunc func(a, b []byte) bool

const (
	mapHeaderBucketCount = 0 // u32
	mapHeaderCount       = 4 // u32
	mapHeaderBuckets     = 8 // u32 pointer to bucket array
	mapHeaderSize        = 12

	nodeNextFieldSize = 4
)

const initialBucketCountLog2 = 2 // 4 buckets

// HashMap is a view over a chained hash table: a separately allocated
// bucket array of node-offset heads, and individually allocated entry
// nodes {next_in_bucket, key, value}.
type HashMap struct {
	offset   uint32
	keySize  uint32
	valSize  uint32
	keyAlign uint32
	valAlign uint32
	layout   schema.PropertyLayout
}

func NewHashMap(offset, keySize, valSize, keyAlign, valAlign uint32, layout schema.PropertyLayout) (HashMap, error) {
	if err := checkAlign(offset, 4); err != nil {
		return HashMap{}, err
	}
	return HashMap{offset: offset, keySize: keySize, valSize: valSize, keyAlign: keyAlign, valAlign: valAlign, layout: layout}, nil
}

func (m HashMap) Offset() uint32               { return m.offset }
func (m HashMap) Layout() schema.PropertyLayout { return m.layout }

func (m HashMap) controlPtr(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf[m.offset:]) }
func (m HashMap) setControlPtr(buf []byte, ptr uint32) {
	binary.LittleEndian.PutUint32(buf[m.offset:], ptr)
}

// nodeLayout returns {keyOffset, valOffset, nodeSize} for an entry node,
// padding key/value to the max of pointer alignment and their own
// element alignment per spec.md §4.2.
func (m HashMap) nodeLayout() (keyOff, valOff, nodeSize uint32) {
	align := m.keyAlign
	if align < 4 {
		align = 4
	}
	keyOff = alignUpTo(nodeNextFieldSize, align)
	valAlign := m.valAlign
	if valAlign < 4 {
		valAlign = 4
	}
	valOff = alignUpTo(keyOff+m.keySize, valAlign)
	nodeSize = valOff + m.valSize
	return
}

func alignUpTo(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// Count returns the number of entries currently stored.
func (m HashMap) Count(buf []byte, pool *mem.Pool) uint32 {
	ptr := m.controlPtr(buf)
	if ptr == 0 {
		return 0
	}
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+mapHeaderCount:])
}

func (m HashMap) bucketCount(pool *mem.Pool, ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+mapHeaderBucketCount:])
}

func (m HashMap) bucketArrayPtr(pool *mem.Pool, ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(pool.Bytes()[ptr+mapHeaderBuckets:])
}

func (m HashMap) ensureInit(buf []byte, pool *mem.Pool, owner string) (uint32, error) {
	ptr := m.controlPtr(buf)
	if ptr != 0 {
		return ptr, nil
	}
	ptr = pool.Allocate(mapHeaderSize, owner, 0)
	if ptr == 0 {
		return 0, ErrOutOfMemory
	}
	bucketCount := uint32(1) << initialBucketCountLog2
	bucketsPtr := pool.Allocate(bucketCount*4, owner, ptr)
	if bucketsPtr == 0 {
		return 0, ErrOutOfMemory
	}
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderBucketCount:], bucketCount)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderCount:], 0)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderBuckets:], bucketsPtr)
	m.setControlPtr(buf, ptr)
	return ptr, nil
}

// Get returns the value bytes for key, and whether it was found.
func (m HashMap) Get(buf []byte, pool *mem.Pool, key []byte, hash HashFunc, eq EqualFunc) ([]byte, bool) {
	ptr := m.controlPtr(buf)
	if ptr == 0 {
		return nil, false
	}
	node := m.findNode(pool, ptr, key, hash, eq)
	if node == 0 {
		return nil, false
	}
	_, valOff, _ := m.nodeLayout()
	return pool.Bytes()[node+valOff : node+valOff+m.valSize], true
}

func (m HashMap) findNode(pool *mem.Pool, ptr uint32, key []byte, hash HashFunc, eq EqualFunc) uint32 {
	bc := m.bucketCount(pool, ptr)
	bucketsPtr := m.bucketArrayPtr(pool, ptr)
	idx := hash(key) % uint64(bc)
	keyOff, _, _ := m.nodeLayout()
	node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:])
	for node != 0 {
		candidate := pool.Bytes()[node+keyOff : node+keyOff+m.keySize]
		if eq(candidate, key) {
			return node
		}
		node = binary.LittleEndian.Uint32(pool.Bytes()[node:])
	}
	return 0
}

// Set inserts or overwrites the value for key, rehashing to double
// capacity when the load factor reaches 0.75.
func (m HashMap) Set(buf []byte, pool *mem.Pool, owner string, key, val []byte, hash HashFunc, eq EqualFunc) error {
	ptr, err := m.ensureInit(buf, pool, owner)
	if err != nil {
		return err
	}
	if node := m.findNode(pool, ptr, key, hash, eq); node != 0 {
		_, valOff, _ := m.nodeLayout()
		copy(pool.Bytes()[node+valOff:node+valOff+m.valSize], val)
		return nil
	}
	count := binary.LittleEndian.Uint32(pool.Bytes()[ptr+mapHeaderCount:])
	bc := m.bucketCount(pool, ptr)
	if (count+1)*4 >= bc*3 { // load factor >= 0.75
		if err := m.rehash(pool, ptr, bc*2, hash); err != nil {
			return err
		}
	}
	_, _, nodeSize := m.nodeLayout()
	keyOff, valOff, _ := m.nodeLayout()
	node := pool.Allocate(nodeSize, owner, ptr)
	if node == 0 {
		return ErrOutOfMemory
	}
	copy(pool.Bytes()[node+keyOff:node+keyOff+m.keySize], key)
	copy(pool.Bytes()[node+valOff:node+valOff+m.valSize], val)

	bucketsPtr := m.bucketArrayPtr(pool, ptr)
	idx := hash(key) % uint64(m.bucketCount(pool, ptr))
	head := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:])
	binary.LittleEndian.PutUint32(pool.Bytes()[node:], head)
	binary.LittleEndian.PutUint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:], node)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderCount:], count+1)
	return nil
}

// rehash grows the bucket array to newBucketCount, reusing every
// existing entry node (no per-entry reallocation) per spec.md §4.2, and
// re-buckets each node with the same hash the map's lookups use.
func (m HashMap) rehash(pool *mem.Pool, ptr uint32, newBucketCount uint32, hash HashFunc) error {
	oldBucketsPtr := m.bucketArrayPtr(pool, ptr)
	oldBucketCount := m.bucketCount(pool, ptr)

	newBucketsPtr := pool.Allocate(newBucketCount*4, "hashmap.buckets", ptr)
	if newBucketsPtr == 0 {
		return ErrOutOfMemory
	}
	keyOff, _, _ := m.nodeLayout()
	for i := uint32(0); i < oldBucketCount; i++ {
		node := binary.LittleEndian.Uint32(pool.Bytes()[oldBucketsPtr+i*4:])
		for node != 0 {
			next := binary.LittleEndian.Uint32(pool.Bytes()[node:])
			key := pool.Bytes()[node+keyOff : node+keyOff+m.keySize]
			// re-derive hash from a fresh read since the key bytes are
			// unchanged by the move; caller's hash function is pure.
			idx := hash(key) % uint64(newBucketCount)
			head := binary.LittleEndian.Uint32(pool.Bytes()[newBucketsPtr+uint32(idx)*4:])
			binary.LittleEndian.PutUint32(pool.Bytes()[node:], head)
			binary.LittleEndian.PutUint32(pool.Bytes()[newBucketsPtr+uint32(idx)*4:], node)
			node = next
		}
	}
	pool.Free(oldBucketsPtr)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderBucketCount:], newBucketCount)
	binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderBuckets:], newBucketsPtr)
	return nil
}

// fnv64 is the 64-bit FNV-1a hash of b's raw bytes.
func fnv64(b []byte) uint64 {
	var h uint64 = 1469598103934665603
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// Delete removes key if present, returning whether it was found.
func (m HashMap) Delete(buf []byte, pool *mem.Pool, key []byte, hash HashFunc, eq EqualFunc, valFree ElemFreeFunc) bool {
	ptr := m.controlPtr(buf)
	if ptr == 0 {
		return false
	}
	bc := m.bucketCount(pool, ptr)
	bucketsPtr := m.bucketArrayPtr(pool, ptr)
	idx := hash(key) % uint64(bc)
	keyOff, valOff, _ := m.nodeLayout()
	var prev uint32
	node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:])
	for node != 0 {
		candidate := pool.Bytes()[node+keyOff : node+keyOff+m.keySize]
		next := binary.LittleEndian.Uint32(pool.Bytes()[node:])
		if eq(candidate, key) {
			if prev == 0 {
				binary.LittleEndian.PutUint32(pool.Bytes()[bucketsPtr+uint32(idx)*4:], next)
			} else {
				binary.LittleEndian.PutUint32(pool.Bytes()[prev:], next)
			}
			if valFree != nil {
				valFree(pool.Bytes()[node+valOff:node+valOff+m.valSize], pool)
			}
			pool.Free(node)
			count := binary.LittleEndian.Uint32(pool.Bytes()[ptr+mapHeaderCount:])
			binary.LittleEndian.PutUint32(pool.Bytes()[ptr+mapHeaderCount:], count-1)
			return true
		}
		prev = node
		node = next
	}
	return false
}

// Each calls visit(key, value) for every entry, in unspecified order.
func (m HashMap) Each(buf []byte, pool *mem.Pool, visit func(key, val []byte)) {
	ptr := m.controlPtr(buf)
	if ptr == 0 {
		return
	}
	bc := m.bucketCount(pool, ptr)
	bucketsPtr := m.bucketArrayPtr(pool, ptr)
	keyOff, valOff, _ := m.nodeLayout()
	for i := uint32(0); i < bc; i++ {
		node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+i*4:])
		for node != 0 {
			visit(pool.Bytes()[node+keyOff:node+keyOff+m.keySize], pool.Bytes()[node+valOff:node+valOff+m.valSize])
			node = binary.LittleEndian.Uint32(pool.Bytes()[node:])
		}
	}
}

// Free releases every entry node (and, via valFree, their dynamic
// values), the bucket array, and the header allocation itself.
func (m HashMap) Free(buf []byte, pool *mem.Pool, valFree ElemFreeFunc) error {
	ptr := m.controlPtr(buf)
	if ptr == 0 {
		return nil
	}
	bc := m.bucketCount(pool, ptr)
	bucketsPtr := m.bucketArrayPtr(pool, ptr)
	_, valOff, _ := m.nodeLayout()
	for i := uint32(0); i < bc; i++ {
		node := binary.LittleEndian.Uint32(pool.Bytes()[bucketsPtr+i*4:])
		for node != 0 {
			next := binary.LittleEndian.Uint32(pool.Bytes()[node:])
			if valFree != nil {
				if err := valFree(pool.Bytes()[node+valOff:node+valOff+m.valSize], pool); err != nil {
					return err
				}
			}
			pool.Free(node)
			node = next
		}
	}
	pool.Free(ptr) // also frees bucketsPtr, tracked as its child
	m.setControlPtr(buf, 0)
	return nil
}
