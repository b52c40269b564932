package mem

import "testing"

func TestAllocateWriteReadFree(t *testing.T) {
	p := NewPool(4096)
	ptr := p.Allocate(64, "test", 0)
	if ptr == 0 {
		t.Fatalf("Allocate returned null pointer")
	}
	if ptr%AlignSize != 0 {
		t.Fatalf("Allocate returned misaligned offset %d", ptr)
	}
	region := p.Read(ptr, 64)
	for i := range region {
		region[i] = byte(i)
	}
	region2 := p.Read(ptr, 64)
	for i := range region2 {
		if region2[i] != byte(i) {
			t.Fatalf("Read()[%d] = %d, want %d", i, region2[i], byte(i))
		}
	}
	p.Free(ptr)
}

func TestAllocateZeroOnFull(t *testing.T) {
	p := NewPool(128)
	ptr := p.Allocate(1<<20, "test", 0)
	if ptr != 0 {
		t.Fatalf("Allocate(oversized) = %d, want 0", ptr)
	}
}

func TestWalkPoolCoversWholeBuffer(t *testing.T) {
	p := NewPool(4096)
	a := p.Allocate(100, "a", 0)
	b := p.Allocate(200, "b", 0)
	c := p.Allocate(50, "c", 0)
	p.Free(b)

	var total uint64
	var sawA, sawC bool
	p.WalkPool(func(offset, size uint32, used bool) {
		total += uint64(size) + blockHeaderSize
		if offset == a && used {
			sawA = true
		}
		if offset == c && used {
			sawC = true
		}
	})
	if !sawA || !sawC {
		t.Fatalf("WalkPool did not report live allocations as used: a=%v c=%v", sawA, sawC)
	}
	if total != uint64(len(p.buf)) {
		t.Fatalf("WalkPool block sizes sum to %d, want %d", total, len(p.buf))
	}
}

func TestNoAdjacentFreeBlocksAfterFree(t *testing.T) {
	p := NewPool(4096)
	var ptrs []uint32
	for i := 0; i < 10; i++ {
		ptr := p.Allocate(48, "x", 0)
		if ptr == 0 {
			t.Fatalf("Allocate failed at i=%d", i)
		}
		ptrs = append(ptrs, ptr)
	}
	// free every other allocation, forcing coalescing opportunities with
	// whichever neighbours also end up free
	for i := 0; i < len(ptrs); i += 2 {
		p.Free(ptrs[i])
	}
	for i := 1; i < len(ptrs); i += 3 {
		p.Free(ptrs[i])
	}

	var prevFree, prevSeen bool
	p.WalkPool(func(offset, size uint32, used bool) {
		if prevSeen && prevFree && !used {
			t.Fatalf("two adjacent free blocks at offset %d", offset)
		}
		prevFree = !used
		prevSeen = true
	})
}

func TestFreeAllRestoresSingleFreeBlock(t *testing.T) {
	p := NewPool(4096)
	var ptrs []uint32
	for i := 0; i < 8; i++ {
		ptrs = append(ptrs, p.Allocate(32, "x", 0))
	}
	for _, ptr := range ptrs {
		p.Free(ptr)
	}
	stats := p.Stats()
	if stats.UsedBytes != 0 || stats.UsedBlocks != 0 {
		t.Fatalf("Stats after freeing everything = %+v, want all-free", stats)
	}
	if stats.FreeBlocks != 1 {
		t.Fatalf("FreeBlocks = %d, want 1 (full coalescing back to a single block)", stats.FreeBlocks)
	}
}

func TestFreeIsIdempotentAndNullSafe(t *testing.T) {
	p := NewPool(4096)
	p.Free(0) // must not panic
	ptr := p.Allocate(32, "x", 0)
	p.Free(ptr)
	p.Free(ptr) // second free of the same pointer must not panic or corrupt state
	stats := p.Stats()
	if stats.FreeBlocks != 1 {
		t.Fatalf("FreeBlocks after double-free = %d, want 1", stats.FreeBlocks)
	}
}

func TestCascadingChildFree(t *testing.T) {
	p := NewPool(4096)
	parent := p.Allocate(64, "parent", 0)
	child1 := p.Allocate(32, "child1", parent)
	child2 := p.Allocate(32, "child2", parent)
	grandchild := p.Allocate(16, "grandchild", child1)

	p.Free(parent)

	if _, ok := p.allocs[parent]; ok {
		t.Fatalf("parent still tracked after Free")
	}
	if _, ok := p.allocs[child1]; ok {
		t.Fatalf("child1 still tracked after parent Free")
	}
	if _, ok := p.allocs[child2]; ok {
		t.Fatalf("child2 still tracked after parent Free")
	}
	if _, ok := p.allocs[grandchild]; ok {
		t.Fatalf("grandchild still tracked after parent Free")
	}
	stats := p.Stats()
	if stats.UsedBlocks != 0 {
		t.Fatalf("UsedBlocks after cascading free = %d, want 0", stats.UsedBlocks)
	}
}

func TestReallocateGrowPreservesData(t *testing.T) {
	p := NewPool(4096)
	ptr := p.Allocate(16, "x", 0)
	region := p.Read(ptr, 16)
	for i := range region {
		region[i] = byte(i + 1)
	}
	newPtr := p.Reallocate(ptr, 128, "x", 0)
	if newPtr == 0 {
		t.Fatalf("Reallocate(grow) returned 0")
	}
	grown := p.Read(newPtr, 16)
	for i := range grown {
		if grown[i] != byte(i+1) {
			t.Fatalf("Reallocate(grow) lost data at %d: got %d want %d", i, grown[i], i+1)
		}
	}
}

func TestReallocateShrinkPreservesData(t *testing.T) {
	p := NewPool(4096)
	ptr := p.Allocate(128, "x", 0)
	region := p.Read(ptr, 128)
	for i := range region {
		region[i] = byte(i)
	}
	newPtr := p.Reallocate(ptr, 16, "x", 0)
	if newPtr == 0 {
		t.Fatalf("Reallocate(shrink) returned 0")
	}
	shrunk := p.Read(newPtr, 16)
	for i := range shrunk {
		if shrunk[i] != byte(i) {
			t.Fatalf("Reallocate(shrink) lost data at %d: got %d want %d", i, shrunk[i], i)
		}
	}
}

func TestReallocateReparentsChildren(t *testing.T) {
	p := NewPool(4096)
	// force the fallback (move) path by allocating neighbours that block
	// in-place growth
	parent := p.Allocate(16, "parent", 0)
	blocker := p.Allocate(16, "blocker", 0)
	_ = blocker
	child := p.Allocate(16, "child", parent)

	newParent := p.Reallocate(parent, 512, "parent", 0)
	if newParent == 0 {
		t.Fatalf("Reallocate returned 0")
	}
	if newParent == parent {
		t.Fatalf("expected Reallocate to move the block given a blocking neighbour")
	}
	info, ok := p.allocs[newParent]
	if !ok {
		t.Fatalf("newParent not tracked in allocs")
	}
	found := false
	for _, c := range info.children {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatalf("child not reparented under newParent")
	}
	childInfo, ok := p.allocs[child]
	if !ok {
		t.Fatalf("child no longer tracked after parent reallocation")
	}
	if childInfo.parent != newParent {
		t.Fatalf("child.parent = %d, want %d", childInfo.parent, newParent)
	}

	// freeing the new parent must still free the (correctly reparented)
	// child exactly once, not double-free it via the stale old allocInfo
	p.Free(newParent)
	if _, ok := p.allocs[child]; ok {
		t.Fatalf("child still tracked after reparented-parent Free")
	}
}

func TestSplitAndCoalesceScenario(t *testing.T) {
	p := NewPool(4096)
	a := p.Allocate(64, "a", 0)
	b := p.Allocate(64, "b", 0)
	c := p.Allocate(64, "c", 0)

	statsBefore := p.Stats()
	if statsBefore.UsedBlocks != 3 {
		t.Fatalf("UsedBlocks = %d, want 3", statsBefore.UsedBlocks)
	}

	p.Free(b)
	midStats := p.Stats()
	if midStats.UsedBlocks != 2 {
		t.Fatalf("UsedBlocks after freeing b = %d, want 2", midStats.UsedBlocks)
	}

	p.Free(a)
	// a and b's former blocks must have coalesced into a single free block
	var freeBlockAtA int
	p.WalkPool(func(offset, size uint32, used bool) {
		if offset == a && !used {
			freeBlockAtA++
		}
	})
	if freeBlockAtA != 1 {
		t.Fatalf("expected a single coalesced free block at a's offset, got %d matches", freeBlockAtA)
	}

	p.Free(c)
	final := p.Stats()
	if final.UsedBlocks != 0 || final.FreeBlocks != 1 {
		t.Fatalf("Stats after freeing everything = %+v, want fully coalesced", final)
	}
}
