package kiln

import (
	"sort"
	"strings"

	"github.com/TheBitDrifter/mask"
	"github.com/kiln-engine/kiln/mem"
)

type archetypeID uint32

// column is one component's row storage within an archetype: a
// geometrically-growing allocation in the World's mem.Pool, addressed as
// ptr + row*layout.TotalSize.
type column struct {
	component Component
	ptr       uint32
	cap       uint32
}

func (c *column) rowOffset(row uint32) uint32 {
	return c.ptr + row*c.component.Layout().TotalSize
}

// archetype is a dense table of entities sharing exactly one component
// signature, generalizing warehouse's archetype (itself a thin id+table.Table
// pair) into an allocator-addressed row store: every column lives in the
// same mem.Pool the rest of the World shares, rather than in a reflect-typed
// table.Table column.
type archetype struct {
	id         archetypeID
	signature  []string
	entityMask mask.Mask
	columns    map[string]*column
	entities   []uint32
}

// signatureKey returns the canonical, sort-stable key a component set maps to
// an archetype by (warehouse resolves this via a mask.Mask instead; kiln
// keeps the mask for query evaluation but additionally needs a stable string
// key since the allocator never offers a reflect type to hash on).
func signatureKey(components []Component) string {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name()
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}

func newArchetype(id archetypeID, components []Component, bitOf map[string]uint32) *archetype {
	names := make([]string, len(components))
	columns := make(map[string]*column, len(components))
	var m mask.Mask
	for i, c := range components {
		names[i] = c.Name()
		columns[c.Name()] = &column{component: c}
		m.Mark(bitOf[c.Name()])
	}
	sort.Strings(names)
	return &archetype{
		id:         id,
		signature:  names,
		entityMask: m,
		columns:    columns,
	}
}

func (a *archetype) ID() uint32    { return uint32(a.id) }
func (a *archetype) Len() int      { return len(a.entities) }
func (a *archetype) Mask() mask.Mask { return a.entityMask }

func (a *archetype) hasComponent(name string) bool {
	_, ok := a.columns[name]
	return ok
}

// pushRow grows every column to hold one more row, zeroes the new slot, and
// appends entityID to the dense entity list, returning the new row index.
func (a *archetype) pushRow(pool *mem.Pool, entityID uint32) uint32 {
	row := uint32(len(a.entities))
	for _, col := range a.columns {
		a.ensureCapacity(pool, col, row+1)
		off := col.rowOffset(row)
		size := col.component.Layout().TotalSize
		buf := pool.Bytes()[off : off+size]
		for i := range buf {
			buf[i] = 0
		}
	}
	a.entities = append(a.entities, entityID)
	return row
}

func (a *archetype) ensureCapacity(pool *mem.Pool, col *column, need uint32) {
	if need <= col.cap {
		return
	}
	newCap := col.cap * 2
	if newCap < need {
		newCap = need
	}
	if newCap < 4 {
		newCap = 4
	}
	size := col.component.Layout().TotalSize
	newPtr := pool.Reallocate(col.ptr, newCap*size, "archetype.column:"+col.component.Name(), 0)
	col.ptr = newPtr
	col.cap = newCap
}

// removeRow frees row's dynamic data, then swaps the last row into its
// place (the classic swap-and-pop warehouse's storage.go also relies on via
// table.DeleteEntries), returning the entity ID that was moved into row, or
// 0 if row was already the last row.
func (a *archetype) removeRow(pool *mem.Pool, row uint32) uint32 {
	return a.popRow(pool, row, true)
}

// evictRow swaps row out of the archetype without freeing its dynamic
// data, for use when the row's ownership is being relocated to another
// archetype (AddComponent/RemoveComponent) rather than destroyed.
func (a *archetype) evictRow(pool *mem.Pool, row uint32) uint32 {
	return a.popRow(pool, row, false)
}

func (a *archetype) popRow(pool *mem.Pool, row uint32, free bool) uint32 {
	last := uint32(len(a.entities) - 1)
	for _, col := range a.columns {
		size := col.component.Layout().TotalSize
		rowBuf := pool.Bytes()[col.rowOffset(row) : col.rowOffset(row)+size]
		if free && col.component.Layout().HasDynamicData {
			freeRow(rowBuf, pool, col.component.Layout())
		}
		if row != last {
			lastBuf := pool.Bytes()[col.rowOffset(last) : col.rowOffset(last)+size]
			copy(rowBuf, lastBuf)
		}
	}
	moved := uint32(0)
	if row != last {
		moved = a.entities[last]
		a.entities[row] = moved
	}
	a.entities = a.entities[:last]
	return moved
}

func (a *archetype) rowBytes(pool *mem.Pool, componentName string, row uint32) []byte {
	col, ok := a.columns[componentName]
	if !ok {
		return nil
	}
	size := col.component.Layout().TotalSize
	off := col.rowOffset(row)
	return pool.Bytes()[off : off+size]
}
