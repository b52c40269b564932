package kiln

import "iter"

// Cursor iterates the entities matching a Query, archetype by archetype.
// Like warehouse's Cursor it locks the World for the duration of iteration
// (so archetype-mutating operations enqueue instead of running inline) and
// unlocks on Reset, draining the command buffer at that point.
type Cursor struct {
	query   QueryNode
	world   *World
	current *archetype

	storageIndex int
	entityIndex  int
	remaining    int

	initialized bool
	matched     []*archetype
	lockToken   uint32
}

// NewCursor creates a Cursor iterating w's entities matching node.
func NewCursor(node QueryNode, w *World) *Cursor {
	return &Cursor{query: node, world: w}
}

// Next advances to the next matching entity and reports whether one
// exists.
func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	if !c.initialized {
		c.Initialize()
	}
	for c.storageIndex < len(c.matched) {
		c.current = c.matched[c.storageIndex]
		c.remaining = c.current.Len()
		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.storageIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

// Entities returns an iterator over (row index, archetype) pairs matching
// the query, for range-over-func style iteration.
func (c *Cursor) Entities() iter.Seq2[int, *archetype] {
	return func(yield func(int, *archetype) bool) {
		c.Initialize()
		for c.storageIndex < len(c.matched) {
			c.current = c.matched[c.storageIndex]
			c.remaining = c.current.Len()
			for c.entityIndex < c.remaining {
				if !yield(c.entityIndex, c.current) {
					c.Reset()
					return
				}
				c.entityIndex++
			}
			c.entityIndex = 0
			c.storageIndex++
		}
		c.Reset()
	}
}

// Initialize locks the World and evaluates the query against every
// archetype, recording the matches Next/Entities will walk.
func (c *Cursor) Initialize() {
	if c.initialized {
		return
	}
	c.lockToken = c.world.Lock()
	c.matched = c.world.queryCache.LookupNode(c.query)
	if len(c.matched) > 0 {
		c.storageIndex = 0
		c.current = c.matched[0]
		c.remaining = c.current.Len()
	}
	c.initialized = true
}

// Reset clears the cursor's iteration state and releases the World lock
// taken by Initialize, flushing any commands enqueued while it held it.
func (c *Cursor) Reset() {
	if !c.initialized {
		return
	}
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matched = nil
	c.initialized = false
	c.world.Unlock(c.lockToken)
}

// CurrentEntity returns the entity handle at the cursor's current
// position.
func (c *Cursor) CurrentEntity() Entity {
	return c.entityAt(c.entityIndex - 1)
}

// EntityAtOffset returns the entity handle offset rows from the cursor's
// current position within the current archetype.
func (c *Cursor) EntityAtOffset(offset int) Entity {
	return c.entityAt(c.entityIndex - 1 + offset)
}

func (c *Cursor) entityAt(row int) Entity {
	id := c.current.entities[row]
	gen := c.world.slots[id-1].generation
	return Entity{id: id, generation: gen, world: c.world}
}

// ComponentBytes returns the raw bytes for component on the entity at the
// cursor's current position, for reading.
func (c *Cursor) ComponentBytes(component Component) ([]byte, error) {
	buf := c.current.rowBytes(c.world.pool, component.Name(), uint32(c.entityIndex-1))
	if buf == nil {
		return nil, ComponentNotFoundError{Component: component}
	}
	return buf, nil
}

// Write returns the raw bytes for component on the entity at the cursor's
// current position and marks it written at the World's current tick, the
// recognized mutation path query-cache invalidation relies on for writes
// made directly through a cursor (as opposed to AddComponent/
// RemoveComponent, which mark their own component).
func (c *Cursor) Write(component Component) ([]byte, error) {
	buf, err := c.ComponentBytes(component)
	if err != nil {
		return nil, err
	}
	c.world.MarkWritten(component.Name())
	return buf, nil
}

// EntityIndex returns the current 1-based entity index within the current
// archetype.
func (c *Cursor) EntityIndex() int { return c.entityIndex }

// RemainingInArchetype returns the number of entities left to visit in the
// current archetype.
func (c *Cursor) RemainingInArchetype() int { return c.remaining - c.entityIndex }

// TotalMatched returns the total number of entities matching the query
// across every matched archetype.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.Initialize()
	}
	total := 0
	for _, arch := range c.matched {
		total += arch.Len()
	}
	c.Reset()
	return total
}
