package kiln

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TheBitDrifter/bark"
)

// Entity is a lightweight handle: an id plus the generation it was created
// with, checked against the World's current generation for that id on every
// use. Unlike warehouse's pointer-based entity, a handle never dangles
// across a swap-and-pop relocation, since it carries no reference to a row.
type Entity struct {
	id         uint32
	generation uint32
	world      *World
}

// ID returns the entity's numeric identifier. IDs are recycled once an
// entity is destroyed, so ID alone does not identify an entity across its
// lifetime — use the Entity value itself, or compare generations.
func (e Entity) ID() uint32 { return e.id }

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d/%d)", e.id, e.generation)
}

// Valid reports whether e still refers to a live entity: the World knows
// about its id, the slot is alive, and the generation matches.
func (e Entity) Valid() bool {
	if e.world == nil || e.id == 0 {
		return false
	}
	idx := int(e.id - 1)
	if idx >= len(e.world.slots) {
		return false
	}
	slot := &e.world.slots[idx]
	return slot.alive && slot.generation == e.generation
}

// slot returns e's entitySlot and true if e is still alive. Callers that
// mutate or inspect entity state use this instead of indexing
// e.world.slots directly, so a stale or destroyed handle gets the
// documented no-op/NotAliveError result (spec.md §7's Failure semantics:
// "Logged and skipped; returns a non-error 'no-op' result") rather than a
// panic.
func (e Entity) slot() (*entitySlot, bool) {
	if !e.Valid() {
		return nil, false
	}
	return &e.world.slots[e.id-1], true
}

// Components returns the entity's current component set, in archetype
// signature order, or nil if the entity is not alive.
func (e Entity) Components() []Component {
	slot, ok := e.slot()
	if !ok {
		return nil
	}
	return append([]Component(nil), slot.components...)
}

// ComponentsAsString returns a sorted, comma-separated summary of the
// entity's component names, convenient for logging and test failure
// messages. A dead entity reports "[]", the same as one with no
// components.
func (e Entity) ComponentsAsString() string {
	slot, ok := e.slot()
	if !ok || len(slot.components) == 0 {
		return "[]"
	}
	names := make([]string, len(slot.components))
	for i, c := range slot.components {
		names[i] = c.Name()
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}

// HasComponent reports whether the entity currently carries the named
// component. A dead entity never has any component.
func (e Entity) HasComponent(name string) bool {
	slot, ok := e.slot()
	if !ok {
		return false
	}
	for _, c := range slot.components {
		if c.Name() == name {
			return true
		}
	}
	return false
}

// ComponentBytes returns the raw row bytes for the given component on this
// entity, or ComponentNotFoundError if the entity doesn't carry it, or
// NotAliveError if the entity is not alive.
func (e Entity) ComponentBytes(c Component) ([]byte, error) {
	slot, ok := e.slot()
	if !ok {
		return nil, NotAliveError{Entity: e}
	}
	arch := e.world.archetypes[slot.archetype]
	buf := arch.rowBytes(e.world.pool, c.Name(), slot.row)
	if buf == nil {
		return nil, ComponentNotFoundError{Component: c}
	}
	return buf, nil
}

// AddComponent attaches c to the entity, relocating it to the archetype for
// its new, larger component set. The new component's bytes start zeroed;
// init, if non-nil, is invoked with the new row's bytes before the
// transfer becomes visible to queries.
func (e Entity) AddComponent(c Component, init func(buf []byte)) error {
	w := e.world
	if w.Locked() {
		return LockedWorldError{}
	}
	slot, ok := e.slot()
	if !ok {
		return NotAliveError{Entity: e}
	}
	oldArch := w.archetypes[slot.archetype]
	if oldArch.hasComponent(c.Name()) {
		return ComponentExistsError{Component: c}
	}
	newSet := append(append([]Component(nil), slot.components...), c)
	if err := w.checkDependencies(newSet); err != nil {
		return bark.AddTrace(err)
	}
	newArch := w.archetypeFor(newSet)
	newRow := newArch.pushRow(w.pool, e.id)
	for name, col := range oldArch.columns {
		size := col.component.Layout().TotalSize
		src := oldArch.rowBytes(w.pool, name, slot.row)
		dst := newArch.rowBytes(w.pool, name, newRow)
		copy(dst[:size], src[:size])
	}
	if init != nil {
		init(newArch.rowBytes(w.pool, c.Name(), newRow))
	}
	moved := oldArch.evictRow(w.pool, slot.row)
	if moved != 0 {
		w.slots[moved-1].row = slot.row
	}
	slot.archetype = newArch.id
	slot.row = newRow
	slot.components = newSet
	w.MarkWritten(c.Name())
	w.events.emitComponentAdded(e, c)
	return nil
}

// RemoveComponent detaches c from the entity, relocating it to the
// archetype for its new, smaller component set. Any dynamic data the
// removed component's bytes own is freed before the transfer.
func (e Entity) RemoveComponent(c Component) error {
	w := e.world
	if w.Locked() {
		return LockedWorldError{}
	}
	slot, ok := e.slot()
	if !ok {
		return NotAliveError{Entity: e}
	}
	oldArch := w.archetypes[slot.archetype]
	if !oldArch.hasComponent(c.Name()) {
		return ComponentNotFoundError{Component: c}
	}
	if c.Layout().HasDynamicData {
		buf := oldArch.rowBytes(w.pool, c.Name(), slot.row)
		if err := freeRow(buf, w.pool, c.Layout()); err != nil {
			return bark.AddTrace(err)
		}
	}
	newSet := make([]Component, 0, len(slot.components)-1)
	for _, existing := range slot.components {
		if existing.Name() != c.Name() {
			newSet = append(newSet, existing)
		}
	}
	newArch := w.archetypeFor(newSet)
	newRow := newArch.pushRow(w.pool, e.id)
	for name, col := range newArch.columns {
		size := col.component.Layout().TotalSize
		src := oldArch.rowBytes(w.pool, name, slot.row)
		dst := newArch.rowBytes(w.pool, name, newRow)
		copy(dst[:size], src[:size])
	}
	moved := oldArch.evictRow(w.pool, slot.row)
	if moved != 0 {
		w.slots[moved-1].row = slot.row
	}
	slot.archetype = newArch.id
	slot.row = newRow
	slot.components = newSet
	w.MarkWritten(c.Name())
	w.events.emitComponentRemoved(e, c)
	return nil
}

// EnqueueAddComponent defers AddComponent to the command buffer if the
// World is locked, otherwise applies it immediately.
func (e Entity) EnqueueAddComponent(c Component, init func(buf []byte)) error {
	if !e.world.Locked() {
		return e.AddComponent(c, init)
	}
	e.world.commands.enqueueAddComponent(e, c, init)
	return nil
}

// EnqueueRemoveComponent defers RemoveComponent to the command buffer if
// the World is locked, otherwise applies it immediately.
func (e Entity) EnqueueRemoveComponent(c Component) error {
	if !e.world.Locked() {
		return e.RemoveComponent(c)
	}
	e.world.commands.enqueueRemoveComponent(e, c)
	return nil
}

// SetParent records a parent/child relationship between two entities,
// rejecting assignments that would create a cycle (spec.md §4.6).
func (e Entity) SetParent(parent Entity) error {
	return e.world.relationships.setParent(e.world, e, parent)
}

// Parent returns the entity's current parent and whether it has one. A
// dead entity is reported as having no parent.
func (e Entity) Parent() (Entity, bool) {
	if _, ok := e.slot(); !ok {
		return Entity{}, false
	}
	return e.world.relationships.parentOf(e)
}
