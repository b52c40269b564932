package kiln

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// entitySlot is the per-entity-id bookkeeping record a World keeps: which
// archetype and row currently hold the entity's data, its generation (for
// stale-handle detection), and its cached component list.
type entitySlot struct {
	alive      bool
	generation uint32
	archetype  archetypeID
	row        uint32
	components []Component
}

// World is the single container for every entity, component byte, schema,
// resource and system kiln knows about — the generalization of warehouse's
// storage into the full ECS runtime SPEC_FULL.md §4 describes. It owns one
// mem.Pool for all component data, directly analogous to how warehouse's
// storage owns one table.Schema and a set of per-archetype table.Table
// column stores.
type World struct {
	pool    *mem.Pool
	schemas *schema.Registry
	cfg     Config

	components map[string]Component
	bitOf      map[string]uint32
	nextBit    uint32

	archetypesByKey map[string]archetypeID
	archetypes      []*archetype
	nextArchID      archetypeID

	slots   []entitySlot
	freeIDs []uint32
	tick    uint64

	writeTick map[string]uint64

	resources map[string]any

	locks       mask.Mask256
	nextLockBit uint32

	commands      *CommandBuffer
	relationships *relationshipRegistry
	events        *eventBus
	namedQueries  map[string]QueryNode
	injector      *Injector
	queryCache    *QueryCache
}

// NewWorld constructs a World backed by a single mem.Pool of cfg.PoolSize
// bytes. A zero-value Config uses DefaultConfig's tuning.
func NewWorld(cfg Config) *World {
	if cfg.PoolSize == 0 {
		cfg = DefaultConfig()
	}
	w := &World{
		pool:            mem.NewPool(cfg.PoolSize),
		schemas:         schema.NewRegistry(),
		cfg:             cfg,
		components:      make(map[string]Component),
		bitOf:           make(map[string]uint32),
		archetypesByKey: make(map[string]archetypeID),
		writeTick:       make(map[string]uint64),
		resources:       make(map[string]any),
		events:          newEventBus(),
		namedQueries:    make(map[string]QueryNode),
		injector:        NewInjector(),
	}
	w.commands = newCommandBuffer(w)
	// relationships registers the built-in child_of/children relationship
	// at construction time, which requires calling w.RegisterComponent —
	// so it, like commands, must be wired up after w exists as a pointer.
	w.relationships = newRelationshipRegistry(w)
	w.queryCache = NewQueryCache(w)
	return w
}

// RegisterQuery names node so injection.go's "query" injection kind can
// resolve it by name into a System's declared parameters.
func (w *World) RegisterQuery(name string, node QueryNode) {
	w.namedQueries[name] = node
}

// Pool exposes the backing allocator, primarily for diagnostics and tests.
func (w *World) Pool() *mem.Pool { return w.pool }

// Tick returns the World's current logical tick, used by change detection
// and the query cache (spec.md §4.3/§4.4).
func (w *World) Tick() uint64 { return w.tick }

// AdvanceTick increments and returns the World's logical tick. Called once
// per fixed step of Scheduler.Tick (scheduler.go), never mid-system.
func (w *World) AdvanceTick() uint64 {
	w.tick++
	return w.tick
}

// MarkWritten records that name was written to at the current tick, the
// "recognized write path" spec.md §4.3 requires for query-cache
// invalidation. AddComponent, RemoveComponent and NewEntities call this
// for every component they touch; Cursor.Write calls it for direct
// mutation through a cursor.
func (w *World) MarkWritten(name string) {
	w.writeTick[name] = w.tick
}

// LastWriteTick returns the tick at which name was last written, or 0 if
// it has never been written.
func (w *World) LastWriteTick(name string) uint64 {
	return w.writeTick[name]
}

// RegisterComponent records a component's schema and assigns it a query
// mask bit. Re-registering the same name replaces the prior schema and
// returns DuplicateRegistrationError (non-fatal), mirroring
// schema.Registry.Register's own convention.
func (w *World) RegisterComponent(name string, layout schema.SchemaLayout, deps ...string) (Component, error) {
	if err := layout.Validate(); err != nil {
		return nil, bark.AddTrace(err)
	}
	layout.ClassName = name
	w.schemas.Register(layout)

	c := component{name: name, layout: layout, deps: deps}
	_, exists := w.components[name]
	w.components[name] = c
	if !exists {
		w.bitOf[name] = w.nextBit
		w.nextBit++
	}
	if exists {
		return c, DuplicateRegistrationError{Name: name}
	}
	return c, nil
}

// Component looks up a previously registered component by name.
func (w *World) Component(name string) (Component, bool) {
	c, ok := w.components[name]
	return c, ok
}

// Locked reports whether the World currently has an outstanding cursor or
// other hold that defers archetype-mutating operations to the command
// buffer (spec.md §4.5).
func (w *World) Locked() bool { return !w.locks.IsEmpty() }

// Lock acquires a new hold on the World, returning a token to pass to
// Unlock. Multiple holds may be outstanding at once (nested cursors).
func (w *World) Lock() uint32 {
	bit := w.nextLockBit
	w.nextLockBit++
	w.locks.Mark(bit)
	return bit
}

// Unlock releases a hold acquired by Lock. Once every hold is released,
// the deferred command buffer is flushed.
func (w *World) Unlock(bit uint32) {
	w.locks.Unmark(bit)
	if w.locks.IsEmpty() {
		if err := w.commands.Flush(); err != nil {
			panic(bark.AddTrace(err))
		}
	}
}

// archetypeFor returns the archetype for exactly this component set,
// creating it if no existing archetype matches (warehouse's
// NewOrExistingArchetype, generalized to kiln's pool-backed columns).
func (w *World) archetypeFor(components []Component) *archetype {
	key := signatureKey(components)
	if id, ok := w.archetypesByKey[key]; ok {
		return w.archetypes[id]
	}
	id := w.nextArchID
	arch := newArchetype(id, components, w.bitOf)
	w.archetypes = append(w.archetypes, arch)
	w.archetypesByKey[key] = id
	w.nextArchID++
	return arch
}

// Archetypes returns every archetype the World has created so far, in
// creation order. Used by query evaluation.
func (w *World) Archetypes() []*archetype { return w.archetypes }

func (w *World) allocateID() (uint32, uint32) {
	if n := len(w.freeIDs); n > 0 {
		id := w.freeIDs[n-1]
		w.freeIDs = w.freeIDs[:n-1]
		gen := w.slots[id-1].generation + 1
		return id, gen
	}
	w.slots = append(w.slots, entitySlot{})
	return uint32(len(w.slots)), 0
}

// NewEntities creates n entities carrying exactly the given component set,
// all placed in the same archetype, and returns their handles.
func (w *World) NewEntities(n int, components ...Component) ([]Entity, error) {
	if w.Locked() {
		return nil, LockedWorldError{}
	}
	if err := w.checkDependencies(components); err != nil {
		return nil, bark.AddTrace(err)
	}
	arch := w.archetypeFor(components)
	out := make([]Entity, n)
	for i := 0; i < n; i++ {
		id, gen := w.allocateID()
		row := arch.pushRow(w.pool, id)
		w.slots[id-1] = entitySlot{
			alive:      true,
			generation: gen,
			archetype:  arch.id,
			row:        row,
			components: append([]Component(nil), components...),
		}
		ent := Entity{id: id, generation: gen, world: w}
		out[i] = ent
		for _, c := range components {
			w.MarkWritten(c.Name())
			w.events.emitComponentAdded(ent, c)
		}
	}
	return out, nil
}

// EnqueueNewEntities defers entity creation to the command buffer if the
// World is locked, otherwise creates them immediately.
func (w *World) EnqueueNewEntities(n int, components ...Component) error {
	if !w.Locked() {
		_, err := w.NewEntities(n, components...)
		return err
	}
	w.commands.enqueueSpawn(n, components)
	return nil
}

func (w *World) checkDependencies(components []Component) error {
	present := make(map[string]bool, len(components))
	for _, c := range components {
		present[c.Name()] = true
	}
	for _, c := range components {
		for _, dep := range c.Dependencies() {
			if !present[dep] {
				return DependencyUnmetError{Component: c, Dependency: dep}
			}
		}
	}
	return nil
}

// DestroyEntities removes entities from storage, freeing every dynamic
// component byte they own and cascading through linked_spawn relationships
// (spec.md §4.6).
func (w *World) DestroyEntities(entities ...Entity) error {
	if w.Locked() {
		return LockedWorldError{}
	}
	for _, e := range entities {
		if !e.Valid() {
			continue
		}
		w.destroyOne(e)
	}
	return nil
}

func (w *World) destroyOne(e Entity) {
	slot := &w.slots[e.id-1]
	if !slot.alive {
		return
	}
	for _, child := range w.relationships.cascadeChildren(w, e) {
		if child.Valid() {
			w.destroyOne(child)
		}
	}
	// forgetAsTarget must run before the row is freed: it reads e's own
	// inbound set components to clear the forward-pointer entries of
	// whatever points at e.
	w.relationships.forgetAsTarget(w, e)
	arch := w.archetypes[slot.archetype]
	moved := arch.removeRow(w.pool, slot.row)
	if moved != 0 {
		w.slots[moved-1].row = slot.row
	}
	w.relationships.forgetAsSource(w, e)
	*slot = entitySlot{generation: slot.generation + 1}
	w.freeIDs = append(w.freeIDs, e.id)
}

// EnqueueDestroyEntities defers destruction to the command buffer if the
// World is locked, otherwise destroys immediately.
func (w *World) EnqueueDestroyEntities(entities ...Entity) error {
	if !w.Locked() {
		return w.DestroyEntities(entities...)
	}
	for _, e := range entities {
		w.commands.enqueueDestroy(e)
	}
	return nil
}

// Resource returns the process-wide singleton registered under name.
func (w *World) Resource(name string) (any, bool) {
	v, ok := w.resources[name]
	return v, ok
}

// SetResource installs or replaces the process-wide singleton under name.
func (w *World) SetResource(name string, value any) error {
	w.resources[name] = value
	return nil
}

// MustResource returns the resource registered under name, panicking if it
// is not present. Intended for system setup code, not steady-state logic.
func (w *World) MustResource(name string) any {
	v, ok := w.resources[name]
	if !ok {
		panic(fmt.Sprintf("kiln: resource %q not registered", name))
	}
	return v
}
