package kiln

// CommandBuffer stages entity mutations for deferred application at the
// scheduler's FixedFlush phase, so system updates inside one tick observe
// a consistent World snapshot. Generalizes warehouse's
// EntityOperationsQueue/EntityOperation pair into the four buckets kiln
// needs: spawn definitions, a delete set, an add-component map, and a
// remove-component map.
type CommandBuffer struct {
	world   *World
	spawns  []spawnDef
	deletes map[Entity]struct{}
	adds    map[Entity][]addDef
	removes map[Entity]map[string]Component
}

type spawnDef struct {
	n          int
	components []Component
}

type addDef struct {
	component Component
	init      func([]byte)
}

func newCommandBuffer(w *World) *CommandBuffer {
	return &CommandBuffer{
		world:   w,
		deletes: make(map[Entity]struct{}),
		adds:    make(map[Entity][]addDef),
		removes: make(map[Entity]map[string]Component),
	}
}

func (cb *CommandBuffer) enqueueSpawn(n int, components []Component) {
	cb.spawns = append(cb.spawns, spawnDef{n: n, components: components})
}

func (cb *CommandBuffer) enqueueDestroy(e Entity) {
	cb.deletes[e] = struct{}{}
}

func (cb *CommandBuffer) enqueueAddComponent(e Entity, c Component, init func([]byte)) {
	cb.adds[e] = append(cb.adds[e], addDef{component: c, init: init})
}

func (cb *CommandBuffer) enqueueRemoveComponent(e Entity, c Component) {
	set := cb.removes[e]
	if set == nil {
		set = make(map[string]Component)
		cb.removes[e] = set
	}
	set[c.Name()] = c
}

// Flush applies every staged operation in the order spec'd for FixedFlush:
// spawns first, then a snapshot-and-clear of the add/remove/delete
// buckets, then adds (skipping entities also scheduled for delete), then
// removes (same guard), then deletions. If the World is still locked (a
// nested Lock still outstanding) Flush is a no-op, leaving everything
// staged for the next Unlock.
func (cb *CommandBuffer) Flush() error {
	if cb.world.Locked() {
		return nil
	}

	spawns := cb.spawns
	cb.spawns = nil
	for _, s := range spawns {
		if _, err := cb.world.NewEntities(s.n, s.components...); err != nil {
			return err
		}
	}

	deletes := cb.deletes
	adds := cb.adds
	removes := cb.removes
	cb.deletes = make(map[Entity]struct{})
	cb.adds = make(map[Entity][]addDef)
	cb.removes = make(map[Entity]map[string]Component)

	for e, defs := range adds {
		if _, scheduledForDelete := deletes[e]; scheduledForDelete || !e.Valid() {
			continue
		}
		for _, def := range defs {
			if err := e.AddComponent(def.component, def.init); err != nil {
				return err
			}
		}
	}

	for e, names := range removes {
		if _, scheduledForDelete := deletes[e]; scheduledForDelete || !e.Valid() {
			continue
		}
		for _, c := range names {
			if err := e.RemoveComponent(c); err != nil {
				return err
			}
		}
	}

	for e := range deletes {
		if !e.Valid() {
			continue
		}
		if err := cb.world.DestroyEntities(e); err != nil {
			return err
		}
	}

	return nil
}
