package kiln

import (
	"bytes"
	"encoding/binary"

	"github.com/TheBitDrifter/bark"
	"github.com/kiln-engine/kiln/schema"
	"github.com/kiln-engine/kiln/view"
)

// relationshipDef is one registered source→target relationship kind
// (spec.md §4.6): a named link ("child_of") paired with the inbound set
// component it maintains on the target ("children"), and whether deleting
// the target cascades deletion of its sources. The inbound set is a real
// registered component, backed by a view.HashSet, so it is visible to
// HasComponent/Components like any other attribute kiln tracks.
type relationshipDef struct {
	name             string
	inboundName      string
	linkedSpawn      bool
	inboundComponent Component
	setView          view.HashSet
}

// relationshipRegistry maintains every registered relationship kind and
// the live source↔target bookkeeping for each: which target a source
// currently points at (a private forward map, since nothing in spec.md
// requires that direction to be queryable as a component), and which
// sources currently point at a target (the inbound set, kept as a
// component on the target itself). Generalizes warehouse's single
// entity.relationships{parent} field (entity.go) into a registry
// supporting an arbitrary number of named relationship kinds, each with
// its own reciprocal inbound component and independent linked_spawn
// policy.
type relationshipRegistry struct {
	defs map[string]relationshipDef

	targets map[string]map[Entity]Entity
}

const childOfRelationship = "child_of"
const childrenInbound = "children"

// entityIDSize is the width of the element kiln's relationship inbound
// sets store: a raw little-endian entity id, not a full Entity handle
// (the generation is recovered from the World's live slot when reading
// the set back, so a destroyed-and-recycled id never resurrects a stale
// member).
const entityIDSize = 4

// entityIDHash is the 64-bit FNV-1a hash of an entity id's bytes. The
// inbound HashSet uses it both for lookups and to re-bucket its entries
// when it grows.
func entityIDHash(b []byte) uint64 {
	var h uint64 = 1469598103934665603
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

func entityIDEqual(a, b []byte) bool { return bytes.Equal(a, b) }

func entityIDBytes(id uint32) [entityIDSize]byte {
	var b [entityIDSize]byte
	binary.LittleEndian.PutUint32(b[:], id)
	return b
}

// inboundSetLayout builds the single-property SchemaLayout for a
// relationship's inbound set component: its entire row is the
// view.HashSet control-block pointer runtime_layout.go's freeProperty
// already knows how to free via the schema.KindSet case.
func inboundSetLayout(name string) schema.SchemaLayout {
	elem := schema.SchemaLayout{ClassName: "entity_id", TotalSize: entityIDSize, Alignment: entityIDSize}
	return schema.SchemaLayout{
		ClassName:      name,
		TotalSize:      entityIDSize,
		Alignment:      entityIDSize,
		HasDynamicData: true,
		Properties: []schema.PropertyLayout{{
			Key:        name,
			Order:      0,
			TypeString: "set<u32>",
			Offset:     0,
			Size:       entityIDSize,
			Alignment:  entityIDSize,
			Binary:     schema.BinaryInfo{Kind: schema.KindSet, Dynamic: true, Element: &elem},
		}},
	}
}

func newRelationshipRegistry(w *World) *relationshipRegistry {
	r := &relationshipRegistry{
		defs:    make(map[string]relationshipDef),
		targets: make(map[string]map[Entity]Entity),
	}
	r.register(w, relationshipDef{name: childOfRelationship, inboundName: childrenInbound, linkedSpawn: true})
	return r
}

// RegisterRelationship declares a new source→target relationship kind.
// Re-registering an existing name replaces its definition and returns
// DuplicateRegistrationError (non-fatal), mirroring World.RegisterComponent.
func (w *World) RegisterRelationship(name, inboundName string, linkedSpawn bool) error {
	return w.relationships.register(w, relationshipDef{name: name, inboundName: inboundName, linkedSpawn: linkedSpawn})
}

func (r *relationshipRegistry) register(w *World, def relationshipDef) error {
	_, exists := r.defs[def.name]

	layout := inboundSetLayout(def.inboundName)
	inboundComponent, regErr := w.RegisterComponent(def.inboundName, layout)
	// offset 0 is always 4-byte aligned, so this can only fail if
	// entityIDSize itself is ever changed to something view.NewHashSet
	// rejects; treated the same as the allocator-invariant panics
	// elsewhere in the package rather than threaded through every caller
	// of RegisterRelationship.
	setView, err := view.NewHashSet(0, entityIDSize, entityIDSize, layout.Properties[0])
	if err != nil {
		panic(bark.AddTrace(err))
	}
	def.inboundComponent = inboundComponent
	def.setView = setView

	r.defs[def.name] = def
	if r.targets[def.name] == nil {
		r.targets[def.name] = make(map[Entity]Entity)
	}
	if exists {
		return DuplicateRegistrationError{Name: def.name}
	}
	// regErr, when non-nil, is the inbound component's own
	// DuplicateRegistrationError (e.g. two relationships sharing an
	// inbound name); it doesn't affect this relationship's own
	// first-registration status, so only def.name's own duplicate is
	// reported here.
	_ = regErr
	return nil
}

// SetRelationship establishes name(source, target): source's prior target
// under this relationship, if any, is detached first (and the inbound
// component dropped from it if its set becomes empty), matching spec.md
// §4.6's "on add of source→target". Adding the link for the first time
// adds the inbound component to target, so target.HasComponent(inboundName)
// becomes true.
func (w *World) SetRelationship(name string, source, target Entity) error {
	return w.relationships.set(w, name, source, target)
}

func (r *relationshipRegistry) set(w *World, name string, source, target Entity) error {
	if source == target {
		return CycleDetectedError{Path: []string{source.String(), target.String()}}
	}
	def, ok := r.defs[name]
	if !ok {
		return UnknownRelationshipError{Name: name}
	}
	if prev, ok := r.targets[name][source]; ok {
		if err := r.detachInbound(w, def, prev, source); err != nil {
			return err
		}
	}
	r.targets[name][source] = target
	if err := r.attachInbound(w, def, target, source); err != nil {
		return err
	}
	if name == childOfRelationship {
		w.events.emitEntityParentSet(source, target)
	}
	return nil
}

// attachInbound adds source's id to target's inbound set component,
// adding the component itself first if target doesn't already carry it.
func (r *relationshipRegistry) attachInbound(w *World, def relationshipDef, target, source Entity) error {
	if !target.Valid() {
		return nil
	}
	if !target.HasComponent(def.inboundName) {
		if err := target.AddComponent(def.inboundComponent, nil); err != nil {
			return err
		}
	}
	buf, err := target.ComponentBytes(def.inboundComponent)
	if err != nil {
		return err
	}
	id := entityIDBytes(source.id)
	_, err = def.setView.Add(buf, w.pool, def.inboundName, id[:], entityIDHash, entityIDEqual)
	return err
}

// detachInbound removes source's id from target's inbound set component,
// dropping the component entirely once the set is empty so HasComponent
// reports false again.
func (r *relationshipRegistry) detachInbound(w *World, def relationshipDef, target, source Entity) error {
	if !target.Valid() || !target.HasComponent(def.inboundName) {
		return nil
	}
	buf, err := target.ComponentBytes(def.inboundComponent)
	if err != nil {
		return err
	}
	id := entityIDBytes(source.id)
	def.setView.Remove(buf, w.pool, id[:], entityIDHash, entityIDEqual)
	if def.setView.Count(buf, w.pool) == 0 {
		return target.RemoveComponent(def.inboundComponent)
	}
	return nil
}

// RemoveRelationship detaches name(source, _): source is removed from its
// target's inbound set, dropping the inbound component if it becomes
// empty.
func (w *World) RemoveRelationship(name string, source Entity) error {
	return w.relationships.remove(w, name, source)
}

func (r *relationshipRegistry) remove(w *World, name string, source Entity) error {
	def, ok := r.defs[name]
	if !ok {
		return nil
	}
	target, ok := r.targets[name][source]
	if !ok {
		return nil
	}
	if err := r.detachInbound(w, def, target, source); err != nil {
		return err
	}
	delete(r.targets[name], source)
	return nil
}

// RelationshipSources returns every source currently pointing at target
// under the named relationship, read directly from target's inbound set
// component.
func (w *World) RelationshipSources(name string, target Entity) []Entity {
	return w.relationships.sourcesOf(w, name, target)
}

func (r *relationshipRegistry) sourcesOf(w *World, name string, target Entity) []Entity {
	def, ok := r.defs[name]
	if !ok || !target.Valid() || !target.HasComponent(def.inboundName) {
		return nil
	}
	buf, err := target.ComponentBytes(def.inboundComponent)
	if err != nil {
		return nil
	}
	var out []Entity
	def.setView.Each(buf, w.pool, func(elem []byte) {
		id := binary.LittleEndian.Uint32(elem)
		if id == 0 || int(id-1) >= len(w.slots) {
			return
		}
		slot := &w.slots[id-1]
		if !slot.alive {
			return
		}
		out = append(out, Entity{id: id, generation: slot.generation, world: w})
	})
	return out
}

// cascadeChildren returns every entity that must be destroyed as a
// consequence of destroying e: the sources of every linked_spawn
// relationship currently targeting e.
func (r *relationshipRegistry) cascadeChildren(w *World, e Entity) []Entity {
	var out []Entity
	for name, def := range r.defs {
		if !def.linkedSpawn {
			continue
		}
		out = append(out, r.sourcesOf(w, name, e)...)
	}
	return out
}

// forgetAsTarget clears the forward-pointer entry of every source
// currently pointing at e, read from e's own inbound components. Must run
// before e's row is freed, since it is the last point at which e's
// inbound set data is still valid.
func (r *relationshipRegistry) forgetAsTarget(w *World, e Entity) {
	for name := range r.defs {
		for _, source := range r.sourcesOf(w, name, e) {
			delete(r.targets[name], source)
		}
	}
}

// forgetAsSource removes e from the inbound set of whatever it targeted
// under every relationship kind, and clears its own forward-pointer
// entries. Safe to run after e's row has been freed, since it only
// touches other entities' component data.
func (r *relationshipRegistry) forgetAsSource(w *World, e Entity) {
	for name, def := range r.defs {
		target, ok := r.targets[name][e]
		if !ok {
			continue
		}
		r.detachInbound(w, def, target, e)
		delete(r.targets[name], e)
	}
}

// setParent is entity.go's SetParent, built on the registered child_of
// relationship. It additionally rejects assignments that would create a
// cycle, since child_of is the one relationship kiln enforces acyclicity
// on by convention.
func (r *relationshipRegistry) setParent(w *World, child, parent Entity) error {
	if child == parent {
		return CycleDetectedError{Path: []string{child.String(), parent.String()}}
	}
	for cur, ok := r.targets[childOfRelationship][parent]; ok; cur, ok = r.targets[childOfRelationship][parent] {
		if cur == child {
			return CycleDetectedError{Path: []string{child.String(), parent.String()}}
		}
		parent = cur
	}
	return r.set(w, childOfRelationship, child, parent)
}

// parentOf returns child's current parent under child_of, if any.
func (r *relationshipRegistry) parentOf(child Entity) (Entity, bool) {
	p, ok := r.targets[childOfRelationship][child]
	return p, ok
}
