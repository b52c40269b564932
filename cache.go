package kiln

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TheBitDrifter/mask"
)

// Cache is a capacity-bounded, key-indexed store, unchanged from
// warehouse's Cache[T] interface. kiln's reflection/injection layer
// (injection.go's Injector) uses a SimpleCache[*injectionTarget] to
// memoize resolved struct-tag metadata, keyed by reflect.Type.String().
type Cache[T any] interface {
	GetIndex(key string) (int, bool)
	GetItem(index int) *T
	GetItem32(index uint32) *T
	Register(key string, item T) (int, error)
}

// SimpleCache is warehouse's flat slice-plus-index-map cache, carried over
// unchanged: a capacity-bounded append-only store keyed by string.
type SimpleCache[T any] struct {
	items       []T
	itemIndices map[string]int
	maxCapacity int
}

var _ Cache[any] = &SimpleCache[any]{}

// NewSimpleCache constructs a SimpleCache bounded to maxCapacity entries.
func NewSimpleCache[T any](maxCapacity int) *SimpleCache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: maxCapacity,
	}
}

func (c *SimpleCache[T]) GetIndex(key string) (int, bool) {
	index, ok := c.itemIndices[key]
	return index, ok
}

func (c *SimpleCache[T]) GetItem(index int) *T {
	return &c.items[index]
}

func (c *SimpleCache[T]) GetItem32(index uint32) *T {
	return &c.items[index]
}

func (c *SimpleCache[T]) Register(key string, item T) (int, error) {
	if len(c.itemIndices) >= c.maxCapacity {
		return -1, fmt.Errorf("kiln: cache at maximum capacity (%d)", c.maxCapacity)
	}
	idx := len(c.items)
	c.itemIndices[key] = idx
	c.items = append(c.items, item)
	return idx, nil
}

func (c *SimpleCache[T]) Clear() {
	c.items = nil
	c.itemIndices = make(map[string]int)
}

// queryCacheEntry is the value half of a QueryCache entry: the matching
// archetype ids as of the last rebuild, the world tick that rebuild was
// performed at, and how many archetypes existed at that point. The
// archetype count guards a case the component write-tick alone can't
// detect: a brand-new archetype (from an entity spawned with a component
// combination never seen before) matching an empty-components query (e.g.
// one built with a bare And() that imposes no restriction) wouldn't touch
// any tracked component's write tick, so without this an entry could go
// stale with no write to ever invalidate it.
type queryCacheEntry struct {
	archetypes        []archetypeID
	lastValidatedTick uint64
	archetypeCount    int
}

// QueryCache memoizes archetype-matching results for a (components, with,
// without) triple, invalidated by per-component last-write ticks rather
// than blanket invalidation: a cached entry survives any number of world
// ticks as long as none of its relevant components were written to.
type QueryCache struct {
	world   *World
	entries map[string]*queryCacheEntry
}

// NewQueryCache returns an empty QueryCache bound to w.
func NewQueryCache(w *World) *QueryCache {
	return &QueryCache{world: w, entries: make(map[string]*queryCacheEntry)}
}

func sortedNames(components []Component) []string {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name()
	}
	sort.Strings(names)
	return names
}

// cacheKey builds the "components-sorted | with-sorted | without-sorted"
// key spec.md §4.4 defines, each group internally comma-joined.
func cacheKey(components, with, without []Component) string {
	return strings.Join(sortedNames(components), ",") + "|" +
		strings.Join(sortedNames(with), ",") + "|" +
		strings.Join(sortedNames(without), ",")
}

// Lookup returns the archetypes matching { components, with, without },
// rebuilding from scratch only if some relevant component has been
// written to since the cached entry's last_validated_tick.
func (qc *QueryCache) Lookup(components, with, without []Component) []*archetype {
	key := cacheKey(components, with, without)

	var maxWrite uint64
	for _, group := range [][]Component{components, with, without} {
		for _, c := range group {
			if t := qc.world.writeTick[c.Name()]; t > maxWrite {
				maxWrite = t
			}
		}
	}

	if entry, ok := qc.entries[key]; ok && maxWrite <= entry.lastValidatedTick && entry.archetypeCount == len(qc.world.archetypes) {
		return qc.resolve(entry.archetypes)
	}

	archs := qc.rebuild(components, with, without)
	ids := make([]archetypeID, len(archs))
	for i, a := range archs {
		ids[i] = a.id
	}
	qc.entries[key] = &queryCacheEntry{archetypes: ids, lastValidatedTick: qc.world.tick, archetypeCount: len(qc.world.archetypes)}
	return archs
}

func (qc *QueryCache) rebuild(components, with, without []Component) []*archetype {
	var needMask, excludeMask mask.Mask
	for _, c := range components {
		needMask.Mark(qc.world.bitOf[c.Name()])
	}
	for _, c := range with {
		needMask.Mark(qc.world.bitOf[c.Name()])
	}
	for _, c := range without {
		excludeMask.Mark(qc.world.bitOf[c.Name()])
	}
	var out []*archetype
	for _, a := range qc.world.archetypes {
		if a.Mask().ContainsAll(needMask) && a.Mask().ContainsNone(excludeMask) {
			out = append(out, a)
		}
	}
	return out
}

// collectComponentNames walks node's tree, appending every component name
// referenced anywhere in it (including nested And/Or/Not children) to out,
// deduplicated via seen. QueryNode's only concrete implementation is
// *compositeNode; any other implementation is treated as opaque and
// contributes no names (its archetype matches are still correct via
// matchingArchetypes, just never cached).
func collectComponentNames(node QueryNode, seen map[string]struct{}, out *[]string) {
	n, ok := node.(*compositeNode)
	if !ok {
		return
	}
	for _, c := range n.components {
		if _, dup := seen[c.Name()]; !dup {
			seen[c.Name()] = struct{}{}
			*out = append(*out, c.Name())
		}
	}
	for _, child := range n.children {
		collectComponentNames(child, seen, out)
	}
}

// LookupNode is Lookup generalized to an arbitrary QueryNode tree (the
// kind every Cursor actually holds), rather than a flat
// (components, with, without) triple: spec.md §4.4's testable property
// "avoid rescanning unchanged queries" applies to every Cursor, not just
// direct QueryCache callers, so Cursor.Initialize calls this instead of
// World.matchingArchetypes. The cache key and invalidation set are every
// component name node's tree mentions; the rebuild itself still defers to
// matchingArchetypes so Or/Not semantics are evaluated in exactly one
// place.
func (qc *QueryCache) LookupNode(node QueryNode) []*archetype {
	var names []string
	collectComponentNames(node, make(map[string]struct{}), &names)
	sort.Strings(names)
	key := "node:" + strings.Join(names, ",")

	var maxWrite uint64
	for _, name := range names {
		if t := qc.world.writeTick[name]; t > maxWrite {
			maxWrite = t
		}
	}

	if entry, ok := qc.entries[key]; ok && maxWrite <= entry.lastValidatedTick && entry.archetypeCount == len(qc.world.archetypes) {
		return qc.resolve(entry.archetypes)
	}

	archs := qc.world.matchingArchetypes(node)
	ids := make([]archetypeID, len(archs))
	for i, a := range archs {
		ids[i] = a.id
	}
	qc.entries[key] = &queryCacheEntry{archetypes: ids, lastValidatedTick: qc.world.tick, archetypeCount: len(qc.world.archetypes)}
	return archs
}

func (qc *QueryCache) resolve(ids []archetypeID) []*archetype {
	out := make([]*archetype, len(ids))
	for i, id := range ids {
		out[i] = qc.world.archetypes[id]
	}
	return out
}

// Clear discards every cached entry, forcing the next Lookup for any key
// to rebuild.
func (qc *QueryCache) Clear() {
	qc.entries = make(map[string]*queryCacheEntry)
}
