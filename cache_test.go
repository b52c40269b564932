package kiln

import "testing"

type vec2 struct {
	X, Y float64
}

func TestSimpleCacheBasicOperations(t *testing.T) {
	const capacity = 10
	cache := NewSimpleCache[string](capacity)

	items := []string{"item1", "item2", "item3", "item4", "item5"}
	indices := make([]int, len(items))

	for i, item := range items {
		index, err := cache.Register(item, item)
		if err != nil {
			t.Errorf("failed to register item %s: %v", item, err)
		}
		indices[i] = index
		if index != i {
			t.Errorf("index for item %s is %d, expected %d", item, index, i)
		}
	}

	for i, item := range items {
		index, found := cache.GetIndex(item)
		if !found {
			t.Errorf("item %s not found in cache", item)
		}
		if index != indices[i] {
			t.Errorf("index for item %s is %d, expected %d", item, index, indices[i])
		}
	}

	for i, item := range items {
		cachedItem := cache.GetItem(indices[i])
		if *cachedItem != item {
			t.Errorf("item at index %d is %s, expected %s", indices[i], *cachedItem, item)
		}
	}

	for i, item := range items {
		cachedItem := cache.GetItem32(uint32(indices[i]))
		if *cachedItem != item {
			t.Errorf("item at index %d is %s, expected %s", indices[i], *cachedItem, item)
		}
	}

	if _, found := cache.GetIndex("nonexistent"); found {
		t.Errorf("found non-existent item in cache")
	}
}

func TestSimpleCacheCapacity(t *testing.T) {
	const capacity = 5
	cache := NewSimpleCache[int](capacity)

	for i := 0; i < capacity; i++ {
		key := string(rune('a' + i))
		if _, err := cache.Register(key, i); err != nil {
			t.Errorf("failed to register item %s: %v", key, err)
		}
	}

	if _, err := cache.Register("overflow", 100); err == nil {
		t.Errorf("expected error when exceeding cache capacity, got none")
	}
}

func TestSimpleCacheClear(t *testing.T) {
	cache := NewSimpleCache[string](10)

	items := []string{"item1", "item2", "item3"}
	for _, item := range items {
		if _, err := cache.Register(item, item); err != nil {
			t.Errorf("failed to register item %s: %v", item, err)
		}
	}

	cache.Clear()

	for _, item := range items {
		if _, found := cache.GetIndex(item); found {
			t.Errorf("item %s still found after clear", item)
		}
	}

	for _, item := range items {
		if _, err := cache.Register(item, item); err != nil {
			t.Errorf("failed to register item %s after clear: %v", item, err)
		}
	}
}

func TestSimpleCacheComplexTypes(t *testing.T) {
	cache := NewSimpleCache[vec2](10)

	positions := []vec2{{X: 1.0, Y: 2.0}, {X: 3.0, Y: 4.0}, {X: 5.0, Y: 6.0}}
	keys := []string{"pos1", "pos2", "pos3"}

	for i, pos := range positions {
		if _, err := cache.Register(keys[i], pos); err != nil {
			t.Errorf("failed to register position %v: %v", pos, err)
		}
	}

	for i, key := range keys {
		index, found := cache.GetIndex(key)
		if !found {
			t.Errorf("position with key %s not found", key)
			continue
		}
		pos := cache.GetItem(index)
		if pos.X != positions[i].X || pos.Y != positions[i].Y {
			t.Errorf("position at index %d is %v, expected %v", index, pos, positions[i])
		}
	}
}

func TestQueryCacheRevalidatesOnWrite(t *testing.T) {
	w := NewWorld(DefaultConfig())
	posLayout := mustPositionLayout(t)
	pos, err := w.RegisterComponent("position", posLayout)
	if err != nil {
		t.Fatalf("register position: %v", err)
	}

	if _, err := w.NewEntities(3, pos); err != nil {
		t.Fatalf("new entities: %v", err)
	}

	qc := NewQueryCache(w)
	first := qc.Lookup([]Component{pos}, nil, nil)
	if len(first) != 1 {
		t.Fatalf("expected 1 matching archetype, got %d", len(first))
	}

	second := qc.Lookup([]Component{pos}, nil, nil)
	if len(second) != 1 || second[0] != first[0] {
		t.Errorf("expected cached lookup to return the same archetype")
	}

	w.AdvanceTick()
	w.MarkWritten("position")
	third := qc.Lookup([]Component{pos}, nil, nil)
	if len(third) != 1 {
		t.Errorf("expected lookup to still match after revalidation, got %d", len(third))
	}
	key := cacheKey([]Component{pos}, nil, nil)
	if qc.entries[key].lastValidatedTick != w.tick {
		t.Errorf("expected cache entry revalidated at tick %d, got %d", w.tick, qc.entries[key].lastValidatedTick)
	}
}
