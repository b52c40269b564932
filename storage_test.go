package kiln

import (
	"testing"
	"unsafe"
)

func TestArchetypeCreation(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos, _ := w.RegisterComponent("position", mustPositionLayout(t))
	vel, _ := w.RegisterComponent("velocity", mustVelocityLayout(t))
	health, _ := w.RegisterComponent("health", mustHealthLayout(t))

	tests := []struct {
		name                string
		firstComponents     []Component
		secondComponents    []Component
		expectSameArchetype bool
	}{
		{
			name:                "Identical components",
			firstComponents:     []Component{pos, vel},
			secondComponents:    []Component{pos, vel},
			expectSameArchetype: true,
		},
		{
			name:                "Different order",
			firstComponents:     []Component{pos, vel},
			secondComponents:    []Component{vel, pos},
			expectSameArchetype: true,
		},
		{
			name:                "Different components",
			firstComponents:     []Component{pos},
			secondComponents:    []Component{vel},
			expectSameArchetype: false,
		},
		{
			name:                "Subset components",
			firstComponents:     []Component{pos, vel},
			secondComponents:    []Component{pos},
			expectSameArchetype: false,
		},
		{
			name:                "Superset components",
			firstComponents:     []Component{pos},
			secondComponents:    []Component{pos, vel, health},
			expectSameArchetype: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archetype1 := w.archetypeFor(tt.firstComponents)
			archetype2 := w.archetypeFor(tt.secondComponents)

			sameArchetype := archetype1.ID() == archetype2.ID()
			if sameArchetype != tt.expectSameArchetype {
				t.Errorf("archetypes same: %v, expected: %v", sameArchetype, tt.expectSameArchetype)
			}
		})
	}
}

func TestEntityDestruction(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos, _ := w.RegisterComponent("position", mustPositionLayout(t))

	entities, err := w.NewEntities(10, pos)
	if err != nil {
		t.Fatalf("failed to create entities: %v", err)
	}

	if err := w.DestroyEntities(entities[0], entities[2], entities[4], entities[6], entities[8]); err != nil {
		t.Fatalf("failed to destroy entities: %v", err)
	}

	query := NewQuery()
	node := query.And(pos)
	cursor := NewCursor(node, w)

	count := 0
	for cursor.Next() {
		count++
	}

	if count != 5 {
		t.Errorf("entity count after destruction: %d, want 5", count)
	}

	for i, e := range entities {
		wantAlive := i%2 != 0
		if e.Valid() != wantAlive {
			t.Errorf("entity %d valid = %v, want %v", i, e.Valid(), wantAlive)
		}
	}
}

func TestWorldLocking(t *testing.T) {
	tests := []struct {
		name       string
		lockCount  int
		unlockIdx  int
		checks     []bool
	}{
		{
			name:      "Single lock",
			lockCount: 1,
			unlockIdx: 0,
			checks:    []bool{true, false},
		},
		{
			name:      "Multiple locks",
			lockCount: 3,
			unlockIdx: 1,
			checks:    []bool{true, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(DefaultConfig())
			pos, _ := w.RegisterComponent("position", mustPositionLayout(t))

			tokens := make([]uint32, tt.lockCount)
			for i := range tokens {
				tokens[i] = w.Lock()
			}

			if w.Locked() != tt.checks[0] {
				t.Errorf("initial lock state: %v, want %v", w.Locked(), tt.checks[0])
			}

			if err := w.EnqueueNewEntities(5, pos); err != nil {
				t.Fatalf("EnqueueNewEntities failed: %v", err)
			}

			w.Unlock(tokens[tt.unlockIdx])

			if w.Locked() != tt.checks[1] {
				t.Errorf("mid-operation lock state: %v, want %v", w.Locked(), tt.checks[1])
			}

			for i, tok := range tokens {
				if i != tt.unlockIdx {
					w.Unlock(tok)
				}
			}

			if w.Locked() != tt.checks[len(tt.checks)-1] {
				t.Errorf("final lock state: %v, want %v", w.Locked(), tt.checks[len(tt.checks)-1])
			}

			query := NewQuery()
			node := query.And(pos)
			cursor := NewCursor(node, w)

			count := 0
			for cursor.Next() {
				count++
			}

			if count != 5 {
				t.Errorf("entity count after unlocking: %d, want 5", count)
			}
		})
	}
}

func TestComponentAccessAfterAddComponent(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos, _ := w.RegisterComponent("position", mustPositionLayout(t))
	vel, _ := w.RegisterComponent("velocity", mustVelocityLayout(t))

	posAccess := NewTypedComponent[[2]float64](pos)
	velAccess := NewTypedComponent[[2]float64](vel)

	entities, err := w.NewEntities(1, pos)
	if err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}
	entity := entities[0]

	velVal := [2]float64{1.0, 2.0}
	if err := entity.AddComponent(vel, func(buf []byte) {
		*(*[2]float64)(unsafe.Pointer(&buf[0])) = velVal
	}); err != nil {
		t.Fatalf("failed to add velocity: %v", err)
	}

	posPtr, err := posAccess.GetFromEntity(entity)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	*posPtr = [2]float64{10.0, 20.0}

	posPtr2, err := posAccess.GetFromEntity(entity)
	if err != nil {
		t.Fatalf("get position again: %v", err)
	}
	velPtr, err := velAccess.GetFromEntity(entity)
	if err != nil {
		t.Fatalf("get velocity: %v", err)
	}

	if posPtr2[0] != 10.0 || posPtr2[1] != 20.0 {
		t.Errorf("position = %v, want {10, 20}", posPtr2)
	}
	if velPtr[0] != velVal[0] || velPtr[1] != velVal[1] {
		t.Errorf("velocity = %v, want %v", velPtr, velVal)
	}

	posPtr2[0] = 30.0
	posPtr2[1] = 40.0

	posPtr3, err := posAccess.GetFromEntity(entity)
	if err != nil {
		t.Fatalf("get position a third time: %v", err)
	}
	if posPtr3[0] != 30.0 || posPtr3[1] != 40.0 {
		t.Errorf("updated position = %v, want {30, 40}", posPtr3)
	}
}
