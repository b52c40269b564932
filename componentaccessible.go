package kiln

import "unsafe"

// TypedComponent pairs a Component with a generic typed view over its row
// bytes, generalizing warehouse's AccessibleComponent[T] (a table.Accessor[T]
// bound to a field offset) to kiln's pool-backed layout: T's in-memory shape
// must match the component's fixed-size schema fields exactly, since the
// row bytes are reinterpreted directly rather than copied field by field.
// Components carrying dynamic data (strings, maps, sets) should use
// Cursor.ComponentBytes/Write and the view package instead.
type TypedComponent[T any] struct {
	Component
}

// NewTypedComponent wraps an already-registered Component for typed access.
func NewTypedComponent[T any](c Component) TypedComponent[T] {
	return TypedComponent[T]{Component: c}
}

// GetFromCursor returns a read-only pointer to T at the cursor's current
// entity.
func (tc TypedComponent[T]) GetFromCursor(cursor *Cursor) (*T, error) {
	buf, err := cursor.ComponentBytes(tc.Component)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&buf[0])), nil
}

// WriteFromCursor returns a writable pointer to T at the cursor's current
// entity, marking the component written at the World's current tick.
func (tc TypedComponent[T]) WriteFromCursor(cursor *Cursor) (*T, error) {
	buf, err := cursor.Write(tc.Component)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&buf[0])), nil
}

// CheckCursor reports whether the cursor's current archetype carries this
// component.
func (tc TypedComponent[T]) CheckCursor(cursor *Cursor) bool {
	return cursor.current.hasComponent(tc.Component.Name())
}

// GetFromEntity returns a read-only pointer to T on entity.
func (tc TypedComponent[T]) GetFromEntity(entity Entity) (*T, error) {
	buf, err := entity.ComponentBytes(tc.Component)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&buf[0])), nil
}
