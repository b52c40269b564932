package kiln

import "fmt"

// LockedWorldError is returned by any operation that would mutate archetype
// membership while the world has outstanding cursor/lock holders.
type LockedWorldError struct{}

func (e LockedWorldError) Error() string { return "kiln: world is currently locked" }

// NotAliveError is returned when an operation targets an entity whose
// generation no longer matches the live one (already destroyed, or a stale
// handle from before a recycle).
type NotAliveError struct {
	Entity Entity
}

func (e NotAliveError) Error() string {
	return fmt.Sprintf("kiln: entity %v is not alive", e.Entity)
}

// ComponentExistsError is returned by AddComponent when the entity already
// carries the named component.
type ComponentExistsError struct {
	Component Component
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("kiln: component %q already exists on entity", e.Component.Name())
}

// ComponentNotFoundError is returned by RemoveComponent, or by a component
// accessor, when the entity does not carry the named component.
type ComponentNotFoundError struct {
	Component Component
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("kiln: component %q does not exist on entity", e.Component.Name())
}

// DependencyUnmetError is returned when a component is added to an entity
// without one of its declared Dependencies() already present.
type DependencyUnmetError struct {
	Component  Component
	Dependency string
}

func (e DependencyUnmetError) Error() string {
	return fmt.Sprintf("kiln: component %q requires %q, which is not present", e.Component.Name(), e.Dependency)
}

// DuplicateRegistrationError mirrors schema.DuplicateRegistrationError at the
// World boundary, for both component and relationship registration.
type DuplicateRegistrationError struct {
	Name string
}

func (e DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("kiln: %q is already registered; replacing", e.Name)
}

// CycleDetectedError is returned by the scheduler when a system's declared
// dependencies form a cycle, and by the relationship layer when a proposed
// parent assignment would create a parent/child cycle.
type CycleDetectedError struct {
	Path []string
}

func (e CycleDetectedError) Error() string {
	return fmt.Sprintf("kiln: dependency cycle detected: %v", e.Path)
}

// UnknownResourceError is returned by SetResource/Resource callers that
// expect a resource to already be registered when it is not.
type UnknownResourceError struct {
	Name string
}

func (e UnknownResourceError) Error() string {
	return fmt.Sprintf("kiln: resource %q is not registered", e.Name)
}

// UnknownRelationshipError is returned by SetRelationship when it is given
// a relationship name never passed to World.RegisterRelationship.
type UnknownRelationshipError struct {
	Name string
}

func (e UnknownRelationshipError) Error() string {
	return fmt.Sprintf("kiln: relationship %q is not registered", e.Name)
}
