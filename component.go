package kiln

import "github.com/kiln-engine/kiln/schema"

// Component represents a data attribute that can be attached to entities.
// Components can be used to build queries and are the unit archetype
// signatures are built from.
type Component interface {
	// Name is the component's registered, globally unique identifier.
	Name() string
	// Layout is the reflected binary layout (size, alignment, properties)
	// this component's row occupies in an archetype column.
	Layout() schema.SchemaLayout
	// Dependencies lists component names that must already be present on
	// an entity before this one can be added.
	Dependencies() []string
}

// component is the concrete Component kiln hands back from
// World.RegisterComponent.
type component struct {
	name   string
	layout schema.SchemaLayout
	deps   []string
}

func (c component) Name() string            { return c.name }
func (c component) Layout() schema.SchemaLayout { return c.layout }
func (c component) Dependencies() []string  { return c.deps }
