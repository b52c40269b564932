/*
Package kiln provides an Entity-Component-System (ECS) runtime for games and
simulations, backed by a TLSF allocator and a reflect-free binary layout
engine.

Kiln offers a performant approach to managing game entities through
component-based design. It is built on an archetype-based storage system
that keeps entities with the same component types together for optimal
cache utilization, and it owns every component byte in a single
contiguous pool (package kiln/mem) addressed through typed views
(package kiln/view) described by reflected schemas (package kiln/schema).

Core Concepts:

  - Entity: a generation-checked handle to a game object.
  - Component: a schema-carrying data attribute attached to entities.
  - Archetype: a collection of entities sharing the same component set.
  - Query: a way to find entities with specific component combinations.
  - System: a scheduled unit of per-tick work with declared dependencies.

Basic Usage:

	world := kiln.NewWorld(kiln.Config{PoolSize: 1 << 20})

	position, _ := world.RegisterComponent("position", positionLayout)
	velocity, _ := world.RegisterComponent("velocity", velocityLayout)

	entities, _ := world.NewEntities(100, position, velocity)

	q := kiln.NewQuery()
	node := q.And(position, velocity)
	cursor := kiln.NewCursor(node, world)

	for cursor.Next() {
		row, _ := cursor.ComponentBytes(position)
		_ = row
	}

Kiln is a standalone library; it has no rendering or networking layer.
*/
package kiln
