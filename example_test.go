package kiln_test

import (
	"fmt"

	"github.com/kiln-engine/kiln"
	"github.com/kiln-engine/kiln/schema"
)

func vec2Layout(className string) schema.SchemaLayout {
	return schema.SchemaLayout{
		ClassName: className,
		TotalSize: 16,
		Alignment: 8,
		Properties: []schema.PropertyLayout{
			{Key: "x", Order: 0, TypeString: "f64", Offset: 0, Size: 8, Alignment: 8},
			{Key: "y", Order: 1, TypeString: "f64", Offset: 8, Size: 8, Alignment: 8},
		},
	}
}

func tagLayout() schema.SchemaLayout {
	return schema.SchemaLayout{
		ClassName: "Tag",
		TotalSize: 4,
		Alignment: 4,
		Properties: []schema.PropertyLayout{
			{Key: "id", Order: 0, TypeString: "i32", Offset: 0, Size: 4, Alignment: 4},
		},
	}
}

// Example_basic shows basic kiln usage with entity creation and queries.
func Example_basic() {
	w := kiln.NewWorld(kiln.DefaultConfig())

	position, _ := w.RegisterComponent("position", vec2Layout("Position"))
	velocity, _ := w.RegisterComponent("velocity", vec2Layout("Velocity"))
	tag, _ := w.RegisterComponent("tag", tagLayout())

	posAccess := kiln.NewTypedComponent[[2]float64](position)
	velAccess := kiln.NewTypedComponent[[2]float64](velocity)
	tagAccess := kiln.NewTypedComponent[int32](tag)

	w.NewEntities(5, position)
	w.NewEntities(3, position, velocity)

	entities, _ := w.NewEntities(1, position, velocity, tag)
	named := entities[0]

	namedTag, _ := tagAccess.GetFromEntity(named)
	*namedTag = 1

	pos, _ := posAccess.GetFromEntity(named)
	vel, _ := velAccess.GetFromEntity(named)
	pos[0], pos[1] = 10.0, 20.0
	vel[0], vel[1] = 1.0, 2.0

	query := kiln.NewQuery()
	node := query.And(position, velocity)
	cursor := kiln.NewCursor(node, w)

	matchCount := 0
	for cursor.Next() {
		matchCount++
	}
	fmt.Printf("Found %d entities with position and velocity\n", matchCount)

	query = kiln.NewQuery()
	node = query.And(tag)
	cursor = kiln.NewCursor(node, w)

	for cursor.Next() {
		p, _ := posAccess.GetFromCursor(cursor)
		v, _ := velAccess.GetFromCursor(cursor)
		p[0] += v[0]
		p[1] += v[1]
		fmt.Printf("Updated position to (%.1f, %.1f)\n", p[0], p[1])
	}

	// Output:
	// Found 4 entities with position and velocity
	// Updated position to (11.0, 22.0)
}

// Example_queries shows how to use different query operations.
func Example_queries() {
	w := kiln.NewWorld(kiln.DefaultConfig())

	position, _ := w.RegisterComponent("position", vec2Layout("Position"))
	velocity, _ := w.RegisterComponent("velocity", vec2Layout("Velocity"))
	tag, _ := w.RegisterComponent("tag", tagLayout())

	w.NewEntities(3, position)
	w.NewEntities(3, position, velocity)
	w.NewEntities(3, position, tag)
	w.NewEntities(3, position, velocity, tag)

	query := kiln.NewQuery()
	andQuery := query.And(position, velocity)
	cursor := kiln.NewCursor(andQuery, w)
	fmt.Printf("AND query matched %d entities\n", cursor.TotalMatched())

	query = kiln.NewQuery()
	orQuery := query.Or(velocity, tag)
	cursor = kiln.NewCursor(orQuery, w)
	fmt.Printf("OR query matched %d entities\n", cursor.TotalMatched())

	query = kiln.NewQuery()
	notQuery := query.Not(velocity)
	cursor = kiln.NewCursor(notQuery, w)
	fmt.Printf("NOT query matched %d entities\n", cursor.TotalMatched())

	// Output:
	// AND query matched 6 entities
	// OR query matched 9 entities
	// NOT query matched 6 entities
}
