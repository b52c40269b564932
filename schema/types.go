// Package schema describes the static reflected layout of every
// component, resource and nested value kiln knows how to store: class
// name, total size, alignment, and an ordered list of property layouts.
package schema

import "fmt"

// Kind identifies the storage category of a type string's outermost
// shape, independent of its primitive element type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindString
	KindArray      // arr<E>, also the implicit T[] suffix form
	KindFixedArray // fixed_arr<E,N>, also [T,N]
	KindMap        // map<K,V>
	KindSet        // set<E>
	KindSparseSet
	KindTuple // [T1,T2,...]
	KindUnion // T1|T2|...
	KindEnum
)

// BinaryInfo records everything about a property's shape beyond its flat
// offset/size/alignment: nestedness, dynamicness, the element schema(s)
// for collections, and the variant set for unions.
type BinaryInfo struct {
	Kind       Kind
	Dynamic    bool          // true if this property owns pool-allocated storage
	Element    *SchemaLayout // element schema for arrays/sets/sparse sets
	Key        *SchemaLayout // key schema for maps
	Value      *SchemaLayout // value schema for maps
	FixedCount uint32        // N for fixed_arr<E,N> / [T,N]
	Variants   []SchemaLayout
	EnumValues []string
	BaseWidth  uint8 // 8/16/32 for enum base type
}

// PropertyLayout is the static description of one field of a reflected
// type.
type PropertyLayout struct {
	Key        string
	Order      int
	TypeString string
	Offset     uint32
	Size       uint32
	Alignment  uint32
	BitOffset  *uint8 // set only for bit-packed fields
	BitWidth   *uint8
	Default    any
	Binary     BinaryInfo
}

// SchemaLayout is the static description of a reflectable type: its
// class name, total footprint, alignment, and ordered properties.
type SchemaLayout struct {
	ClassName      string
	TotalSize      uint32
	Alignment      uint32
	Properties     []PropertyLayout
	HasDynamicData bool
}

// Validate checks the invariants spec.md §3 "Schemas and property
// layouts" requires of every SchemaLayout: every property's offset is
// aligned to its own alignment, the total size is a multiple of the
// schema's alignment, and bit-packed fields share a single container
// field without spanning it.
func (s SchemaLayout) Validate() error {
	if s.Alignment == 0 || s.Alignment&(s.Alignment-1) != 0 {
		return fmt.Errorf("schema %q: alignment %d is not a power of two", s.ClassName, s.Alignment)
	}
	if s.TotalSize%s.Alignment != 0 {
		return fmt.Errorf("schema %q: total size %d is not a multiple of alignment %d", s.ClassName, s.TotalSize, s.Alignment)
	}
	for _, p := range s.Properties {
		if p.Alignment != 0 && p.Offset%p.Alignment != 0 {
			return fmt.Errorf("schema %q: property %q offset %d is misaligned for alignment %d", s.ClassName, p.Key, p.Offset, p.Alignment)
		}
		if p.BitWidth != nil {
			if p.BitOffset == nil {
				return fmt.Errorf("schema %q: property %q has a bit width but no bit offset", s.ClassName, p.Key)
			}
			if uint32(*p.BitOffset)+uint32(*p.BitWidth) > p.Size*8 {
				return fmt.Errorf("schema %q: property %q bit field spans past its container field", s.ClassName, p.Key)
			}
		}
	}
	return nil
}

// Registry is the process-wide table of reflected schemas, reached
// through a World rather than as package-level state (spec.md §9
// "Global mutable state" — the world is the single container).
type Registry struct {
	byName map[string]SchemaLayout
}

// NewRegistry constructs an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]SchemaLayout)}
}

// DuplicateRegistrationError is returned (informationally; the second
// registration still replaces the first, per spec.md §7) so callers can
// log the condition.
type DuplicateRegistrationError struct {
	Name string
}

func (e DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("schema: %q is already registered; replacing", e.Name)
}

// Register records a schema under its class name, returning
// DuplicateRegistrationError (non-fatal) if one was already present.
func (r *Registry) Register(layout SchemaLayout) error {
	_, exists := r.byName[layout.ClassName]
	r.byName[layout.ClassName] = layout
	if exists {
		return DuplicateRegistrationError{Name: layout.ClassName}
	}
	return nil
}

// Lookup returns the schema registered under name, if any.
func (r *Registry) Lookup(name string) (SchemaLayout, bool) {
	s, ok := r.byName[name]
	return s, ok
}
