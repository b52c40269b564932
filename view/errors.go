package view

import "errors"

// ErrOutOfMemory is returned when the backing mem.Pool has no block
// large enough to satisfy a dynamic view's allocation. Per spec.md §7
// this is fatal to the operation; callers propagate it.
var ErrOutOfMemory = errors.New("view: pool out of memory")

// ErrInvalidUTF8 is returned when a dynamic string is assigned bytes
// that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("view: invalid utf-8")

// InvalidTagError is returned by TaggedUnion.Set and
// TaggedUnion.VariantLayout when a tag is outside the schema's known
// variant set.
type InvalidTagError struct {
	Tag uint8
}

func (e InvalidTagError) Error() string {
	return "view: invalid union tag"
}

// InvalidEnumError is returned when an enum write does not match any of
// the schema's enumerated values.
type InvalidEnumError struct {
	Value uint64
}

func (e InvalidEnumError) Error() string {
	return "view: invalid enum value"
}
