package view

import (
	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

// TaggedUnion is a view over [u8 tag][padding][variant payload], where
// the tag is a dense index into the schema's declared variant order
// (spec.md §4.2 "Tagged union"). The payload region is sized to the
// widest variant and its offset is aligned to the widest variant's
// alignment.
type TaggedUnion struct {
	offset      uint32
	payloadOff  uint32
	payloadSize uint32
	variants    []schema.SchemaLayout
	layout      schema.PropertyLayout
}

// NewTaggedUnion constructs a TaggedUnion view. variants must be in the
// same order as the schema's union member list, so that tag values stay
// dense.
func NewTaggedUnion(offset uint32, variants []schema.SchemaLayout, layout schema.PropertyLayout) (TaggedUnion, error) {
	var maxSize, maxAlign uint32 = 0, 1
	for _, v := range variants {
		if v.TotalSize > maxSize {
			maxSize = v.TotalSize
		}
		if v.Alignment > maxAlign {
			maxAlign = v.Alignment
		}
	}
	payloadOff := alignUpTo(offset+1, maxAlign) - offset
	return TaggedUnion{
		offset:      offset,
		payloadOff:  payloadOff,
		payloadSize: maxSize,
		variants:    variants,
		layout:      layout,
	}, nil
}

func (u TaggedUnion) Offset() uint32               { return u.offset }
func (u TaggedUnion) Layout() schema.PropertyLayout { return u.layout }
func (u TaggedUnion) VariantCount() int             { return len(u.variants) }

// Tag returns the currently stored variant tag.
func (u TaggedUnion) Tag(buf []byte) uint8 {
	return buf[u.offset]
}

// Payload returns the raw payload bytes, sized to the widest variant
// regardless of which variant is active.
func (u TaggedUnion) Payload(buf []byte) []byte {
	start := u.offset + u.payloadOff
	return buf[start : start+u.payloadSize]
}

// VariantLayout returns the schema for the variant at tag, or
// InvalidTagError if tag is out of range.
func (u TaggedUnion) VariantLayout(tag uint8) (schema.SchemaLayout, error) {
	if int(tag) >= len(u.variants) {
		return schema.SchemaLayout{}, InvalidTagError{Tag: tag}
	}
	return u.variants[tag], nil
}

// Set frees the currently active variant's dynamic data via oldFree (nil
// if the active variant has none), zeroes the payload, writes newTag,
// and invokes write(dst) so the caller can populate the new variant
// (allocating any dynamic children it owns).
func (u TaggedUnion) Set(buf []byte, pool *mem.Pool, newTag uint8, oldFree ElemFreeFunc, write func(dst []byte) error) error {
	if int(newTag) >= len(u.variants) {
		return InvalidTagError{Tag: newTag}
	}
	if oldFree != nil {
		if err := oldFree(u.Payload(buf), pool); err != nil {
			return err
		}
	}
	dst := u.Payload(buf)
	for i := range dst {
		dst[i] = 0
	}
	buf[u.offset] = newTag
	if write != nil {
		return write(dst)
	}
	return nil
}

// Free releases the active variant's dynamic data via free (nil if it
// owns none).
func (u TaggedUnion) Free(buf []byte, pool *mem.Pool, free ElemFreeFunc) error {
	if free == nil {
		return nil
	}
	return free(u.Payload(buf), pool)
}

// CopyFrom deep-copies src's active tag and payload into u via copy (nil
// falls back to a raw byte copy, correct only when the active variant
// has no dynamic data).
func (u TaggedUnion) CopyFrom(buf []byte, pool *mem.Pool, src []byte, srcView TaggedUnion, copyFn ElemCopyFunc) error {
	tag := srcView.Tag(src)
	buf[u.offset] = tag
	dst := u.Payload(buf)
	s := srcView.Payload(src)
	if copyFn != nil {
		return copyFn(dst, s, pool)
	}
	copy(dst, s)
	return nil
}
