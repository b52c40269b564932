package kiln

import (
	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
	"github.com/kiln-engine/kiln/view"
)

// elemFreeForSchema returns the ElemFreeFunc a collection view should use to
// release one element of the given element schema, or nil when that schema
// owns no dynamic data (the common case, letting collections of plain
// numbers skip a per-element dispatch entirely).
func elemFreeForSchema(layout schema.SchemaLayout) view.ElemFreeFunc {
	if !layout.HasDynamicData {
		return nil
	}
	return func(elem []byte, pool *mem.Pool) error {
		return freeRow(elem, pool, layout)
	}
}

// elemCopyForSchema returns the ElemCopyFunc a collection view should use to
// deep-copy one element of the given element schema, or nil when a raw byte
// copy is already correct.
func elemCopyForSchema(layout schema.SchemaLayout) view.ElemCopyFunc {
	if !layout.HasDynamicData {
		return nil
	}
	return func(dst, src []byte, pool *mem.Pool) error {
		return copyRow(dst, pool, src, layout)
	}
}

// freeRow releases every dynamic property a row of the given schema owns.
// It is the recursive base case elemFreeForSchema bottoms out into for
// nested collections, tuples, and union variants.
func freeRow(buf []byte, pool *mem.Pool, layout schema.SchemaLayout) error {
	for _, pl := range layout.Properties {
		if err := freeProperty(buf, pool, pl); err != nil {
			return err
		}
	}
	return nil
}

// copyRow deep-copies every property of the given schema from src into buf,
// reallocating any dynamic children from pool.
func copyRow(buf []byte, pool *mem.Pool, src []byte, layout schema.SchemaLayout) error {
	for _, pl := range layout.Properties {
		if err := copyProperty(buf, pool, src, pl); err != nil {
			return err
		}
	}
	return nil
}

func freeProperty(buf []byte, pool *mem.Pool, pl schema.PropertyLayout) error {
	switch pl.Binary.Kind {
	case schema.KindString:
		v, err := view.NewString(pl.Offset, pl)
		if err != nil {
			return err
		}
		return v.Free(buf, pool)
	case schema.KindArray:
		v, err := view.NewDynamicArray(pl.Offset, pl.Binary.Element.TotalSize, pl)
		if err != nil {
			return err
		}
		return v.Free(buf, pool, elemFreeForSchema(*pl.Binary.Element))
	case schema.KindFixedArray:
		v, err := view.NewFixedArray(pl.Offset, pl.Binary.Element.TotalSize, pl.Binary.FixedCount, pl)
		if err != nil {
			return err
		}
		return v.Free(buf, pool, elemFreeForSchema(*pl.Binary.Element))
	case schema.KindMap:
		v, err := view.NewHashMap(pl.Offset, pl.Binary.Key.TotalSize, pl.Binary.Value.TotalSize, pl.Binary.Key.Alignment, pl.Binary.Value.Alignment, pl)
		if err != nil {
			return err
		}
		return v.Free(buf, pool, elemFreeForSchema(*pl.Binary.Value))
	case schema.KindSet:
		v, err := view.NewHashSet(pl.Offset, pl.Binary.Element.TotalSize, pl.Binary.Element.Alignment, pl)
		if err != nil {
			return err
		}
		return v.Free(buf, pool)
	case schema.KindSparseSet:
		v, err := view.NewSparseSet(pl.Offset, pl)
		if err != nil {
			return err
		}
		return v.Free(buf, pool)
	case schema.KindUnion:
		v, err := view.NewTaggedUnion(pl.Offset, pl.Binary.Variants, pl)
		if err != nil {
			return err
		}
		variantLayout, err := v.VariantLayout(v.Tag(buf))
		if err != nil {
			return err
		}
		return v.Free(buf, pool, elemFreeForSchema(variantLayout))
	default:
		return nil
	}
}

func copyProperty(buf []byte, pool *mem.Pool, src []byte, pl schema.PropertyLayout) error {
	switch pl.Binary.Kind {
	case schema.KindString:
		v, err := view.NewString(pl.Offset, pl)
		if err != nil {
			return err
		}
		return v.CopyFrom(buf, pool, "string", src, v)
	case schema.KindArray:
		v, err := view.NewDynamicArray(pl.Offset, pl.Binary.Element.TotalSize, pl)
		if err != nil {
			return err
		}
		return v.CopyFrom(buf, pool, "array", src, v, elemCopyForSchema(*pl.Binary.Element))
	case schema.KindFixedArray:
		v, err := view.NewFixedArray(pl.Offset, pl.Binary.Element.TotalSize, pl.Binary.FixedCount, pl)
		if err != nil {
			return err
		}
		return v.CopyFrom(buf, pool, src, v, elemCopyForSchema(*pl.Binary.Element))
	case schema.KindUnion:
		v, err := view.NewTaggedUnion(pl.Offset, pl.Binary.Variants, pl)
		if err != nil {
			return err
		}
		srcTag := v.Tag(src)
		variantLayout, err := v.VariantLayout(srcTag)
		if err != nil {
			return err
		}
		return v.CopyFrom(buf, pool, src, v, elemCopyForSchema(variantLayout))
	default:
		// Primitives, tuples of primitives and enums are already correct
		// after the caller's bulk row copy. HashMap and HashSet have no
		// CopyFrom of their own: nothing in kiln duplicates a live row's
		// bytes onto another live row (AddComponent/RemoveComponent move a
		// row's ownership via evictRow rather than copying it, and rows are
		// always zero-initialized by pushRow otherwise), so a map or set
		// column's control block is never aliased by two owners at once.
		return nil
	}
}
