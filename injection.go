package kiln

import (
	"fmt"
	"reflect"
	"strings"
)

// Injector resolves a System's declared dependencies into its fields by
// reflect-driven struct-tag inspection, generalizing plus3-ooftn/ecs's
// View[T] (struct fields tagged to identify which component pointer goes
// where, resolved once and reused) from "component pointer per field" to
// "resource, query, or command-buffer value per field" (spec.md §4.8).
//
// A system's injected parameters are declared as a plain struct:
//
//	type MovementDeps struct {
//	    Clock   *ClockResource `kiln:"resource=clock"`
//	    Moving  *kiln.Cursor   `kiln:"query=moving"`
//	    Cmds    *kiln.CommandBuffer `kiln:"commands"`
//	}
//
// and resolved once per call via Injector.Resolve(world, &deps).
//
// injectorCacheCapacity bounds the number of distinct injection-target
// struct shapes an Injector will memoize; a process wires together far
// fewer distinct dependency structs than this, so it is never expected to
// be hit in practice.
const injectorCacheCapacity = 4096

type Injector struct {
	cache *SimpleCache[*injectionTarget]
}

type injectionField struct {
	index int
	kind  string
	arg   string
}

type injectionTarget struct {
	fields []injectionField
}

// NewInjector returns an Injector with an empty resolution cache.
func NewInjector() *Injector {
	return &Injector{cache: NewSimpleCache[*injectionTarget](injectorCacheCapacity)}
}

func (inj *Injector) targetFor(t reflect.Type) (*injectionTarget, error) {
	key := t.String()
	if idx, ok := inj.cache.GetIndex(key); ok {
		return *inj.cache.GetItem(idx), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("kiln: injection target must be a struct, got %s", t)
	}
	target := &injectionTarget{}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("kiln")
		if tag == "" {
			continue
		}
		kind, arg, _ := strings.Cut(tag, "=")
		target.fields = append(target.fields, injectionField{index: i, kind: kind, arg: arg})
	}
	if _, err := inj.cache.Register(key, target); err != nil {
		return nil, err
	}
	return target, nil
}

// Resolve fills dst, a pointer to a struct whose fields carry `kiln:"..."`
// tags, with values drawn from w: `resource=name` looks up a World
// resource, `query=name` resolves a registered named query into a fresh
// *Cursor, and `commands` supplies the World's CommandBuffer.
func (inj *Injector) Resolve(w *World, dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("kiln: injection destination must be a pointer to struct, got %T", dst)
	}
	elem := v.Elem()
	target, err := inj.targetFor(elem.Type())
	if err != nil {
		return err
	}
	for _, f := range target.fields {
		field := elem.Field(f.index)
		switch f.kind {
		case "resource":
			res, ok := w.Resource(f.arg)
			if !ok {
				return UnknownResourceError{Name: f.arg}
			}
			rv := reflect.ValueOf(res)
			if !rv.Type().AssignableTo(field.Type()) {
				return fmt.Errorf("kiln: resource %q has type %s, field wants %s", f.arg, rv.Type(), field.Type())
			}
			field.Set(rv)
		case "query":
			node, ok := w.namedQueries[f.arg]
			if !ok {
				return fmt.Errorf("kiln: no query registered under %q", f.arg)
			}
			field.Set(reflect.ValueOf(NewCursor(node, w)))
		case "commands":
			field.Set(reflect.ValueOf(w.commands))
		default:
			return fmt.Errorf("kiln: unknown injection kind %q", f.kind)
		}
	}
	return nil
}
