package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// Lookups match a component when it can be asserted to T: by exact dynamic type when T is a
// concrete component type, by implementation when T is an interface. All of them are linear
// scans.

// GetComponent returns the first component of kind T attached to e, in insertion order. It returns
// ErrComponentNotFound if there is none.
func GetComponent[T Component](e *Entity) (T, error) {
	if c, ok := findComponent[T](e); ok {
		return c, nil
	}
	var zero T
	return zero, eris.Wrapf(ErrComponentNotFound, "component %s", kindName[T]())
}

// HasComponent reports whether e has a component of kind T.
func HasComponent[T Component](e *Entity) bool {
	_, ok := findComponent[T](e)
	return ok
}

// GetEntityByComponent returns the first entity, in registry order, that has a component of kind
// T.
func GetEntityByComponent[T Component](w *World) (*Entity, bool) {
	for _, e := range w.entities {
		if HasComponent[T](e) {
			return e, true
		}
	}
	return nil, false
}

// GetEntitiesByComponent returns every entity that has a component of kind T, in registry order.
func GetEntitiesByComponent[T Component](w *World) []*Entity {
	out := make([]*Entity, 0)
	for _, e := range w.entities {
		if HasComponent[T](e) {
			out = append(out, e)
		}
	}
	return out
}

// GetComponents returns the first component of kind T from every entity that has one, in registry
// order.
func GetComponents[T Component](w *World) []T {
	out := make([]T, 0)
	for _, e := range w.entities {
		if c, ok := findComponent[T](e); ok {
			out = append(out, c)
		}
	}
	return out
}

// GetSingletonComponent returns the first component of kind T in the world. It does not check
// that only one exists.
func GetSingletonComponent[T Component](w *World) (T, error) {
	for _, e := range w.entities {
		if c, ok := findComponent[T](e); ok {
			return c, nil
		}
	}
	var zero T
	return zero, eris.Wrapf(ErrComponentNotFound, "component %s", kindName[T]())
}

// findComponent is the lookup shared by the queries above. Absence is not an error here, so scans
// over many entities do not build one per miss.
func findComponent[T Component](e *Entity) (T, bool) {
	for _, s := range e.components {
		if c, ok := s.component.(T); ok {
			return c, true
		}
	}
	var zero T
	return zero, false
}

func kindName[T any]() string {
	return reflect.TypeFor[T]().String()
}
