package ecs

import "reflect"

// User data is keyed by its Go type, so a lookup with the wrong type misses instead of returning
// a value of an unexpected shape. Use distinct named types to store several values of the same
// underlying type.

// SetUserData stores v on e under the type T, replacing any previous value of that type.
func SetUserData[T any](e *Entity, v T) {
	if e.userData == nil {
		e.userData = make(map[reflect.Type]any)
	}
	e.userData[reflect.TypeFor[T]()] = v
}

// GetUserData returns the value of type T stored on e.
func GetUserData[T any](e *Entity) (T, bool) {
	v, ok := e.userData[reflect.TypeFor[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	// A nil stored under an interface type comes back as the zero value.
	t, _ := v.(T)
	return t, true
}

// DeleteUserData removes the value of type T from e and reports whether it was present.
func DeleteUserData[T any](e *Entity) bool {
	key := reflect.TypeFor[T]()
	if _, ok := e.userData[key]; !ok {
		return false
	}
	delete(e.userData, key)
	return true
}
