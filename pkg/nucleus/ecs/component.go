package ecs

import (
	"reflect"

	"github.com/google/uuid"
)

// Component is a unit of data and behavior attached to a single entity. Concrete components embed
// BaseComponent and are attached by pointer:
//
//	type Health struct {
//		ecs.BaseComponent
//		HP int
//	}
//
//	e.AddComponent(&Health{HP: 10})
type Component interface {
	// ID returns the component's process-unique identifier.
	ID() uuid.UUID
	// Entity returns the owning entity, or nil if the component is not attached.
	Entity() *Entity

	base() *BaseComponent
}

// BasicLifeTime is implemented by components that want Start and Update calls.
type BasicLifeTime interface {
	Start()
	Update()
}

// AdvancedLifeTime is implemented by components that want EarlyUpdate and LateUpdate calls.
type AdvancedLifeTime interface {
	EarlyUpdate()
	LateUpdate()
}

// BaseComponent carries the identity and owner of a component.
type BaseComponent struct {
	id     uuid.UUID
	entity *Entity
}

// ID returns the component's identifier, generating it on first use. It never changes afterwards.
func (b *BaseComponent) ID() uuid.UUID {
	if b.id == uuid.Nil {
		b.id = uuid.New()
	}
	return b.id
}

func (b *BaseComponent) Entity() *Entity {
	return b.entity
}

func (b *BaseComponent) base() *BaseComponent {
	return b
}

// capability is the set of lifecycle hooks a component implements.
type capability uint8

const (
	capBasic capability = 1 << iota
	capAdvanced
)

// slot is a component attached to an entity together with its lifecycle hooks, resolved once at
// attach time so dispatch never type-checks.
type slot struct {
	component Component
	kind      string // Type name without package or pointer, e.g. "Health"
	caps      capability
	basic     BasicLifeTime
	advanced  AdvancedLifeTime
}

func newSlot(c Component) slot {
	s := slot{component: c, kind: kindOf(c)}
	if basic, ok := c.(BasicLifeTime); ok {
		s.caps |= capBasic
		s.basic = basic
	}
	if advanced, ok := c.(AdvancedLifeTime); ok {
		s.caps |= capAdvanced
		s.advanced = advanced
	}
	return s
}

func kindOf(c Component) string {
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
