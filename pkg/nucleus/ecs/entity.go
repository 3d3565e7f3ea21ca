package ecs

import (
	"reflect"

	"github.com/nucleuslib/nucleus/pkg/assert"
)

// Entity is a container of components with a name, typed user data and non-owning hierarchy
// links. Entities are created by a World and belong to it for their whole life.
type Entity struct {
	id    EntityID
	world *World
	name  string

	components []slot     // Insertion order is dispatch order
	caps       capability // Union of the capabilities of attached components
	scratch    []slot     // Reused snapshot buffer for dispatch

	parent   EntityID
	children []EntityID

	userData map[reflect.Type]any
	started  bool
}

func newEntity(w *World) *Entity {
	return &Entity{
		world:      w,
		components: make([]slot, 0),
		children:   make([]EntityID, 0),
	}
}

func (e *Entity) ID() EntityID {
	return e.id
}

// World returns the world that owns the entity.
func (e *Entity) World() *World {
	return e.world
}

func (e *Entity) Name() string {
	return e.name
}

func (e *Entity) SetName(name string) {
	e.name = name
}

// IsAlive reports whether the entity is still registered with its world.
func (e *Entity) IsAlive() bool {
	return e.world.arena.contains(e.id)
}

// -------------------------------------------------------------------------------------------------
// Components
// -------------------------------------------------------------------------------------------------

// AddComponent attaches c to the end of the component sequence. Attaching the same kind more than
// once is allowed. c must not be attached to another entity.
func (e *Entity) AddComponent(c Component) {
	assert.That(c != nil, "component must not be nil")
	b := c.base()
	assert.That(b.entity == nil || b.entity == e, "component %s is attached to another entity", b.ID())

	b.ID() // Pin the identifier before the component is visible to queries
	b.entity = e

	s := newSlot(c)
	e.components = append(e.components, s)
	e.caps |= s.caps
}

// RemoveComponent detaches every entry whose identifier equals c's and reports whether any was
// found. A detached component can be attached again.
func (e *Entity) RemoveComponent(c Component) bool {
	id := c.ID()

	kept := e.components[:0]
	e.caps = 0
	for _, s := range e.components {
		if s.component.ID() == id {
			continue
		}
		kept = append(kept, s)
		e.caps |= s.caps
	}
	removed := len(kept) != len(e.components)
	clear(e.components[len(kept):])
	e.components = kept

	if removed && c.base().entity == e {
		c.base().entity = nil
	}
	return removed
}

// Components returns a snapshot of the attached components in insertion order.
func (e *Entity) Components() []Component {
	out := make([]Component, 0, len(e.components))
	for _, s := range e.components {
		out = append(out, s.component)
	}
	return out
}

// -------------------------------------------------------------------------------------------------
// Lifecycle dispatch
// -------------------------------------------------------------------------------------------------
// Each dispatch iterates a snapshot of the component sequence taken when it begins. Components
// attached during the pass are not called in it. Components detached during the pass and not yet
// reached are skipped.
// -------------------------------------------------------------------------------------------------

// Start calls Start on every BasicLifeTime component.
func (e *Entity) Start() {
	e.dispatch(capBasic, func(s *slot) { s.basic.Start() })
}

// Update calls Update on every BasicLifeTime component.
func (e *Entity) Update() {
	e.dispatch(capBasic, func(s *slot) { s.basic.Update() })
}

// EarlyUpdate calls EarlyUpdate on every AdvancedLifeTime component.
func (e *Entity) EarlyUpdate() {
	e.dispatch(capAdvanced, func(s *slot) { s.advanced.EarlyUpdate() })
}

// LateUpdate calls LateUpdate on every AdvancedLifeTime component.
func (e *Entity) LateUpdate() {
	e.dispatch(capAdvanced, func(s *slot) { s.advanced.LateUpdate() })
}

func (e *Entity) dispatch(want capability, call func(*slot)) {
	if e.caps&want == 0 {
		return
	}

	// Claim the scratch buffer. A nested dispatch on the same entity finds it nil and allocates.
	snapshot := append(e.scratch[:0], e.components...)
	e.scratch = nil

	for i := range snapshot {
		s := &snapshot[i]
		if s.caps&want == 0 || s.component.base().entity != e {
			continue
		}
		call(s)
	}

	clear(snapshot)
	e.scratch = snapshot[:0]
}

// -------------------------------------------------------------------------------------------------
// Hierarchy
// -------------------------------------------------------------------------------------------------
// Parent and child links are handles resolved through the world on every access. A link to a
// removed entity reads as absent.
// -------------------------------------------------------------------------------------------------

// AddChild appends child to this entity's children and sets child's parent to this entity.
func (e *Entity) AddChild(child *Entity) {
	assert.That(child != nil, "child must not be nil")
	assert.That(child.world == e.world, "child %s belongs to another world", child.id)

	child.parent = e.id
	e.children = append(e.children, child.id)
}

// RemoveChild removes every link to child from this entity's children. It does not clear child's
// parent link.
func (e *Entity) RemoveChild(child *Entity) {
	kept := e.children[:0]
	for _, id := range e.children {
		if id != child.id {
			kept = append(kept, id)
		}
	}
	e.children = kept
}

// Parent returns the parent entity, if one was set and is still alive.
func (e *Entity) Parent() (*Entity, bool) {
	return e.world.arena.get(e.parent)
}

// Children returns the live children in the order they were added. Expired links are skipped.
func (e *Entity) Children() []*Entity {
	out := make([]*Entity, 0, len(e.children))
	for _, id := range e.children {
		if child, ok := e.world.arena.get(id); ok {
			out = append(out, child)
		}
	}
	return out
}

// ChildIDs returns the raw child handles, including ones that no longer resolve.
func (e *Entity) ChildIDs() []EntityID {
	out := make([]EntityID, len(e.children))
	copy(out, e.children)
	return out
}

// GetChildByName returns the first live child with the given name.
func (e *Entity) GetChildByName(name string) (*Entity, bool) {
	for _, id := range e.children {
		if child, ok := e.world.arena.get(id); ok && child.name == name {
			return child, true
		}
	}
	return nil, false
}
