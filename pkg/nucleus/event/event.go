// Package event implements synchronous publish/subscribe keyed by the dynamic type of the event
// value.
//
// Handlers for a type run in subscription order. Matching is exact: publishing a *Foo does not
// reach handlers subscribed to Foo, and interfaces are never matched. A handler that publishes
// while the manager is dispatching has its event queued and delivered after the current fan-out
// completes, in FIFO order.
package event

import (
	"reflect"
)

// Handler is a type-erased subscriber. Subscribe wraps typed callbacks into this form.
type Handler func(any)

// initialQueueCapacity is the starting capacity of the pending event queue.
const initialQueueCapacity = 16

// Manager routes published events to the handlers subscribed to their type. It is not safe for
// concurrent use.
type Manager struct {
	handlers    map[reflect.Type][]Handler // Handlers indexed by event type, in subscription order
	queue       []any                      // Events published while dispatching
	dispatching bool                       // Whether a fan-out is in progress
}

// NewManager creates a new event manager.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[reflect.Type][]Handler),
		queue:    make([]any, 0, initialQueueCapacity),
	}
}

// Subscribe registers fn for events whose dynamic type is exactly T.
func Subscribe[T any](m *Manager, fn func(T)) {
	m.subscribe(reflect.TypeFor[T](), func(ev any) {
		fn(ev.(T)) //nolint:forcetypeassert // keyed by T
	})
}

func (m *Manager) subscribe(t reflect.Type, h Handler) {
	m.handlers[t] = append(m.handlers[t], h)
}

// Publish delivers ev to every handler subscribed to its dynamic type. Publishing a nil interface
// is a no-op.
func (m *Manager) Publish(ev any) {
	if ev == nil {
		return
	}

	m.queue = append(m.queue, ev)
	if m.dispatching {
		return
	}

	m.dispatching = true
	defer func() {
		m.dispatching = false
		clear(m.queue)
		m.queue = m.queue[:0]
	}()

	for i := 0; i < len(m.queue); i++ {
		m.dispatch(m.queue[i])
	}
}

func (m *Manager) dispatch(ev any) {
	// Handlers subscribed during the fan-out only see later events.
	for _, h := range m.handlers[reflect.TypeOf(ev)] {
		h(ev)
	}
}

// Subscribers returns the number of handlers registered for events of type T.
func Subscribers[T any](m *Manager) int {
	return len(m.handlers[reflect.TypeFor[T]()])
}
