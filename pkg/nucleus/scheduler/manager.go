package scheduler

import (
	"github.com/google/uuid"
)

// fixedStep is the amount every scheduler advances per Update unless WithElapsedDelta is set.
const fixedStep = 1.0

// Manager holds schedulers in registration order and advances them together.
type Manager struct {
	schedulers   []*Scheduler
	elapsedDelta bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithElapsedDelta makes Update advance schedulers by the caller's delta instead of the fixed
// one-unit step.
func WithElapsedDelta() ManagerOption {
	return func(m *Manager) { m.elapsedDelta = true }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{schedulers: make([]*Scheduler, 0)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add registers s. A scheduler registered with another manager is moved to this one.
func (m *Manager) Add(s *Scheduler) {
	if s.owner != nil && s.owner != m {
		s.owner.Remove(s)
	}
	s.owner = m
	m.schedulers = append(m.schedulers, s)
}

// Remove drops every entry with the same id as s and reports whether any was found.
func (m *Manager) Remove(s *Scheduler) bool {
	kept := m.schedulers[:0]
	for _, cur := range m.schedulers {
		if cur.id != s.id {
			kept = append(kept, cur)
		}
	}
	removed := len(kept) != len(m.schedulers)
	clear(m.schedulers[len(kept):])
	m.schedulers = kept
	if removed && s.owner == m {
		s.owner = nil
	}
	return removed
}

func (m *Manager) Get(id uuid.UUID) (*Scheduler, bool) {
	for _, s := range m.schedulers {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

func (m *Manager) GetByPredicate(pred func(*Scheduler) bool) (*Scheduler, bool) {
	for _, s := range m.schedulers {
		if pred(s) {
			return s, true
		}
	}
	return nil, false
}

func (m *Manager) Len() int {
	return len(m.schedulers)
}

// Prune removes inert schedulers and returns how many were dropped.
func (m *Manager) Prune() int {
	kept := m.schedulers[:0]
	for _, s := range m.schedulers {
		if s.running {
			kept = append(kept, s)
		} else {
			s.owner = nil
		}
	}
	pruned := len(m.schedulers) - len(kept)
	clear(m.schedulers[len(kept):])
	m.schedulers = kept
	return pruned
}

// Update advances every registered scheduler. Tasks may add or remove schedulers: additions are
// first advanced on the next Update, removed schedulers that were not reached yet are skipped.
func (m *Manager) Update(dt float64) {
	step := m.step(dt)
	snapshot := append([]*Scheduler(nil), m.schedulers...)
	for _, s := range snapshot {
		if s.owner != m {
			continue
		}
		s.Update(step)
	}
}

// step returns the delta handed to each scheduler. By default the caller's delta is ignored and
// every Update counts as one unit.
func (m *Manager) step(dt float64) float64 {
	if m.elapsedDelta {
		return dt
	}
	return fixedStep
}
