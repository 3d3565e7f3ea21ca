// Package stage tracks the run state of a world. It is the only piece of world state that is safe
// to read and write from other goroutines, so a host can stop a loop it does not own.
package stage

import (
	"sync/atomic"
)

type Stage string

const (
	Stopped  Stage = "Stopped"  // Default stage; also reached again after Stop
	Starting Stage = "Starting" // Plugins are being built and entities started
	Running  Stage = "Running"  // Frames are being dispatched
)

type Manager struct {
	current *atomic.Value
}

func NewManager() *Manager {
	m := &Manager{
		current: &atomic.Value{},
	}
	m.Store(Stopped)
	return m
}

func (m *Manager) CompareAndSwap(oldStage, newStage Stage) (swapped bool) {
	return m.current.CompareAndSwap(oldStage, newStage)
}

func (m *Manager) Current() Stage {
	return m.current.Load().(Stage)
}

func (m *Manager) Store(val Stage) {
	m.current.Store(val)
}

func (m *Manager) Swap(newStage Stage) (oldStage Stage) {
	return m.current.Swap(newStage).(Stage)
}

// Is reports whether the current stage is any of the given stages.
func (m *Manager) Is(stages ...Stage) bool {
	current := m.Current()
	for _, s := range stages {
		if s == current {
			return true
		}
	}
	return false
}
