// Package scene binds worlds to named scenes and drives the current one with its own loop.
package scene

import (
	"context"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nucleuslib/nucleus/pkg/nucleus/ecs"
	"github.com/nucleuslib/nucleus/pkg/nucleus/stage"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ErrManagerRunning is returned by Start when the manager loop is already running.
var ErrManagerRunning = eris.New("scene manager is already running")

// Scene is a named binding to the world it drives.
type Scene struct {
	id    uuid.UUID
	name  string
	world *ecs.World
}

func New(name string, world *ecs.World) *Scene {
	return &Scene{
		id:    uuid.New(),
		name:  name,
		world: world,
	}
}

func (s *Scene) ID() uuid.UUID {
	return s.id
}

func (s *Scene) Name() string {
	return s.name
}

// World returns the world the scene drives.
func (s *Scene) World() *ecs.World {
	return s.world
}

// Manager holds scenes and the one currently loaded. The scene list must only be modified from one
// goroutine; loading, unloading and stopping are safe from any goroutine.
type Manager struct {
	scenes  []*Scene
	current atomic.Pointer[Scene]
	stage   *stage.Manager
	logger  zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		scenes: make([]*Scene, 0),
		stage:  stage.NewManager(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) AddScene(s *Scene) {
	m.scenes = append(m.scenes, s)
}

// RemoveScene drops every scene with s's id and reports whether any was found. The current scene
// stays loaded even if it is removed.
func (m *Manager) RemoveScene(s *Scene) bool {
	n := len(m.scenes)
	m.scenes = slices.DeleteFunc(m.scenes, func(cur *Scene) bool { return cur.id == s.id })
	return len(m.scenes) != n
}

func (m *Manager) GetScene(id uuid.UUID) (*Scene, bool) {
	return m.GetSceneByPredicate(func(s *Scene) bool { return s.id == id })
}

func (m *Manager) GetSceneByPredicate(pred func(*Scene) bool) (*Scene, bool) {
	for _, s := range m.scenes {
		if pred(s) {
			return s, true
		}
	}
	return nil, false
}

// Scenes returns a snapshot of the registered scenes.
func (m *Manager) Scenes() []*Scene {
	return slices.Clone(m.scenes)
}

// LoadScene makes s current. s does not need to be registered.
func (m *Manager) LoadScene(s *Scene) {
	m.current.Store(s)
	m.logger.Debug().Str("scene", s.name).Str("id", s.id.String()).Msg("scene loaded")
}

// UnloadScene clears the current scene.
func (m *Manager) UnloadScene() {
	if prev := m.current.Swap(nil); prev != nil {
		m.logger.Debug().Str("scene", prev.name).Msg("scene unloaded")
	}
}

func (m *Manager) CurrentScene() (*Scene, bool) {
	s := m.current.Load()
	return s, s != nil
}

func (m *Manager) IsRunning() bool {
	return m.stage.Current() == stage.Running
}

// Start runs the scene loop: while running, the current scene's world gets an Update call. Worlds
// are not started by the loop; only their Update phase runs. Start returns nil after Stop and
// ctx.Err() when ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if !m.stage.CompareAndSwap(stage.Stopped, stage.Running) {
		return eris.Wrap(ErrManagerRunning, "failed to start scene loop")
	}
	m.logger.Info().Msg("scene loop started")

	for m.stage.Current() == stage.Running {
		if err := ctx.Err(); err != nil {
			m.Stop()
			return err
		}
		if s := m.current.Load(); s != nil {
			s.world.Update()
		} else {
			runtime.Gosched()
		}
	}
	return nil
}

// Stop ends the loop at the top of its next iteration.
func (m *Manager) Stop() {
	if old := m.stage.Swap(stage.Stopped); old != stage.Stopped {
		m.logger.Info().Msg("scene loop stopped")
	}
}
