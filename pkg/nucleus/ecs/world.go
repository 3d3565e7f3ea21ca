package ecs

import (
	"context"
	"slices"
	"time"

	"github.com/armon/go-metrics"
	"github.com/google/uuid"
	"github.com/nucleuslib/nucleus/pkg/nucleus/event"
	"github.com/nucleuslib/nucleus/pkg/nucleus/scheduler"
	"github.com/nucleuslib/nucleus/pkg/nucleus/stage"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// nominalDelta is the delta the scheduler manager receives once per frame.
const nominalDelta = 1.0

// World owns entities and drives their lifecycle. Apart from Stop, IsRunning and Stage, a World
// must only be used from one goroutine.
type World struct {
	id uuid.UUID

	arena    arena
	entities []*Entity // Registry order is dispatch order
	pending  []*Entity // Spawned but not started yet
	scratch  []*Entity // Reused registry snapshot buffer

	plugins    []pluginEntry
	events     *event.Manager
	schedulers *scheduler.Manager
	stage      *stage.Manager
	frame      uint64

	logger        zerolog.Logger
	metrics       *metrics.Metrics
	schedulerOpts []scheduler.ManagerOption
}

// NewWorld creates a stopped world with no entities.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		id:       uuid.New(),
		arena:    newArena(),
		entities: make([]*Entity, 0),
		pending:  make([]*Entity, 0),
		plugins:  make([]pluginEntry, 0),
		events:   event.NewManager(),
		stage:    stage.NewManager(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.schedulers = scheduler.NewManager(w.schedulerOpts...)
	w.logger = w.logger.With().Str("world", w.id.String()).Logger()
	return w
}

func (w *World) ID() uuid.UUID {
	return w.id
}

// Logger returns the world's logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.logger
}

// FrameCount returns the number of frames completed.
func (w *World) FrameCount() uint64 {
	return w.frame
}

// -------------------------------------------------------------------------------------------------
// Entity registry
// -------------------------------------------------------------------------------------------------

// SpawnEntity creates an entity owned by this world and appends it to the registry. If the world
// is running, the entity is started at the top of the next frame.
func (w *World) SpawnEntity() *Entity {
	e := newEntity(w)
	e.id = w.arena.insert(e)
	w.entities = append(w.entities, e)
	w.pending = append(w.pending, e)

	w.incrCounter("spawned")
	return e
}

// SpawnEntityWithComponents spawns an entity and attaches components in argument order.
func (w *World) SpawnEntityWithComponents(components ...Component) *Entity {
	e := w.SpawnEntity()
	for _, c := range components {
		e.AddComponent(c)
	}
	return e
}

// RemoveEntity drops e from the registry, and from the start queue if it never started, and
// invalidates its handle. Children and components are
// left untouched. It reports whether e was registered.
func (w *World) RemoveEntity(e *Entity) bool {
	if e == nil || e.world != w || !w.arena.remove(e.id) {
		return false
	}

	w.entities = slices.DeleteFunc(w.entities, func(cur *Entity) bool { return cur == e })
	w.pending = slices.DeleteFunc(w.pending, func(cur *Entity) bool { return cur == e })
	w.incrCounter("removed")
	return true
}

// GetEntity resolves id to a live entity.
func (w *World) GetEntity(id EntityID) (*Entity, bool) {
	return w.arena.get(id)
}

// GetEntityByPredicate returns the first entity in registry order for which pred returns true.
func (w *World) GetEntityByPredicate(pred func(*Entity) bool) (*Entity, bool) {
	for _, e := range w.entities {
		if pred(e) {
			return e, true
		}
	}
	return nil, false
}

// Entities returns a snapshot of the registry.
func (w *World) Entities() []*Entity {
	return slices.Clone(w.entities)
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.entities)
}

// -------------------------------------------------------------------------------------------------
// Plugins, events and schedulers
// -------------------------------------------------------------------------------------------------

// AddPlugin registers p. Plugins are built in registration order by the next Start.
func (w *World) AddPlugin(p Plugin) {
	w.plugins = append(w.plugins, pluginEntry{plugin: p})
}

// Events returns the world's event manager.
func (w *World) Events() *event.Manager {
	return w.events
}

// Publish delivers ev to the world's subscribers of its type.
func (w *World) Publish(ev any) {
	w.events.Publish(ev)
}

// Subscribe registers fn for events of type T published on w.
func Subscribe[T any](w *World, fn func(T)) {
	event.Subscribe(w.events, fn)
}

// Schedulers returns the world's scheduler manager.
func (w *World) Schedulers() *scheduler.Manager {
	return w.schedulers
}

func (w *World) AddScheduler(s *scheduler.Scheduler) {
	w.schedulers.Add(s)
}

func (w *World) RemoveScheduler(s *scheduler.Scheduler) bool {
	return w.schedulers.Remove(s)
}

// Schedule creates a scheduler and registers it with the world.
func (w *World) Schedule(wait float64, policy scheduler.Policy, task scheduler.Task) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(wait, policy, task)
	if err != nil {
		return nil, err
	}
	w.schedulers.Add(s)
	return s, nil
}

// -------------------------------------------------------------------------------------------------
// Run loop
// -------------------------------------------------------------------------------------------------

// Stage returns the current run stage. Safe for concurrent use.
func (w *World) Stage() stage.Stage {
	return w.stage.Current()
}

// IsRunning reports whether the world is starting or running. Safe for concurrent use.
func (w *World) IsRunning() bool {
	return w.stage.Is(stage.Starting, stage.Running)
}

// Start builds the plugins that have not been built yet, in registration order, then starts the
// entities that have not been started, in registry order. A plugin error stops the world and is
// returned.
func (w *World) Start() error {
	if !w.stage.CompareAndSwap(stage.Stopped, stage.Starting) {
		return eris.Wrapf(ErrWorldRunning, "world %s is %s", w.id, w.stage.Current())
	}

	for i := range w.plugins {
		entry := &w.plugins[i]
		if entry.built {
			continue
		}
		name := pluginName(entry.plugin)
		if err := entry.plugin.Build(w); err != nil {
			w.stage.Store(stage.Stopped)
			w.logger.Error().Err(err).Str("plugin", name).Msg("plugin build failed")
			return &PluginError{Plugin: name, Err: err}
		}
		entry.built = true
		w.logger.Debug().Str("plugin", name).Msg("plugin built")
	}

	if !w.stage.CompareAndSwap(stage.Starting, stage.Running) {
		w.logger.Info().Msg("world stopped while starting")
		return nil
	}

	w.startPending()
	w.logger.Info().Int("entities", len(w.entities)).Int("plugins", len(w.plugins)).Msg("world started")
	return nil
}

// Stop clears the running flag. A running loop observes it at the top of its next iteration.
// Safe for concurrent use.
func (w *World) Stop() {
	if old := w.stage.Swap(stage.Stopped); old != stage.Stopped {
		w.logger.Info().Str("from", string(old)).Msg("world stopped")
	}
}

// Run starts the world and runs frames back to back until Stop is called or ctx is done. It
// returns nil after Stop and ctx.Err() on cancellation. There is no frame pacing; hosts that need
// real time drive Frame themselves.
func (w *World) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}

	for w.stage.Current() == stage.Running {
		if err := ctx.Err(); err != nil {
			w.Stop()
			return err
		}
		w.Frame()
	}
	w.logger.Debug().Uint64("frames", w.frame).Msg("run loop exited")
	return nil
}

// Frame runs one full frame: pending entities are started, then EarlyUpdate, Update (followed by
// the scheduler advance) and LateUpdate run over every entity. All three phases iterate the same
// registry snapshot, taken before pending entities start, so an entity spawned during the frame
// (including from a Start hook) gets its first hook on the next one.
func (w *World) Frame() {
	defer w.recoverFrame()
	if w.metrics != nil {
		defer w.metrics.MeasureSince([]string{"world", "frame"}, time.Now())
	}

	entities := w.snapshot()
	w.startPending()

	w.earlyUpdate(entities)
	w.update(entities)
	w.lateUpdate(entities)
	w.release(entities)

	w.frame++
	if w.metrics != nil {
		w.metrics.SetGauge([]string{"world", "entities"}, float32(len(w.entities)))
	}
}

// EarlyUpdate calls EarlyUpdate on every entity in registry order.
func (w *World) EarlyUpdate() {
	entities := w.snapshot()
	w.earlyUpdate(entities)
	w.release(entities)
}

// Update calls Update on every entity in registry order, then advances the schedulers.
func (w *World) Update() {
	entities := w.snapshot()
	w.update(entities)
	w.release(entities)
}

// LateUpdate calls LateUpdate on every entity in registry order.
func (w *World) LateUpdate() {
	entities := w.snapshot()
	w.lateUpdate(entities)
	w.release(entities)
}

func (w *World) earlyUpdate(entities []*Entity) {
	for _, e := range entities {
		if w.arena.contains(e.id) {
			e.EarlyUpdate()
		}
	}
}

func (w *World) update(entities []*Entity) {
	for _, e := range entities {
		if w.arena.contains(e.id) {
			e.Update()
		}
	}
	w.schedulers.Update(nominalDelta)
}

func (w *World) lateUpdate(entities []*Entity) {
	for _, e := range entities {
		if w.arena.contains(e.id) {
			e.LateUpdate()
		}
	}
}

// startPending starts every live entity spawned since the last call. Entities spawned by a Start
// hook are left for the next call.
func (w *World) startPending() {
	if len(w.pending) == 0 {
		return
	}
	pending := w.pending
	w.pending = make([]*Entity, 0)

	for _, e := range pending {
		if e.started || !w.arena.contains(e.id) {
			continue
		}
		e.started = true
		e.Start()
	}
}

// snapshot copies the registry into the scratch buffer. Nested snapshots allocate.
func (w *World) snapshot() []*Entity {
	entities := append(w.scratch[:0], w.entities...)
	w.scratch = nil
	return entities
}

func (w *World) release(entities []*Entity) {
	clear(entities)
	w.scratch = entities[:0]
}

func (w *World) recoverFrame() {
	if r := recover(); r != nil {
		w.logger.Error().Uint64("frame", w.frame).Interface("panic", r).Msg("panic during frame")
		panic(r)
	}
}

func (w *World) incrCounter(name string) {
	if w.metrics != nil {
		w.metrics.IncrCounter([]string{"world", "entity", name}, 1)
	}
}
