package ecs

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/armon/go-metrics"
	"github.com/nucleuslib/nucleus/pkg/nucleus/scheduler"
	"github.com/nucleuslib/nucleus/pkg/nucleus/stage"
	"github.com/nucleuslib/nucleus/pkg/testutils"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------------------------------------------------------------------------------------
// Registry and queries
// -------------------------------------------------------------------------------------------------

func TestWorld_SpawnAndRemove(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	a := w.SpawnEntity()
	b := w.SpawnEntityWithComponents(&Health{HP: 3}, &Position{X: 1})
	assert.Equal(t, 2, w.Len())
	assert.Same(t, w, a.World())
	assert.Equal(t, []*Entity{a, b}, w.Entities())

	got, ok := w.GetEntity(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	assert.True(t, w.RemoveEntity(a))
	assert.False(t, w.RemoveEntity(a))
	assert.False(t, w.RemoveEntity(nil))
	assert.False(t, a.IsAlive())
	_, ok = w.GetEntity(a.ID())
	assert.False(t, ok)
	assert.Equal(t, []*Entity{b}, w.Entities())

	// Removal does not detach components.
	h, err := GetComponent[*Health](b)
	require.NoError(t, err)
	w.RemoveEntity(b)
	assert.Same(t, b, h.Entity())
}

func TestWorld_RemoveEntityFromAnotherWorld(t *testing.T) {
	t.Parallel()

	w1, w2 := NewWorld(), NewWorld()
	e := w1.SpawnEntity()
	assert.False(t, w2.RemoveEntity(e))
	assert.True(t, e.IsAlive())
}

func TestWorld_Queries(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e1 := w.SpawnEntityWithComponents(&Position{})
	h2a, h2b := &Health{HP: 2}, &Health{HP: 22}
	e2 := w.SpawnEntityWithComponents(h2a, h2b)
	e3 := w.SpawnEntity()
	h4 := &Health{HP: 4}
	e4 := w.SpawnEntityWithComponents(&Position{}, h4)
	e3.SetName("three")

	got, ok := w.GetEntityByPredicate(func(e *Entity) bool { return e.Name() == "three" })
	require.True(t, ok)
	assert.Same(t, e3, got)
	_, ok = w.GetEntityByPredicate(func(*Entity) bool { return false })
	assert.False(t, ok)

	got, ok = GetEntityByComponent[*Health](w)
	require.True(t, ok)
	assert.Same(t, e2, got)

	assert.Equal(t, []*Entity{e2, e4}, GetEntitiesByComponent[*Health](w))
	assert.Equal(t, []*Entity{e1, e4}, GetEntitiesByComponent[*Position](w))
	assert.Equal(t, []*Health{h2a, h4}, GetComponents[*Health](w), "first match per entity")

	single, err := GetSingletonComponent[*Health](w)
	require.NoError(t, err)
	assert.Same(t, h2a, single)

	_, ok = GetEntityByComponent[*counter](w)
	assert.False(t, ok)
	assert.Empty(t, GetEntitiesByComponent[*counter](w))
	assert.Empty(t, GetComponents[*counter](w))
	_, err = GetSingletonComponent[*counter](w)
	assert.True(t, eris.Is(err, ErrComponentNotFound))
}

// -------------------------------------------------------------------------------------------------
// Frame dispatch
// -------------------------------------------------------------------------------------------------

func TestWorld_FramePhaseOrder(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	w := NewWorld()
	w.SpawnEntityWithComponents(&fullComp{name: "a", tr: tr})
	w.SpawnEntityWithComponents(&advancedComp{name: "b", tr: tr}, &basicComp{name: "c", tr: tr})

	require.NoError(t, w.Start())
	assert.Equal(t, []string{"a.start", "c.start"}, tr.calls)

	tr.reset()
	w.Frame()
	assert.Equal(t, []string{
		"a.early", "b.early",
		"a.update", "c.update",
		"a.late", "b.late",
	}, tr.calls)
	assert.Equal(t, uint64(1), w.FrameCount())
}

func TestWorld_StandalonePhases(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	w := NewWorld()
	w.SpawnEntityWithComponents(&fullComp{name: "a", tr: tr})

	fired := 0
	_, err := w.Schedule(1, scheduler.OnlyOnce(), func() { fired++ })
	require.NoError(t, err)

	w.EarlyUpdate()
	w.LateUpdate()
	assert.Equal(t, 0, fired, "only Update advances the schedulers")

	w.Update()
	assert.Equal(t, []string{"a.early", "a.late", "a.update"}, tr.calls)
	assert.Equal(t, 1, fired)
	assert.Equal(t, uint64(0), w.FrameCount(), "standalone phases do not count frames")
}

func TestWorld_MutationDuringFrame(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	w := NewWorld()

	var victim *Entity
	spawner := &basicComp{name: "spawner", tr: tr}
	spawner.onUpdate = func() {
		if victim.IsAlive() {
			w.RemoveEntity(victim)
			w.SpawnEntityWithComponents(&fullComp{name: "late", tr: tr})
		}
	}
	w.SpawnEntityWithComponents(spawner)
	victim = w.SpawnEntityWithComponents(&fullComp{name: "victim", tr: tr})

	require.NoError(t, w.Start())
	tr.reset()

	w.Frame()
	assert.Equal(t, []string{
		"victim.early",
		"spawner.update",
	}, tr.calls, "removed entity skipped, spawned entity gets nothing this frame")

	tr.reset()
	w.Frame()
	assert.Equal(t, []string{
		"late.start",
		"late.early",
		"spawner.update", "late.update",
		"late.late",
	}, tr.calls)
}

func TestWorld_SpawnFromStartHook(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	w := NewWorld()
	require.NoError(t, w.Start())

	parent := &basicComp{name: "parent", tr: tr}
	parent.onStart = func() {
		w.SpawnEntityWithComponents(&fullComp{name: "kid", tr: tr})
	}
	w.SpawnEntityWithComponents(parent)

	w.Frame()
	assert.Equal(t, []string{
		"parent.start",
		"parent.update",
	}, tr.calls, "entity spawned by a start hook gets nothing this frame")

	tr.reset()
	w.Frame()
	assert.Equal(t, []string{
		"kid.start",
		"kid.early",
		"parent.update", "kid.update",
		"kid.late",
	}, tr.calls)
}

func TestWorld_RemoveEntityBeforeStart(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	c := &counter{}
	e := w.SpawnEntityWithComponents(c)
	kept := w.SpawnEntity()

	require.True(t, w.RemoveEntity(e))
	assert.Equal(t, []*Entity{kept}, w.pending, "removed entity leaves the start queue")

	require.NoError(t, w.Start())
	w.Frame()
	assert.Empty(t, w.pending)
	assert.Equal(t, 0, c.started)
	assert.Equal(t, 0, c.n)
}

func TestWorld_EntitiesStartOnce(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	c := &counter{}
	w.SpawnEntityWithComponents(c)

	require.NoError(t, w.Start())
	w.Frame()
	w.Stop()
	require.NoError(t, w.Start())
	w.Frame()

	assert.Equal(t, 1, c.started)
	assert.Equal(t, 2, c.n)
}

func TestWorld_FramePanicIsLoggedAndRepanicked(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWorld(WithLogger(zerolog.New(&buf)))

	tr := &trace{}
	boom := &basicComp{name: "boom", tr: tr}
	boom.onUpdate = func() { panic("boom") }
	w.SpawnEntityWithComponents(boom)
	require.NoError(t, w.Start())

	assert.PanicsWithValue(t, "boom", w.Frame)
	assert.Contains(t, buf.String(), "panic during frame")
	assert.Contains(t, buf.String(), `"frame":0`)
}

// -------------------------------------------------------------------------------------------------
// Start, plugins and run loop
// -------------------------------------------------------------------------------------------------

func TestWorld_PluginsBuildInOrderBeforeEntityStart(t *testing.T) {
	t.Parallel()

	tr := &trace{}
	w := NewWorld()
	w.SpawnEntityWithComponents(&basicComp{name: "pre", tr: tr})

	for _, name := range []string{"p1", "p2"} {
		w.AddPlugin(PluginFunc(func(w *World) error {
			tr.add(name + ".build")
			assert.Equal(t, stage.Starting, w.Stage())
			w.SpawnEntityWithComponents(&basicComp{name: name + "-entity", tr: tr})
			return nil
		}))
	}

	require.NoError(t, w.Start())
	assert.Equal(t, stage.Running, w.Stage())
	assert.True(t, w.IsRunning())
	assert.Equal(t, []string{
		"p1.build", "p2.build",
		"pre.start", "p1-entity.start", "p2-entity.start",
	}, tr.calls)

	err := w.Start()
	assert.True(t, eris.Is(err, ErrWorldRunning))

	// Plugins are built once per world.
	w.Stop()
	tr.reset()
	require.NoError(t, w.Start())
	assert.Empty(t, tr.calls)
}

func TestWorld_PluginBuildError(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	c := &counter{}
	w.SpawnEntityWithComponents(c)

	errNoAssets := eris.New("no assets")
	builds := 0
	w.AddPlugin(PluginFunc(func(*World) error {
		builds++
		if builds == 1 {
			return errNoAssets
		}
		return nil
	}))

	err := w.Start()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPluginBuild)
	require.ErrorIs(t, err, errNoAssets, "the plugin's own error stays in the chain")

	var pluginErr *PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.Equal(t, "ecs.PluginFunc", pluginErr.Plugin)
	assert.Equal(t, "plugin ecs.PluginFunc: no assets", err.Error())
	assert.Equal(t, stage.Stopped, w.Stage())
	assert.Equal(t, 0, c.started, "entities are not started when a plugin fails")

	// A failed plugin is retried on the next start.
	require.NoError(t, w.Start())
	assert.Equal(t, 2, builds)
	assert.Equal(t, 1, c.started)
}

func TestWorld_StopDuringStart(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	c := &counter{}
	w.SpawnEntityWithComponents(c)
	w.AddPlugin(PluginFunc(func(w *World) error {
		w.Stop()
		return nil
	}))

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, stage.Stopped, w.Stage())
	assert.Equal(t, 0, c.started)
	assert.Equal(t, uint64(0), w.FrameCount())
}

func TestWorld_RunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWorld()
	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, w.IsRunning())
	assert.Equal(t, uint64(0), w.FrameCount())
}

func TestWorld_StopFromAnotherGoroutine(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	w.SpawnEntityWithComponents(&counter{})

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool { return w.Stage() == stage.Running }, time.Second, time.Millisecond)
	w.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not observe Stop")
	}
}

// An end-to-end run: a plugin spawns a counting entity and a scheduler stops the world after a
// fixed number of frames.
func TestWorld_RunCounterForNFrames(t *testing.T) {
	t.Parallel()

	const frames = 25

	var c *counter
	w := NewWorld()
	w.AddPlugin(PluginFunc(func(w *World) error {
		c = &counter{}
		w.SpawnEntityWithComponents(c)
		_, err := w.Schedule(frames, scheduler.OnlyOnce(), w.Stop)
		return err
	}))

	require.NoError(t, w.Run(context.Background()))
	require.NotNil(t, c)
	assert.Equal(t, frames, c.n)
	assert.Equal(t, uint64(frames), w.FrameCount())
	assert.Equal(t, stage.Stopped, w.Stage())
}

func TestWorld_Events(t *testing.T) {
	t.Parallel()

	type hit struct{ damage int }

	w := NewWorld()
	total := 0
	Subscribe(w, func(h hit) { total += h.damage })

	w.Publish(hit{damage: 2})
	w.Publish(hit{damage: 3})
	w.Publish("not a hit")
	assert.Equal(t, 5, total)
}

func TestWorld_Schedulers(t *testing.T) {
	t.Parallel()

	w := NewWorld(WithSchedulerOptions(scheduler.WithElapsedDelta()))
	fired := 0
	s, err := scheduler.New(0.5, scheduler.RepeatForever(), func() { fired++ })
	require.NoError(t, err)

	w.AddScheduler(s)
	assert.Equal(t, 1, w.Schedulers().Len())
	w.Frame()
	assert.Equal(t, 1, fired, "the world hands its nominal delta of 1 to the schedulers")

	assert.True(t, w.RemoveScheduler(s))
	w.Frame()
	assert.Equal(t, 1, fired)

	_, err = w.Schedule(-1, scheduler.OnlyOnce(), func() {})
	require.Error(t, err)
}

func TestWorld_Metrics(t *testing.T) {
	t.Parallel()

	conf := metrics.DefaultConfig("test")
	conf.EnableHostname = false
	conf.EnableHostnameLabel = false
	conf.EnableRuntimeMetrics = false
	sink := metrics.NewInmemSink(time.Hour, time.Hour)
	m, err := metrics.New(conf, sink)
	require.NoError(t, err)

	w := NewWorld(WithMetrics(m))
	e := w.SpawnEntity()
	w.SpawnEntity()
	w.RemoveEntity(e)
	w.Frame()
	w.Frame()

	data := sink.Data()
	require.NotEmpty(t, data)
	cur := data[len(data)-1]

	require.Contains(t, cur.Counters, "test.world.entity.spawned")
	assert.Equal(t, 2, cur.Counters["test.world.entity.spawned"].Count)
	require.Contains(t, cur.Counters, "test.world.entity.removed")
	assert.Equal(t, 1, cur.Counters["test.world.entity.removed"].Count)
	require.Contains(t, cur.Gauges, "test.world.entities")
	assert.InDelta(t, 1.0, cur.Gauges["test.world.entities"].Value, 0)
	require.Contains(t, cur.Samples, "test.world.frame")
	assert.Equal(t, 2, cur.Samples["test.world.frame"].Count)
}

// -------------------------------------------------------------------------------------------------
// Model-based fuzzing the entity registry
// -------------------------------------------------------------------------------------------------
// Random spawn/remove/lookup sequences compared against a slice of live entities and the set of
// handles that were removed.
// -------------------------------------------------------------------------------------------------

type worldOp uint8

const (
	w_spawn     worldOp = 40
	w_remove    worldOp = 25
	w_getLive   worldOp = 20
	w_getStale  worldOp = 10
	w_addHealth worldOp = 15
	w_rename    worldOp = 12
)

var worldOps = []worldOp{w_spawn, w_remove, w_getLive, w_getStale, w_addHealth, w_rename}

func TestWorld_ModelFuzz(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	const opsMax = 1 << 13

	impl := NewWorld()
	model := make([]*Entity, 0)
	stale := make([]EntityID, 0)
	withHealth := make(map[*Entity]bool)

	for range opsMax {
		switch testutils.RandWeightedOp(prng, worldOps) {
		case w_spawn:
			e := impl.SpawnEntity()
			model = append(model, e)

		case w_remove:
			if len(model) == 0 {
				continue
			}
			i := prng.IntN(len(model))
			e := model[i]
			require.True(t, impl.RemoveEntity(e))
			model = append(model[:i], model[i+1:]...)
			stale = append(stale, e.ID())
			delete(withHealth, e)

		case w_getLive:
			if len(model) == 0 {
				continue
			}
			e := model[prng.IntN(len(model))]
			got, ok := impl.GetEntity(e.ID())
			require.True(t, ok)
			require.Same(t, e, got)

		case w_getStale:
			if len(stale) == 0 {
				continue
			}
			_, ok := impl.GetEntity(stale[prng.IntN(len(stale))])
			require.False(t, ok, "removed handle must never resolve")

		case w_addHealth:
			if len(model) == 0 {
				continue
			}
			e := model[prng.IntN(len(model))]
			e.AddComponent(&Health{})
			withHealth[e] = true

		case w_rename:
			if len(model) == 0 {
				continue
			}
			e := model[prng.IntN(len(model))]
			name := testutils.RandString(prng, 2)
			e.SetName(name)

			// Property: predicate lookup returns the first entity in registry order with the name.
			var want *Entity
			for _, cur := range model {
				if cur.Name() == name {
					want = cur
					break
				}
			}
			got, ok := impl.GetEntityByPredicate(func(cur *Entity) bool { return cur.Name() == name })
			require.True(t, ok)
			require.Same(t, want, got)

		default:
			panic("unreachable")
		}

		// Property: registry order and contents match the model.
		require.Equal(t, model, impl.Entities())
		require.Equal(t, len(model), impl.arena.len())
	}

	// Property: component queries see exactly the entities holding the component, in order.
	want := make([]*Entity, 0)
	for _, e := range model {
		if withHealth[e] {
			want = append(want, e)
		}
	}
	assert.Equal(t, want, GetEntitiesByComponent[*Health](impl))
}
