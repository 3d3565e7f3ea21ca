package main

import (
	"github.com/nucleuslib/nucleus/pkg/nucleus/ecs"
	"github.com/nucleuslib/nucleus/pkg/nucleus/scheduler"
)

// progress is published every few frames by the demo's reporting scheduler.
type progress struct {
	updates int
}

// counter counts Update calls.
type counter struct {
	ecs.BaseComponent
	updates int
}

func (c *counter) Start()  {}
func (c *counter) Update() { c.updates++ }

// spin moves its entity's rotation around a circle in the late phase.
type spin struct {
	ecs.BaseComponent
	step  float64
	angle float64
}

func (s *spin) EarlyUpdate() {}

func (s *spin) LateUpdate() {
	s.angle += s.step
	if s.angle >= 360 {
		s.angle -= 360
	}
}

// counterDemo spawns a counting entity with a spinning child and reports progress through the
// world's events.
type counterDemo struct {
	every   int
	counter *counter
	reports int
}

func newCounterDemo(every int) *counterDemo {
	return &counterDemo{every: every}
}

func (d *counterDemo) Name() string {
	return "counter-demo"
}

func (d *counterDemo) Build(w *ecs.World) error {
	d.counter = &counter{}
	root := w.SpawnEntityWithComponents(d.counter)
	root.SetName("counter")

	child := w.SpawnEntityWithComponents(&spin{step: 15})
	child.SetName("spinner")
	root.AddChild(child)

	if d.every <= 0 {
		return nil
	}

	logger := w.Logger()
	ecs.Subscribe(w, func(p progress) {
		d.reports++
		logger.Info().Int("updates", p.updates).Msg("progress")
	})
	_, err := w.Schedule(float64(d.every), scheduler.RepeatForever(), func() {
		w.Publish(progress{updates: d.counter.updates})
	})
	return err
}

func (d *counterDemo) Updates() int {
	if d.counter == nil {
		return 0
	}
	return d.counter.updates
}

func (d *counterDemo) Reports() int {
	return d.reports
}
