package ecs

import (
	"github.com/armon/go-metrics"
	"github.com/nucleuslib/nucleus/pkg/nucleus/scheduler"
	"github.com/rs/zerolog"
)

// WorldOption configures a World.
type WorldOption func(*World)

// WithLogger sets the world's logger. The default discards everything.
func WithLogger(logger zerolog.Logger) WorldOption {
	return func(w *World) { w.logger = logger }
}

// WithMetrics makes the world report frame timings and entity counts to m.
func WithMetrics(m *metrics.Metrics) WorldOption {
	return func(w *World) { w.metrics = m }
}

// WithSchedulerOptions configures the world's scheduler manager.
func WithSchedulerOptions(opts ...scheduler.ManagerOption) WorldOption {
	return func(w *World) { w.schedulerOpts = append(w.schedulerOpts, opts...) }
}
