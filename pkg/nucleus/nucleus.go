// Package nucleus embeds an ECS world in a process: it loads configuration, wires telemetry and
// drives frames either back to back or at a fixed tick rate.
package nucleus

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/nucleuslib/nucleus/pkg/nucleus/ecs"
	"github.com/nucleuslib/nucleus/pkg/nucleus/scene"
	"github.com/nucleuslib/nucleus/pkg/nucleus/scheduler"
	"github.com/nucleuslib/nucleus/pkg/telemetry"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Host owns a world, a scene manager for it and their telemetry.
type Host struct {
	world   *ecs.World
	scenes  *scene.Manager
	limiter *scheduler.Scheduler // Stops the world after MaxFrames, if set

	options HostOptions
	tel     telemetry.Telemetry
}

// NewHost creates a host from environment configuration overridden by opts.
func NewHost(opts HostOptions) (*Host, error) {
	// Load and validate options.
	cfg, err := loadHostConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load host config")
	}
	options := newDefaultHostOptions()
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid host options")
	}

	// Setup telemetry.
	tel, err := telemetry.New(telemetry.Options{
		ServiceName: options.ServiceName,
		Output:      options.LogOutput,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize telemetry")
	}

	world := ecs.NewWorld(
		ecs.WithLogger(tel.GetLogger("world")),
		ecs.WithMetrics(tel.Metrics),
	)
	for _, p := range options.Plugins {
		world.AddPlugin(p)
	}

	return &Host{
		world:   world,
		scenes:  scene.NewManager(scene.WithLogger(tel.GetLogger("scene"))),
		options: options,
		tel:     tel,
	}, nil
}

func (h *Host) World() *ecs.World {
	return h.world
}

// Scenes returns the host's scene manager. The host never runs its loop; callers choose between
// Run and the scene loop.
func (h *Host) Scenes() *scene.Manager {
	return h.scenes
}

func (h *Host) Telemetry() *telemetry.Telemetry {
	return &h.tel
}

// StartGame runs the world until it stops or the process receives SIGINT or SIGTERM.
func (h *Host) StartGame() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := h.tel.GetLogger("host")
	logger.Info().
		Float64("tick_rate", h.options.TickRate).
		Uint64("max_frames", h.options.MaxFrames).
		Msg("starting game")

	if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("failed running world")
	}

	h.tel.LogMetrics()
	logger.Info().Uint64("frames", h.world.FrameCount()).Msg("game stopped")
}

// Run starts the world and drives frames until the world stops or ctx is done. With a zero tick
// rate frames run back to back, otherwise one frame runs per tick.
func (h *Host) Run(ctx context.Context) error {
	if err := h.limitFrames(); err != nil {
		return err
	}

	if h.options.TickRate == 0 {
		return h.world.Run(ctx)
	}
	return h.runTicker(ctx)
}

// limitFrames schedules a stop after MaxFrames frames, counted from the first frame of this run.
func (h *Host) limitFrames() error {
	if h.options.MaxFrames == 0 {
		return nil
	}
	if h.limiter != nil {
		h.world.RemoveScheduler(h.limiter)
	}

	limiter, err := h.world.Schedule(float64(h.options.MaxFrames), scheduler.OnlyOnce(), h.world.Stop)
	if err != nil {
		return eris.Wrap(err, "failed to schedule frame limit")
	}
	h.limiter = limiter
	return nil
}

// runTicker runs the frame loop and a watcher that stops the world when ctx is done. Whichever
// finishes first ends the other.
func (h *Host) runTicker(ctx context.Context) error {
	if err := h.world.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return h.frameLoop(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		h.world.Stop()
		return nil
	})
	return g.Wait()
}

func (h *Host) frameLoop(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval(h.options.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !h.world.IsRunning() {
				return nil
			}
			h.world.Frame()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
