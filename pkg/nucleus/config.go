package nucleus

import (
	"io"
	"math"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/nucleuslib/nucleus/pkg/nucleus/ecs"
	"github.com/rotisserie/eris"
)

// hostConfig holds the configuration of a Host.
// Configuration can be set via environment variables with the specified defaults.
type hostConfig struct {
	// Name used for logger components and metric keys.
	ServiceName string `env:"NUCLEUS_SERVICE_NAME" envDefault:"nucleus"`

	// Frames per second. Zero runs frames back to back with no pacing.
	TickRate float64 `env:"NUCLEUS_TICK_RATE" envDefault:"0"`

	// Stop the world after this many frames. Zero runs until stopped.
	MaxFrames uint64 `env:"NUCLEUS_MAX_FRAMES" envDefault:"0"`
}

// loadHostConfig loads the host configuration from environment variables.
func loadHostConfig() (hostConfig, error) {
	cfg := hostConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse host config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *hostConfig) validate() error {
	if cfg.ServiceName == "" {
		return eris.New("service name cannot be empty")
	}
	if err := validateTickRate(cfg.TickRate); err != nil {
		return err
	}
	return nil
}

// applyToOptions applies the configuration values to the given HostOptions.
func (cfg *hostConfig) applyToOptions(opt *HostOptions) {
	opt.ServiceName = cfg.ServiceName
	opt.TickRate = cfg.TickRate
	opt.MaxFrames = cfg.MaxFrames
}

type HostOptions struct {
	ServiceName string       // Name used for logger components and metric keys
	TickRate    float64      // Frames per second, zero for unpaced
	MaxFrames   uint64       // Frames to run before stopping, zero for unbounded
	Plugins     []ecs.Plugin // Plugins registered with the world, in order
	LogOutput   io.Writer    // Log destination, stdout if nil
}

// newDefaultHostOptions creates HostOptions with default values.
func newDefaultHostOptions() HostOptions {
	// Set these to invalid values to force users to pass in the correct options.
	return HostOptions{
		ServiceName: "",
		TickRate:    -1,
		MaxFrames:   0,
		Plugins:     nil,
		LogOutput:   nil,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *HostOptions) apply(newOpt HostOptions) {
	if newOpt.ServiceName != "" {
		opt.ServiceName = newOpt.ServiceName
	}
	if newOpt.TickRate != 0.0 {
		opt.TickRate = newOpt.TickRate
	}
	if newOpt.MaxFrames != 0 {
		opt.MaxFrames = newOpt.MaxFrames
	}
	if newOpt.Plugins != nil {
		opt.Plugins = append(opt.Plugins, newOpt.Plugins...)
	}
	if newOpt.LogOutput != nil {
		opt.LogOutput = newOpt.LogOutput
	}
}

// validate checks that all required options are set and valid.
func (opt *HostOptions) validate() error {
	if opt.ServiceName == "" {
		return eris.New("service name cannot be empty")
	}
	if err := validateTickRate(opt.TickRate); err != nil {
		return err
	}
	for i, p := range opt.Plugins {
		if p == nil {
			return eris.Errorf("plugin %d is nil", i)
		}
	}
	return nil
}

func validateTickRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return eris.Errorf("tick rate must be a finite non-negative number, got %v", rate)
	}
	if rate > 0 && tickInterval(rate) <= 0 {
		return eris.Errorf("tick rate %v is too high, the tick interval rounds to zero", rate)
	}
	return nil
}

// tickInterval returns the time between frames at rate frames per second.
func tickInterval(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate)
}
