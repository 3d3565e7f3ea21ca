package telemetry

import (
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type Config struct {
	// Log level configuration ("debug", "info", "warn", "error").
	LogLevel string `env:"NUCLEUS_LOG_LEVEL" envDefault:"info"`

	// Log format configuration ("json", "pretty").
	LogFormat string `env:"NUCLEUS_LOG_FORMAT" envDefault:"json"`

	// MetricsInterval is the aggregation interval of the in-memory metrics sink.
	MetricsInterval time.Duration `env:"NUCLEUS_METRICS_INTERVAL" envDefault:"10s"`

	// MetricsRetain is how long aggregated intervals are kept.
	MetricsRetain time.Duration `env:"NUCLEUS_METRICS_RETAIN" envDefault:"1m"`
}

// loadConfig loads the configuration from environment variables.
func loadConfig() (Config, error) {
	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse telemetry config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate telemetry config")
	}

	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *Config) validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		return eris.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", cfg.LogLevel)
	}
	if ParseLogFormat(cfg.LogFormat) == LogFormatUndefined {
		return eris.Errorf("invalid log format: %s (must be 'json' or 'pretty')", cfg.LogFormat)
	}
	if cfg.MetricsInterval <= 0 {
		return eris.New("metrics interval must be positive")
	}
	if cfg.MetricsRetain < cfg.MetricsInterval {
		return eris.New("metrics retention must be at least one interval")
	}
	return nil
}

func (cfg *Config) applyToOptions(opt *Options) {
	opt.LogLevel = cfg.LogLevel
	opt.LogFormat = ParseLogFormat(cfg.LogFormat)
	opt.MetricsInterval = cfg.MetricsInterval
	opt.MetricsRetain = cfg.MetricsRetain
}

type Options struct {
	ServiceName     string        // Name of the service, prefixes metric keys and logger components
	LogLevel        string        // Minimum log level
	LogFormat       LogFormat     // Log output format
	MetricsInterval time.Duration // Aggregation interval of the in-memory sink
	MetricsRetain   time.Duration // Retention of the in-memory sink
	Output          io.Writer     // Log destination, stdout if nil
}

func newDefaultOptions() Options {
	// Set these to invalid values to force users to pass in the correct options.
	return Options{
		ServiceName: "",
		LogLevel:    "",
		LogFormat:   LogFormatUndefined,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *Options) apply(newOpt Options) {
	if newOpt.ServiceName != "" {
		opt.ServiceName = newOpt.ServiceName
	}
	if newOpt.LogLevel != "" {
		opt.LogLevel = newOpt.LogLevel
	}
	if newOpt.LogFormat != LogFormatUndefined {
		opt.LogFormat = newOpt.LogFormat
	}
	if newOpt.MetricsInterval != 0 {
		opt.MetricsInterval = newOpt.MetricsInterval
	}
	if newOpt.MetricsRetain != 0 {
		opt.MetricsRetain = newOpt.MetricsRetain
	}
	if newOpt.Output != nil {
		opt.Output = newOpt.Output
	}
}

// validate checks that all required options are set and valid.
func (opt *Options) validate() error {
	if opt.ServiceName == "" {
		return eris.New("service name cannot be empty")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(opt.LogLevel)); err != nil {
		return eris.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", opt.LogLevel)
	}
	if opt.LogFormat == LogFormatUndefined {
		return eris.New("log format must be specified")
	}
	if opt.MetricsInterval <= 0 {
		return eris.New("metrics interval must be positive")
	}
	if opt.MetricsRetain < opt.MetricsInterval {
		return eris.New("metrics retention must be at least one interval")
	}
	return nil
}

// LogFormat represents the log output format.
type LogFormat uint8

const (
	LogFormatUndefined LogFormat = iota // Used as the zero value
	LogFormatJSON                       // Outputs structured JSON logs
	LogFormatPretty                     // Outputs human-readable console logs
)

const (
	jsonFormatString      = "json"
	prettyFormatString    = "pretty"
	undefinedFormatString = "undefined"
)

func (f LogFormat) String() string {
	switch f {
	case LogFormatUndefined:
		return undefinedFormatString
	case LogFormatJSON:
		return jsonFormatString
	case LogFormatPretty:
		return prettyFormatString
	default:
		return undefinedFormatString
	}
}

// ParseLogFormat converts a string to LogFormat enum.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case jsonFormatString:
		return LogFormatJSON
	case prettyFormatString:
		return LogFormatPretty
	default:
		return LogFormatUndefined
	}
}
