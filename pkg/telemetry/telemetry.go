// Package telemetry builds the logger and the in-memory metrics registry shared by a host and its
// worlds.
package telemetry

import (
	"sort"

	"github.com/armon/go-metrics"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type Telemetry struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Sink    *metrics.InmemSink

	serviceName string
}

// New loads the telemetry config from the environment, merges opts over it and builds the logger
// and metrics registry.
func New(opts Options) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	m, sink, err := newMetrics(options)
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to setup telemetry")
	}

	return Telemetry{
		Logger:      newLogger(options),
		Metrics:     m,
		Sink:        sink,
		serviceName: options.ServiceName,
	}, nil
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

// LogMetrics writes the most recent metrics interval to the logger at info level.
func (t *Telemetry) LogMetrics() {
	data := t.Sink.Data()
	if len(data) == 0 {
		return
	}
	cur := data[len(data)-1]

	cur.RLock()
	defer cur.RUnlock()

	logger := t.GetLogger("metrics")
	for _, name := range sortedKeys(cur.Counters) {
		c := cur.Counters[name]
		logger.Info().Str("metric", name).Int("count", c.Count).Float64("sum", c.Sum).Msg("counter")
	}
	for _, name := range sortedKeys(cur.Gauges) {
		logger.Info().Str("metric", name).Float32("value", cur.Gauges[name].Value).Msg("gauge")
	}
	for _, name := range sortedKeys(cur.Samples) {
		s := cur.Samples[name]
		logger.Info().
			Str("metric", name).
			Int("count", s.Count).
			Float64("mean_ms", s.AggregateSample.Mean()).
			Float64("max_ms", s.Max).
			Msg("timer")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
