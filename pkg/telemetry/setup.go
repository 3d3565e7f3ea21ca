package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/armon/go-metrics"
	"github.com/nucleuslib/nucleus/pkg/assert"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// newLogger creates a logger with the specified format.
func newLogger(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer
	switch opts.LogFormat {
	case LogFormatPretty:
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	case LogFormatJSON:
		writer = out
	case LogFormatUndefined:
		assert.That(false, "log format must be validated before building the logger")
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// newMetrics creates a metrics registry backed by an in-memory sink. Hostname tagging and runtime
// metrics are disabled: the former is noise for a local sink, the latter starts a goroutine per
// registry.
func newMetrics(opts Options) (*metrics.Metrics, *metrics.InmemSink, error) {
	sink := metrics.NewInmemSink(opts.MetricsInterval, opts.MetricsRetain)

	conf := metrics.DefaultConfig(opts.ServiceName)
	conf.EnableHostname = false
	conf.EnableHostnameLabel = false
	conf.EnableRuntimeMetrics = false

	m, err := metrics.New(conf, sink)
	if err != nil {
		return nil, nil, eris.Wrap(err, "failed to create metrics registry")
	}
	return m, sink, nil
}
