package config

import "time"

const (
	DefaultMetricsInterval      = 10 * time.Second
	DefaultSampleRatio          = 1.0
	DefaultShutdownTimeout      = 5 * time.Second
	DefaultRuntimeStatsInterval = time.Second

	// Readiness component names.
	TracingComponentName = "tracing"
	MetricsComponentName = "metrics"
)

// DefaultDurationBuckets (seconds) fit request handling and outbox round trips,
// which finish well under the 5s producer timeout.
var DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Config is the "observability" section. Without an otel-collector-endpoint
// the service runs in local mode with noop providers.
type Config struct {
	OtelCollectorEndpoint string        `mapstructure:"otel-collector-endpoint"`
	Tracing               TracingConfig `mapstructure:"tracing"`
	Metrics               MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample-ratio"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// DurationBuckets are the histogram boundaries of every "*.duration"
	// instrument, e.g. task.operation.duration.
	DurationBuckets []float64 `mapstructure:"duration-buckets"`
}
