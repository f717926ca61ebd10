package g3d

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures an Engine during creation.
// Use functional options to customize Engine behavior.
//
// Example:
//
//	// Defaults
//	e, err := g3d.New()
//
//	// Config file plus metrics
//	cfg, err := g3d.LoadConfig("g3d.yaml")
//	e, err := g3d.New(g3d.WithConfig(cfg), g3d.WithMetricsRegisterer(reg))
type Option func(*engineOptions)

// engineOptions holds optional configuration for Engine creation.
type engineOptions struct {
	config     Config
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// defaultOptions returns the default engine options.
func defaultOptions() engineOptions {
	return engineOptions{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *engineOptions) {
		o.config = cfg
	}
}

// WithLogger installs l as the package logger when the engine is created.
// It is equivalent to calling SetLogger(l).
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithThreadCheck enables or disables the render-thread guard. When
// enabled, the OS thread that calls Init becomes the render thread and the
// caller must keep its goroutine locked to it with runtime.LockOSThread.
func WithThreadCheck(enabled bool) Option {
	return func(o *engineOptions) {
		o.config.ThreadCheck = enabled
	}
}

// WithDecodeWorkers caps concurrent texture decodes.
func WithDecodeWorkers(n int) Option {
	return func(o *engineOptions) {
		o.config.DecodeWorkers = n
	}
}

// WithMetricsRegisterer registers the engine's Prometheus collector with
// reg during Init. It is unregistered on Dispose.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) {
		o.registerer = reg
	}
}
