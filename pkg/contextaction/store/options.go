package store

import (
	"log/slog"

	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
)

type config struct {
	options   *compare.Options
	engine    *compare.Engine
	mode      NotificationMode
	scheduler Scheduler
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
}

func defaultConfig() config {
	return config{
		engine:    compare.NewEngine(compare.Options{}),
		mode:      Immediate,
		scheduler: GoroutineScheduler{},
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
	}
}

// Option configures a Store.
type Option func(*config)

// WithComparison sets per-store comparison options.
func WithComparison(opts compare.Options) Option {
	return func(c *config) {
		c.options = &opts
	}
}

// WithEngine sets the engine supplying default comparison options.
// Default: a private engine using Reference comparison.
func WithEngine(e *compare.Engine) Option {
	return func(c *config) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithNotificationMode sets the initial delivery mode.
// Default: Immediate
func WithNotificationMode(mode NotificationMode) Option {
	return func(c *config) {
		c.mode = mode
	}
}

// WithScheduler sets the scheduler used in Batched mode.
// Default: GoroutineScheduler
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithLogger sets the logger for listener panics and ignored writes.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder for notifications.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}
