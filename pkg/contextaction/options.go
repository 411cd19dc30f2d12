package contextaction

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/contextaction/pkg/contextaction/action"
	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	"github.com/randalmurphal/contextaction/pkg/contextaction/event"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/store"
)

type runtimeConfig struct {
	name             string
	logger           *slog.Logger
	metrics          observability.MetricsRecorder
	spans            observability.SpanManager
	comparison       compare.Options
	notificationMode store.NotificationMode
	scheduler        store.Scheduler
	maxHistory       int
	archive          event.Archive
	onEventError     func(evt event.Event, subscriptionID string, err error)
	actionMode       action.Mode
	haltOnError      bool
	refTimeout       time.Duration
	retryDelay       time.Duration
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		name:             "default",
		logger:           slog.Default(),
		metrics:          observability.NoopMetrics{},
		spans:            observability.NoopSpanManager{},
		comparison:       compare.Options{Strategy: compare.Reference},
		notificationMode: store.Immediate,
		maxHistory:       event.DefaultMaxHistorySize,
		actionMode:       action.Sequential,
		retryDelay:       100 * time.Millisecond,
	}
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

// WithName names the runtime's store registry.
// Default: "default"
func WithName(name string) Option {
	return func(c *runtimeConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the logger shared by every component.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *runtimeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder shared by every component.
// Default: observability.NoopMetrics
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *runtimeConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing sets the span manager for dispatches and ref operations.
// Default: observability.NoopSpanManager
func WithTracing(s observability.SpanManager) Option {
	return func(c *runtimeConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithComparison sets the process default comparison options.
// Default: reference equality
func WithComparison(opts compare.Options) Option {
	return func(c *runtimeConfig) {
		c.comparison = opts
	}
}

// WithNotificationMode sets the notification mode of stores created
// through NewStore.
// Default: store.Immediate
func WithNotificationMode(mode store.NotificationMode) Option {
	return func(c *runtimeConfig) {
		c.notificationMode = mode
	}
}

// WithScheduler sets the scheduler batched stores use to deliver
// notifications.
// Default: store.GoroutineScheduler
func WithScheduler(s store.Scheduler) Option {
	return func(c *runtimeConfig) {
		c.scheduler = s
	}
}

// WithMaxHistory bounds the event bus history.
// Default: 100
func WithMaxHistory(n int) Option {
	return func(c *runtimeConfig) {
		if n > 0 {
			c.maxHistory = n
		}
	}
}

// WithArchive persists every emitted event. The runtime closes the archive
// on Close.
func WithArchive(a event.Archive) Option {
	return func(c *runtimeConfig) {
		c.archive = a
	}
}

// WithEventErrorHandler is called when an event handler fails.
func WithEventErrorHandler(fn func(evt event.Event, subscriptionID string, err error)) Option {
	return func(c *runtimeConfig) {
		c.onEventError = fn
	}
}

// WithActionMode sets the default dispatch mode.
// Default: action.Sequential
func WithActionMode(m action.Mode) Option {
	return func(c *runtimeConfig) {
		c.actionMode = m
	}
}

// WithHaltOnError makes handler failures stop their dispatch.
// Default: false
func WithHaltOnError(halt bool) Option {
	return func(c *runtimeConfig) {
		c.haltOnError = halt
	}
}

// WithRefTimeout sets the default per-attempt timeout of ref operations.
// Default: 0 (none)
func WithRefTimeout(d time.Duration) Option {
	return func(c *runtimeConfig) {
		c.refTimeout = d
	}
}

// WithRetryDelay sets the default delay between ref operation retries.
// Default: 100ms
func WithRetryDelay(d time.Duration) Option {
	return func(c *runtimeConfig) {
		c.retryDelay = d
	}
}
