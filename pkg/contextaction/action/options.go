package action

import (
	"log/slog"

	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
)

type handlerConfig struct {
	id          string
	priority    int
	once        bool
	condition   func(payload any) bool
	nonBlocking bool
	haltOnError bool
}

// HandlerOption configures a handler registration.
type HandlerOption func(*handlerConfig)

// WithPriority sets the handler priority. Higher runs first; equal
// priorities run in registration order.
// Default: 0
func WithPriority(p int) HandlerOption {
	return func(c *handlerConfig) {
		c.priority = p
	}
}

// WithID sets the handler ID. IDs must be unique per action.
// Default: a random UUID
func WithID(id string) HandlerOption {
	return func(c *handlerConfig) {
		c.id = id
	}
}

// Once removes the handler after its first invocation.
// Dispatches skipped by a When condition do not count.
func Once() HandlerOption {
	return func(c *handlerConfig) {
		c.once = true
	}
}

// When runs the handler only if cond returns true for the payload it would receive.
func When(cond func(payload any) bool) HandlerOption {
	return func(c *handlerConfig) {
		c.condition = cond
	}
}

// NonBlocking lets a sequential pipeline move on as soon as the handler
// starts. Its return value is discarded; errors are only logged.
func NonBlocking() HandlerOption {
	return func(c *handlerConfig) {
		c.nonBlocking = true
	}
}

// HaltOnError stops the dispatch with status Errored if this handler fails.
func HaltOnError() HandlerOption {
	return func(c *handlerConfig) {
		c.haltOnError = true
	}
}

type registerConfig struct {
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	mode        Mode
	haltOnError bool
}

// RegisterOption configures a Register.
type RegisterOption func(*registerConfig)

// WithLogger sets the logger.
// Default: slog.Default()
func WithLogger(l *slog.Logger) RegisterOption {
	return func(c *registerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics
func WithMetrics(m observability.MetricsRecorder) RegisterOption {
	return func(c *registerConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing sets the span manager for dispatch and handler spans.
// Default: observability.NoopSpanManager
func WithTracing(s observability.SpanManager) RegisterOption {
	return func(c *registerConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithDefaultMode sets the mode used when a dispatch does not choose one.
// Default: Sequential
func WithDefaultMode(m Mode) RegisterOption {
	return func(c *registerConfig) {
		c.mode = m
	}
}

// WithDefaultHaltOnError makes every handler failure stop its dispatch.
// Default: false (failures are recorded and the pipeline continues)
func WithDefaultHaltOnError(halt bool) RegisterOption {
	return func(c *registerConfig) {
		c.haltOnError = halt
	}
}

type dispatchConfig struct {
	mode        Mode
	haltOnError bool
}

// DispatchOption configures one dispatch.
type DispatchOption func(*dispatchConfig)

// WithMode sets the execution mode for this dispatch.
func WithMode(m Mode) DispatchOption {
	return func(c *dispatchConfig) {
		c.mode = m
	}
}

// WithHaltOnError overrides the halt-on-error policy for this dispatch.
func WithHaltOnError(halt bool) DispatchOption {
	return func(c *dispatchConfig) {
		c.haltOnError = halt
	}
}
