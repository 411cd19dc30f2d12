package refqueue

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
)

type queueConfig struct {
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	timeout    time.Duration
	retryDelay time.Duration
}

// QueueOption configures a Queue.
type QueueOption func(*queueConfig)

// WithLogger sets the logger.
// Default: slog.Default()
func WithLogger(l *slog.Logger) QueueOption {
	return func(c *queueConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics
func WithMetrics(m observability.MetricsRecorder) QueueOption {
	return func(c *queueConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing sets the span manager. Each operation gets one span covering
// all of its attempts.
// Default: observability.NoopSpanManager
func WithTracing(s observability.SpanManager) QueueOption {
	return func(c *queueConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithDefaultTimeout sets the per-attempt timeout for operations that do
// not choose one. Zero disables it.
// Default: 0
func WithDefaultTimeout(d time.Duration) QueueOption {
	return func(c *queueConfig) {
		c.timeout = d
	}
}

// WithDefaultRetryDelay sets the delay between retries for operations that
// do not choose one.
// Default: 100ms
func WithDefaultRetryDelay(d time.Duration) QueueOption {
	return func(c *queueConfig) {
		c.retryDelay = d
	}
}

type opConfig struct {
	id         string
	priority   int
	retries    int
	retryDelay time.Duration
	timeout    time.Duration

	hasDelay   bool
	hasTimeout bool
}

// OperationOption configures one operation.
type OperationOption func(*opConfig)

// WithPriority sets the operation priority. Higher starts first among
// waiting operations; a running operation is never preempted.
// Default: 0
func WithPriority(p int) OperationOption {
	return func(c *opConfig) {
		c.priority = p
	}
}

// WithRetry allows n retries after the first failed attempt.
// Default: 0
func WithRetry(n int) OperationOption {
	return func(c *opConfig) {
		c.retries = n
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) OperationOption {
	return func(c *opConfig) {
		c.retryDelay = d
		c.hasDelay = true
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func WithTimeout(d time.Duration) OperationOption {
	return func(c *opConfig) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithOperationID sets the operation ID reported in results, logs and spans.
// Default: a random UUID
func WithOperationID(id string) OperationOption {
	return func(c *opConfig) {
		c.id = id
	}
}
