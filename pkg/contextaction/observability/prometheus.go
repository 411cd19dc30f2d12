package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig configures the Prometheus metrics recorder.
type PrometheusConfig struct {
	// Namespace is the metrics namespace (default: "contextaction").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for latencies in seconds.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// PrometheusOption configures the Prometheus metrics recorder.
type PrometheusOption func(*PrometheusConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Registry = registry
	}
}

func defaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace: "contextaction",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// PrometheusRecorder implements MetricsRecorder with Prometheus collectors.
type PrometheusRecorder struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	handlerRuns      *prometheus.CounterVec
	handlerErrors    *prometheus.CounterVec
	handlerDuration  *prometheus.HistogramVec
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	emits            *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates and registers the Prometheus collectors.
// Collectors already registered under the same names are reused, so two
// recorders sharing a registry report into the same series.
func NewPrometheusRecorder(opts ...PrometheusOption) (*PrometheusRecorder, error) {
	cfg := defaultPrometheusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	counter := func(name, help string, labels ...string) (*prometheus.CounterVec, error) {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		}, labels)
		return registerCollector(cfg.Registry, c)
	}
	histogram := func(name, help string, labels ...string) (*prometheus.HistogramVec, error) {
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, labels)
		return registerCollector(cfg.Registry, h)
	}

	r := &PrometheusRecorder{}
	var err error
	if r.dispatches, err = counter("dispatches_total", "Number of action dispatches.", "action", "mode", "status"); err != nil {
		return nil, err
	}
	if r.dispatchDuration, err = histogram("dispatch_duration_seconds", "Dispatch latency in seconds.", "action", "mode"); err != nil {
		return nil, err
	}
	if r.handlerRuns, err = counter("handler_executions_total", "Number of handler invocations.", "action"); err != nil {
		return nil, err
	}
	if r.handlerErrors, err = counter("handler_errors_total", "Number of handler failures.", "action"); err != nil {
		return nil, err
	}
	if r.handlerDuration, err = histogram("handler_duration_seconds", "Handler latency in seconds.", "action"); err != nil {
		return nil, err
	}
	if r.operations, err = counter("ref_operations_total", "Number of finished ref operations.", "ref", "status"); err != nil {
		return nil, err
	}
	if r.operationLatency, err = histogram("ref_operation_duration_seconds", "Ref operation latency in seconds.", "ref"); err != nil {
		return nil, err
	}
	if r.emits, err = counter("events_emitted_total", "Number of emitted events.", "event"); err != nil {
		return nil, err
	}
	if r.notifications, err = counter("store_notifications_total", "Number of store notification cycles.", "store"); err != nil {
		return nil, err
	}
	return r, nil
}

// registerCollector registers c, returning the existing collector when one
// with the same descriptor is already registered.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordDispatch records a dispatch.
func (r *PrometheusRecorder) RecordDispatch(_ context.Context, action, mode, status string, duration time.Duration) {
	r.dispatches.WithLabelValues(action, mode, status).Inc()
	r.dispatchDuration.WithLabelValues(action, mode).Observe(duration.Seconds())
}

// RecordHandler records a handler invocation.
func (r *PrometheusRecorder) RecordHandler(_ context.Context, action string, duration time.Duration, err error) {
	r.handlerRuns.WithLabelValues(action).Inc()
	r.handlerDuration.WithLabelValues(action).Observe(duration.Seconds())
	if err != nil {
		r.handlerErrors.WithLabelValues(action).Inc()
	}
}

// RecordOperation records a ref operation.
func (r *PrometheusRecorder) RecordOperation(_ context.Context, ref, status string, _ int, duration time.Duration) {
	r.operations.WithLabelValues(ref, status).Inc()
	r.operationLatency.WithLabelValues(ref).Observe(duration.Seconds())
}

// RecordEmit records an event emission.
func (r *PrometheusRecorder) RecordEmit(_ context.Context, event string, _ int) {
	r.emits.WithLabelValues(event).Inc()
}

// RecordNotification records a store notification.
func (r *PrometheusRecorder) RecordNotification(_ context.Context, store string, _ int) {
	r.notifications.WithLabelValues(store).Inc()
}
