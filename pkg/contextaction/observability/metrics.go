package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records contextaction metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusRecorder() for
// Prometheus, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records a finished dispatch with its mode and final status.
	RecordDispatch(ctx context.Context, action, mode, status string, duration time.Duration)

	// RecordHandler records one handler invocation and whether it failed.
	RecordHandler(ctx context.Context, action string, duration time.Duration, err error)

	// RecordOperation records a finished ref operation.
	RecordOperation(ctx context.Context, ref, status string, attempts int, duration time.Duration)

	// RecordEmit records an event emission and how many handlers received it.
	RecordEmit(ctx context.Context, event string, handlers int)

	// RecordNotification records a store notification cycle.
	RecordNotification(ctx context.Context, store string, listeners int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches        metric.Int64Counter
	dispatchLatency   metric.Float64Histogram
	handlerRuns       metric.Int64Counter
	handlerErrors     metric.Int64Counter
	handlerLatency    metric.Float64Histogram
	operations        metric.Int64Counter
	operationLatency  metric.Float64Histogram
	operationAttempts metric.Int64Histogram
	emits             metric.Int64Counter
	notifications     metric.Int64Counter
}

// newOtelMetrics creates the instruments on the given meter.
func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	m := &otelMetrics{}
	var err error

	if m.dispatches, err = meter.Int64Counter("contextaction.action.dispatches",
		metric.WithDescription("Number of action dispatches"),
	); err != nil {
		return nil, err
	}

	if m.dispatchLatency, err = meter.Float64Histogram("contextaction.action.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.handlerRuns, err = meter.Int64Counter("contextaction.handler.executions",
		metric.WithDescription("Number of handler invocations"),
	); err != nil {
		return nil, err
	}

	if m.handlerErrors, err = meter.Int64Counter("contextaction.handler.errors",
		metric.WithDescription("Number of handler failures"),
	); err != nil {
		return nil, err
	}

	if m.handlerLatency, err = meter.Float64Histogram("contextaction.handler.latency_ms",
		metric.WithDescription("Handler latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.operations, err = meter.Int64Counter("contextaction.ref.operations",
		metric.WithDescription("Number of finished ref operations"),
	); err != nil {
		return nil, err
	}

	if m.operationLatency, err = meter.Float64Histogram("contextaction.ref.latency_ms",
		metric.WithDescription("Ref operation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.operationAttempts, err = meter.Int64Histogram("contextaction.ref.attempts",
		metric.WithDescription("Attempts per ref operation"),
	); err != nil {
		return nil, err
	}

	if m.emits, err = meter.Int64Counter("contextaction.event.emits",
		metric.WithDescription("Number of emitted events"),
	); err != nil {
		return nil, err
	}

	if m.notifications, err = meter.Int64Counter("contextaction.store.notifications",
		metric.WithDescription("Number of store notification cycles"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	return NewMetricsRecorderWithProvider(otel.GetMeterProvider())
}

// NewMetricsRecorderWithProvider returns an OTel MetricsRecorder bound to the
// given provider instead of the global one.
func NewMetricsRecorderWithProvider(provider metric.MeterProvider) MetricsRecorder {
	m, err := newOtelMetrics(provider.Meter("contextaction"))
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records a dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, action, mode, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, durationMs(duration), attrs)
}

// RecordHandler records a handler invocation.
func (m *otelMetrics) RecordHandler(ctx context.Context, action string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("action", action))
	m.handlerRuns.Add(ctx, 1, attrs)
	m.handlerLatency.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.handlerErrors.Add(ctx, 1, attrs)
	}
}

// RecordOperation records a ref operation.
func (m *otelMetrics) RecordOperation(ctx context.Context, ref, status string, attempts int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("ref", ref),
		attribute.String("status", status),
	)
	m.operations.Add(ctx, 1, attrs)
	m.operationLatency.Record(ctx, durationMs(duration), attrs)
	m.operationAttempts.Record(ctx, int64(attempts), attrs)
}

// RecordEmit records an event emission.
func (m *otelMetrics) RecordEmit(ctx context.Context, event string, handlers int) {
	m.emits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.Int("handlers", handlers),
	))
}

// RecordNotification records a store notification.
func (m *otelMetrics) RecordNotification(ctx context.Context, store string, listeners int) {
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.Int("listeners", listeners),
	))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
