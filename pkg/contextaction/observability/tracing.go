package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for contextaction spans.
const tracerName = "contextaction"

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span for an entire dispatch.
	StartDispatchSpan(ctx context.Context, action, dispatchID, mode string) (context.Context, trace.Span)

	// StartHandlerSpan starts a span for one handler invocation.
	// The handler span should be a child of the dispatch span.
	StartHandlerSpan(ctx context.Context, action, handlerID string, priority int) (context.Context, trace.Span)

	// StartOperationSpan starts a span for a queued ref operation.
	StartOperationSpan(ctx context.Context, ref, operationID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider at construction time.
// Configure the provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return NewSpanManagerWithProvider(otel.GetTracerProvider())
}

// NewSpanManagerWithProvider returns a SpanManager bound to the given provider.
func NewSpanManagerWithProvider(provider trace.TracerProvider) SpanManager {
	return &otelSpanManager{tracer: provider.Tracer(tracerName)}
}

// StartDispatchSpan starts a span for an entire dispatch.
func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, action, dispatchID, mode string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "contextaction.dispatch",
		trace.WithAttributes(
			attribute.String("action.name", action),
			attribute.String("dispatch.id", dispatchID),
			attribute.String("dispatch.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartHandlerSpan starts a span for one handler invocation.
func (m *otelSpanManager) StartHandlerSpan(ctx context.Context, action, handlerID string, priority int) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "contextaction.handler."+action,
		trace.WithAttributes(
			attribute.String("action.name", action),
			attribute.String("handler.id", handlerID),
			attribute.Int("handler.priority", priority),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartOperationSpan starts a span for a queued ref operation.
func (m *otelSpanManager) StartOperationSpan(ctx context.Context, ref, operationID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "contextaction.ref."+ref,
		trace.WithAttributes(
			attribute.String("ref.name", ref),
			attribute.String("operation.id", operationID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
