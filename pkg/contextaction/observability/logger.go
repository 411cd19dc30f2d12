// Package observability provides production-grade observability features
// for contextaction: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds dispatch context to a logger.
// Returns a new logger with action, dispatch_id, and handler_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "save", "d-123", "validate")
//	enriched.Info("checking payload") // includes action, dispatch_id, handler_id
func EnrichLogger(logger *slog.Logger, action, dispatchID, handlerID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("action", action),
		slog.String("dispatch_id", dispatchID),
		slog.String("handler_id", handlerID),
	)
}

// LogDispatchStart logs the start of an action dispatch.
func LogDispatchStart(logger *slog.Logger, action, dispatchID, mode string, handlers int) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch starting",
		slog.String("action", action),
		slog.String("dispatch_id", dispatchID),
		slog.String("mode", mode),
		slog.Int("handlers", handlers),
	)
}

// LogDispatchComplete logs the end of an action dispatch.
func LogDispatchComplete(logger *slog.Logger, action, dispatchID, status string, durationMs float64, errCount int) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch completed",
		slog.String("action", action),
		slog.String("dispatch_id", dispatchID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
		slog.Int("errors", errCount),
	)
}

// LogHandlerError logs a handler failure. The pipeline keeps going unless
// the handler is configured to halt, so this is a warning.
func LogHandlerError(logger *slog.Logger, action, handlerID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("handler failed",
		slog.String("action", action),
		slog.String("handler_id", handlerID),
		slog.String("error", err.Error()),
	)
}

// LogAbort logs a controller abort.
func LogAbort(logger *slog.Logger, action, handlerID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("pipeline aborted",
		slog.String("action", action),
		slog.String("handler_id", handlerID),
		slog.String("reason", reason),
	)
}

// LogListenerPanic logs a recovered panic from a store or registry listener.
func LogListenerPanic(logger *slog.Logger, store string, value any) {
	if logger == nil {
		return
	}
	logger.Error("listener panicked",
		slog.String("store", store),
		slog.Any("panic", value),
	)
}

// LogEventHandlerError logs an event handler failure (non-fatal).
func LogEventHandlerError(logger *slog.Logger, event, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event handler failed",
		slog.String("event", event),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogOperationComplete logs a finished ref operation.
func LogOperationComplete(logger *slog.Logger, ref, operationID, status string, attempts int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("operation finished",
		slog.String("ref", ref),
		slog.String("operation_id", operationID),
		slog.String("status", status),
		slog.Int("attempts", attempts),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogOperationRetry logs a retry of a failed ref operation.
func LogOperationRetry(logger *slog.Logger, ref, operationID string, attempt int, err error) {
	if logger == nil {
		return
	}
	logger.Info("retrying operation",
		slog.String("ref", ref),
		slog.String("operation_id", operationID),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
