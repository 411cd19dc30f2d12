package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across packages.
var (
	// ErrNotFound indicates a store, handler or ref name does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOptions indicates malformed configuration was supplied.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrAborted indicates a pipeline was aborted by a handler.
	ErrAborted = errors.New("pipeline aborted")

	// ErrCancelled indicates queued work was cancelled before it started.
	ErrCancelled = errors.New("operation cancelled")

	// ErrShutdown indicates the component no longer accepts work.
	ErrShutdown = errors.New("shut down")
)

// ValidationError indicates invalid construction input.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap returns ErrInvalidOptions for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidOptions
}

// NotFoundError indicates an operation referenced a name that does not exist.
type NotFoundError struct {
	// Kind is what was looked up ("store", "handler", "ref").
	Kind string
	// Name is the missing name.
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Unwrap returns ErrNotFound for errors.Is support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// HandlerError wraps an error raised inside a registered action handler.
type HandlerError struct {
	// Action is the dispatched action name.
	Action string
	// HandlerID identifies the failing handler.
	HandlerID string
	// Priority is the handler's priority.
	Priority int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("action %s: handler %s: %v", e.Action, e.HandlerID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// AbortError reports an explicit controller abort.
// It is terminal for the pipeline and distinct from HandlerError.
type AbortError struct {
	// Action is the dispatched action name.
	Action string
	// HandlerID identifies the handler that aborted.
	HandlerID string
	// Reason is the reason passed to Abort.
	Reason string
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("action %s aborted by handler %s", e.Action, e.HandlerID)
	}
	return fmt.Sprintf("action %s aborted by handler %s: %s", e.Action, e.HandlerID, e.Reason)
}

// Unwrap returns ErrAborted for errors.Is support.
func (e *AbortError) Unwrap() error {
	return ErrAborted
}

// CancellationError marks work that was cancelled before it started.
// Queues resolve with it instead of failing so callers can tell
// "didn't run" from "ran and failed".
type CancellationError struct {
	// Ref is the queue key.
	Ref string
	// OperationID identifies the cancelled operation.
	OperationID string
	// Cause is why the operation was cancelled.
	Cause string
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("operation %s on %s cancelled: %s", e.OperationID, e.Ref, e.Cause)
	}
	return fmt.Sprintf("operation %s on %s cancelled", e.OperationID, e.Ref)
}

// Unwrap returns ErrCancelled for errors.Is support.
func (e *CancellationError) Unwrap() error {
	return ErrCancelled
}

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// PanicError captures a recovered panic from user code.
// It includes the stack trace for debugging.
type PanicError struct {
	// Where names the callback that panicked (handler ID, listener, operation).
	Where string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Where, e.Value)
}
