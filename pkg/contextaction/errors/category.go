// Package errors provides the error taxonomy, categorization and retry
// helpers shared by the contextaction packages.
//
// The package implements a layered approach:
//   - Typed errors: ValidationError, NotFoundError, HandlerError, AbortError,
//     CancellationError, TimeoutError and PanicError
//   - Categorization: classify errors for appropriate handling
//   - Retry: re-run failed work with a fixed or growing delay
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: operation timeouts, flaky targets.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: invalid options, unknown names.
	CategoryPermanent

	// CategoryIntentional indicates the work was stopped on purpose.
	// Examples: controller aborts, queue cancellation, context cancellation.
	CategoryIntentional
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryIntentional:
		return "intentional"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		return CategoryIntentional
	}

	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return CategoryIntentional
	}

	if errors.Is(err, context.Canceled) {
		return CategoryIntentional
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryPermanent
	}

	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return CategoryPermanent
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsIntentional reports whether the error reflects a deliberate stop
// (abort or cancellation) rather than a failure.
func IsIntentional(err error) bool {
	return Categorize(err) == CategoryIntentional
}
