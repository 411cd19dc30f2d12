package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
)

// HandlerFunc processes a dispatched payload. A non-nil return value is
// appended to the dispatch results; a non-nil error is recorded as a
// HandlerError.
type HandlerFunc func(ctx context.Context, payload any, ctl *Controller) (any, error)

// Unregister removes a handler. Calling it more than once is a no-op.
type Unregister func()

// Mode selects how the handlers of one dispatch are scheduled.
type Mode int

const (
	// Sequential runs handlers one at a time in priority order.
	Sequential Mode = iota

	// Parallel starts every handler at once and waits for all of them.
	Parallel

	// Race starts every handler at once and adopts the first to finish.
	Race
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	case Race:
		return "race"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	case "race":
		return Race, nil
	}
	return Sequential, &caerrors.ValidationError{
		Field:   "mode",
		Message: fmt.Sprintf("unknown execution mode %q", s),
	}
}

// Status is the state of a dispatch.
type Status int

// Dispatch states. A dispatch starts Pending, runs, and ends in one of the
// last three.
const (
	Pending Status = iota
	Running
	Completed
	Aborted
	Errored
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one dispatch.
type Result struct {
	Action     string
	DispatchID string
	Mode       Mode
	Status     Status

	// Results holds handler contributions in the order they were made.
	Results []any

	// Errors holds one HandlerError per failed handler.
	Errors []error

	Aborted     bool
	AbortReason string
	AbortedBy   string

	// Discarded lists handlers whose contributions were dropped: parallel
	// handlers that aborted, and race handlers that lost.
	Discarded []string

	Executed int
	Skipped  int
	Duration time.Duration
}

// Success reports whether the dispatch completed without handler errors.
func (r Result) Success() bool {
	return r.Status == Completed && len(r.Errors) == 0
}

// Err returns an AbortError for aborted dispatches, the joined handler
// errors otherwise, or nil.
func (r Result) Err() error {
	if r.Aborted {
		return &caerrors.AbortError{Action: r.Action, HandlerID: r.AbortedBy, Reason: r.AbortReason}
	}
	if len(r.Errors) > 0 {
		return errors.Join(r.Errors...)
	}
	return nil
}

// Value returns the last contribution, or nil if there is none.
// For race dispatches this is the winner's result.
func (r Result) Value() any {
	if len(r.Results) == 0 {
		return nil
	}
	return r.Results[len(r.Results)-1]
}

// Stats are cumulative counters for one action.
type Stats struct {
	Dispatches    int64
	Completed     int64
	Aborted       int64
	Errored       int64
	HandlerErrors int64
}
