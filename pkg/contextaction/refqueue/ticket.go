package refqueue

import (
	"context"
	"fmt"
	"time"
)

// Status is the final state of an operation.
type Status int

const (
	// Done means the operation returned without error.
	Done Status = iota

	// Failed means every attempt failed or timed out.
	Failed

	// Cancelled means the operation was removed before it started.
	Cancelled
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one operation.
type Result struct {
	ID     string
	Ref    string
	Status Status

	// Value is what the operation returned on success.
	Value any

	// Err is the last attempt's error for Failed operations and a
	// CancellationError for Cancelled ones.
	Err error

	// Attempts is zero for operations that never started.
	Attempts int
	Duration time.Duration
}

// Ticket tracks a submitted operation.
type Ticket struct {
	id   string
	ref  string
	done chan struct{}
	res  Result
}

func newTicket(id, ref string) *Ticket {
	return &Ticket{id: id, ref: ref, done: make(chan struct{})}
}

// ID returns the operation ID.
func (t *Ticket) ID() string { return t.id }

// Ref returns the ref the operation was queued on.
func (t *Ticket) Ref() string { return t.ref }

// Done is closed once the operation is resolved.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the operation is resolved or ctx is done. Giving up on
// the wait leaves the operation queued.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome and true if the operation is resolved.
func (t *Ticket) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.res, true
	default:
		return Result{}, false
	}
}

func (t *Ticket) resolve(res Result) {
	t.res = res
	close(t.done)
}
