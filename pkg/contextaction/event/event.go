package event

import (
	"context"
	"time"
)

// Event is one emission: the payload handed to handlers and the record kept
// in history.
type Event struct {
	Name      string
	Data      any
	Timestamp time.Time
}

// Handler processes an emitted event. A returned error is reported to the
// bus OnError hook; it never reaches the emitter.
type Handler func(ctx context.Context, evt Event) error

// HandlerFunc adapts a handler that cannot fail.
func HandlerFunc(fn func(evt Event)) Handler {
	return func(_ context.Context, evt Event) error {
		fn(evt)
		return nil
	}
}

// Subscription represents an active handler registration.
type Subscription interface {
	// ID uniquely identifies the subscription.
	ID() string

	// Unsubscribe removes the handler. Calling it again is a no-op.
	Unsubscribe()

	// Pause temporarily skips delivery to this handler.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool
}
