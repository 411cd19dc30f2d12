package store

import (
	"fmt"
	"strings"
	"sync"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
)

// NotificationMode controls when listeners hear about a change.
type NotificationMode int

const (
	// Immediate notifies synchronously once the write has been applied.
	Immediate NotificationMode = iota

	// Batched coalesces writes and notifies once per scheduler tick.
	Batched
)

// String returns the lower-case mode name.
func (m NotificationMode) String() string {
	switch m {
	case Immediate:
		return "immediate"
	case Batched:
		return "batched"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseNotificationMode converts a configuration string into a NotificationMode.
func ParseNotificationMode(s string) (NotificationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "immediate":
		return Immediate, nil
	case "batched", "batch":
		return Batched, nil
	}
	return Immediate, &caerrors.ValidationError{
		Field:   "notification_mode",
		Message: fmt.Sprintf("unknown notification mode %q", s),
	}
}

// Scheduler runs deferred notification work for batched stores.
// Each Schedule call must eventually run fn exactly once.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// GoroutineScheduler runs each scheduled function on its own goroutine.
// It is the default for batched stores.
type GoroutineScheduler struct{}

// Schedule starts fn on a new goroutine.
func (GoroutineScheduler) Schedule(fn func()) { go fn() }

// ManualScheduler queues scheduled work until Flush is called.
// It gives tests and single-threaded hosts a deterministic tick.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule queues fn.
func (m *ManualScheduler) Schedule(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Pending returns the number of queued functions.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Flush runs queued work until the queue is empty, including work scheduled
// while flushing. It returns the number of functions run.
func (m *ManualScheduler) Flush() int {
	ran := 0
	for {
		m.mu.Lock()
		queue := m.queue
		m.queue = nil
		m.mu.Unlock()

		if len(queue) == 0 {
			return ran
		}
		for _, fn := range queue {
			fn()
			ran++
		}
	}
}
