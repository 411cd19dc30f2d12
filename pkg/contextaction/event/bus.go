package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/registry"
)

// DefaultMaxHistorySize is the history capacity used when none is configured.
const DefaultMaxHistorySize = 100

// ScopeSeparator joins a scope prefix and an event name.
const ScopeSeparator = ":"

// BusConfig configures bus behavior.
type BusConfig struct {
	// MaxHistorySize bounds the history ring.
	// Default: 100
	MaxHistorySize int

	// OnError is called when a handler returns an error or panics, and when
	// the archive rejects an event (subscriptionID is empty then).
	OnError func(evt Event, subscriptionID string, err error)

	// Logger receives handler failures at warn level.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records emissions.
	// Default: observability.NoopMetrics
	Metrics observability.MetricsRecorder

	// Archive, if set, receives every event after fan-out.
	Archive Archive
}

// Bus is a synchronous publish/subscribe channel keyed by event name, with a
// bounded history of past emissions.
type Bus struct {
	config BusConfig

	mu       sync.RWMutex
	handlers *registry.Registry[string, []*subscription]

	historyMu sync.Mutex
	history   []Event
	head      int
	size      int
}

// NewBus creates a bus.
func NewBus(config BusConfig) *Bus {
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = DefaultMaxHistorySize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	return &Bus{
		config:   config,
		handlers: registry.New[string, []*subscription](),
		history:  make([]Event, config.MaxHistorySize),
	}
}

type subscription struct {
	id      string
	name    string
	handler Handler
	once    bool
	fired   atomic.Bool
	paused  atomic.Bool
	removed atomic.Bool
	bus     *Bus
}

func (s *subscription) ID() string { return s.id }

func (s *subscription) Unsubscribe() {
	if s.removed.CompareAndSwap(false, true) {
		s.bus.remove(s.name, s.id)
	}
}

func (s *subscription) Pause()         { s.paused.Store(true) }
func (s *subscription) Resume()        { s.paused.Store(false) }
func (s *subscription) IsPaused() bool { return s.paused.Load() }

// On subscribes handler to the named event.
func (b *Bus) On(name string, handler Handler) Subscription {
	return b.subscribe(name, handler, false)
}

// Once subscribes handler for a single delivery. The subscription is removed
// before the handler runs, so a handler that re-emits the event does not see
// it again.
func (b *Bus) Once(name string, handler Handler) Subscription {
	return b.subscribe(name, handler, true)
}

func (b *Bus) subscribe(name string, handler Handler, once bool) *subscription {
	sub := &subscription{
		id:      uuid.New().String(),
		name:    name,
		handler: handler,
		once:    once,
		bus:     b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, _ := b.handlers.Get(name)
	next := make([]*subscription, len(subs), len(subs)+1)
	copy(next, subs)
	b.handlers.Register(name, append(next, sub))
	return sub
}

func (b *Bus) remove(name, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.handlers.Get(name)
	if !ok {
		return
	}
	next := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		b.handlers.Delete(name)
		return
	}
	b.handlers.Register(name, next)
}

// Emit delivers data to every handler subscribed to name when the call
// starts, then appends the event to history. It returns the number of
// handlers invoked. Handler failures are reported to OnError and never
// stop the remaining handlers.
func (b *Bus) Emit(ctx context.Context, name string, data any) int {
	evt := Event{Name: name, Data: data, Timestamp: time.Now()}

	b.mu.RLock()
	subs, _ := b.handlers.Get(name)
	b.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if s.paused.Load() {
			continue
		}
		if s.once {
			if !s.fired.CompareAndSwap(false, true) {
				continue
			}
			s.Unsubscribe()
		}
		b.invoke(ctx, s, evt)
		delivered++
	}

	b.record(evt)
	if b.config.Archive != nil {
		if err := b.config.Archive.Append(ctx, evt); err != nil {
			b.report(evt, "", fmt.Errorf("archive event: %w", err))
		}
	}
	b.config.Metrics.RecordEmit(ctx, name, delivered)
	return delivered
}

func (b *Bus) invoke(ctx context.Context, s *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.report(evt, s.id, &caerrors.PanicError{
				Where: "event handler " + evt.Name,
				Value: r,
				Stack: string(debug.Stack()),
			})
		}
	}()
	if err := s.handler(ctx, evt); err != nil {
		b.report(evt, s.id, err)
	}
}

func (b *Bus) report(evt Event, subscriptionID string, err error) {
	observability.LogEventHandlerError(b.config.Logger, evt.Name, subscriptionID, err)
	if b.config.OnError != nil {
		b.config.OnError(evt, subscriptionID, err)
	}
}

func (b *Bus) record(evt Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	capacity := len(b.history)
	b.history[(b.head+b.size)%capacity] = evt
	if b.size < capacity {
		b.size++
		return
	}
	b.head = (b.head + 1) % capacity
}

// Off removes the given subscriptions from name. With no subscriptions it
// removes every handler for name.
func (b *Bus) Off(name string, subs ...Subscription) {
	if len(subs) > 0 {
		for _, s := range subs {
			if s != nil {
				s.Unsubscribe()
			}
		}
		return
	}

	b.mu.Lock()
	removed, _ := b.handlers.Delete(name)
	b.mu.Unlock()
	for _, s := range removed {
		s.removed.Store(true)
	}
}

// Clear removes every handler for every event. History is kept.
func (b *Bus) Clear() {
	b.mu.Lock()
	removed := b.handlers.Clear()
	b.mu.Unlock()
	for _, subs := range removed {
		for _, s := range subs {
			s.removed.Store(true)
		}
	}
}

// EventNames returns the names that have handlers, in first-subscription order.
func (b *Bus) EventNames() []string {
	return b.handlers.Keys()
}

// HandlerCount returns the number of handlers for name.
func (b *Bus) HandlerCount(name string) int {
	subs, _ := b.handlers.Get(name)
	return len(subs)
}

// TotalHandlerCount returns the number of handlers across all events.
func (b *Bus) TotalHandlerCount() int {
	total := 0
	b.handlers.Range(func(_ string, subs []*subscription) bool {
		total += len(subs)
		return true
	})
	return total
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	out := make([]Event, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.history[(b.head+i)%len(b.history)]
	}
	return out
}

// ClearHistory drops all retained events.
func (b *Bus) ClearHistory() {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	for i := range b.history {
		b.history[i] = Event{}
	}
	b.head, b.size = 0, 0
}

// MaxHistorySize returns the history capacity.
func (b *Bus) MaxHistorySize() int { return len(b.history) }

// Scope returns a view of the bus that prefixes every event name with
// prefix and ScopeSeparator. The view shares this bus's handlers and history.
func (b *Bus) Scope(prefix string) *Scoped {
	return &Scoped{bus: b, prefix: prefix + ScopeSeparator}
}
