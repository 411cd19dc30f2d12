package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
)

// Snapshot is an immutable view of a store at one version.
// The pointer returned by GetSnapshot stays the same until the value changes.
type Snapshot[T any] struct {
	Value      T
	Name       string
	LastUpdate int64
}

// Listener is notified after a change. It re-reads the store itself.
type Listener func()

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Handle is the type-erased view of a store used by Registry.
type Handle interface {
	Name() string
	Subscribe(Listener) Unsubscribe
	ListenerCount() int
	ClearListeners()
	AnyValue() any
	Version() int64
}

// Destroyer is implemented by handles that release resources when replaced
// or cleared from a registry.
type Destroyer interface {
	Destroy()
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store holds one named, versioned, observable value.
//
// Writes deep-copy their input and compare it with the current value; only a
// real change bumps the version, rebuilds the snapshot and notifies. Reads
// return deep copies, so callers never share memory with the store.
type Store[T any] struct {
	name string

	// writeMu serializes writers so Update is atomic with respect to SetValue.
	writeMu sync.Mutex

	mu         sync.RWMutex
	value      T
	snapshot   *Snapshot[T]
	version    int64
	listeners  []listenerEntry
	nextID     uint64
	options    *compare.Options
	comparator func(a, b T) bool
	mode       NotificationMode
	pending    bool
	destroyed  bool

	engine    *compare.Engine
	scheduler Scheduler
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
}

// Compile-time interface checks.
var (
	_ Handle    = (*Store[int])(nil)
	_ Destroyer = (*Store[int])(nil)
)

// New creates a store. It panics if the name is empty; use NewE to get the
// error instead.
func New[T any](name string, initial T, opts ...Option) *Store[T] {
	s, err := NewE(name, initial, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewE creates a store, returning a ValidationError for an empty name or
// invalid comparison options.
func NewE[T any](name string, initial T, opts ...Option) (*Store[T], error) {
	if name == "" {
		return nil, &caerrors.ValidationError{Field: "name", Message: "store name is required"}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.options != nil {
		if err := cfg.options.Validate(); err != nil {
			return nil, err
		}
	}

	s := &Store[T]{
		name:      name,
		options:   cfg.options,
		mode:      cfg.mode,
		engine:    cfg.engine,
		scheduler: cfg.scheduler,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
	}
	s.value = Clone(initial)
	s.version = nextVersion(0)
	s.snapshot = &Snapshot[T]{Value: Clone(s.value), Name: name, LastUpdate: s.version}
	return s, nil
}

// nextVersion returns a clock-based version strictly greater than prev.
func nextVersion(prev int64) int64 {
	now := time.Now().UnixNano()
	if now <= prev {
		return prev + 1
	}
	return now
}

// Name returns the store name.
func (s *Store[T]) Name() string { return s.name }

// Version returns the LastUpdate of the current snapshot.
func (s *Store[T]) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers a listener and returns its idempotent remover.
func (s *Store[T]) Subscribe(l Listener) Unsubscribe {
	if l == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.removeListener(id) })
	}
}

func (s *Store[T]) removeListener(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.listeners {
		if e.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// GetSnapshot returns the cached snapshot.
// Treat it as read-only; it is shared by every caller until the next change.
func (s *Store[T]) GetSnapshot() *Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// GetValue returns a deep copy of the current value.
func (s *Store[T]) GetValue() T {
	s.mu.RLock()
	v := s.value
	s.mu.RUnlock()
	// Stored values are never mutated in place, so copying outside the lock is safe.
	return Clone(v)
}

// AnyValue returns GetValue as an any, for type-erased callers.
func (s *Store[T]) AnyValue() any {
	return s.GetValue()
}

// SetValue replaces the value if the active comparator reports a change.
// It returns true when the value changed.
func (s *Store[T]) SetValue(v T) bool {
	changed, mode := s.write(func(T) T { return Clone(v) })
	if changed {
		s.deliver(mode)
	}
	return changed
}

// Update applies fn to a copy of the current value and stores the result.
// fn runs while other writers are held off, so it must not write to this
// store itself.
func (s *Store[T]) Update(fn func(current T) T) bool {
	changed, mode := s.write(func(cur T) T { return Clone(fn(Clone(cur))) })
	if changed {
		s.deliver(mode)
	}
	return changed
}

// write computes the next value from the current one and applies it while
// holding writeMu. A panic in next or in the comparator releases the lock.
func (s *Store[T]) write(next func(current T) T) (bool, NotificationMode) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	cur := s.value
	s.mu.RUnlock()
	return s.apply(next(cur))
}

// apply stores next if it differs from the current value. Callers hold writeMu.
func (s *Store[T]) apply(next T) (bool, NotificationMode) {
	s.mu.RLock()
	cur := s.value
	destroyed := s.destroyed
	s.mu.RUnlock()

	if destroyed {
		s.logger.Debug("write to destroyed store ignored", slog.String("store", s.name))
		return false, Immediate
	}
	if s.equal(cur, next) {
		return false, Immediate
	}

	snapshot := Clone(next)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = next
	s.version = nextVersion(s.version)
	s.snapshot = &Snapshot[T]{Value: snapshot, Name: s.name, LastUpdate: s.version}
	return true, s.mode
}

func (s *Store[T]) equal(a, b T) bool {
	s.mu.RLock()
	custom := s.comparator
	opts := s.options
	s.mu.RUnlock()

	if custom != nil {
		return custom(a, b)
	}
	return s.engine.Compare(a, b, opts)
}

func (s *Store[T]) deliver(mode NotificationMode) {
	if mode == Immediate {
		s.notify()
		return
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	sched := s.scheduler
	s.mu.Unlock()

	sched.Schedule(func() { s.Flush() })
}

// Flush delivers a pending batched notification now.
// It reports whether a notification was pending.
func (s *Store[T]) Flush() bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	s.pending = false
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Store[T]) notify() {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	for i, e := range s.listeners {
		listeners[i] = e.fn
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		s.invoke(l)
	}
	s.metrics.RecordNotification(context.Background(), s.name, len(listeners))
}

func (s *Store[T]) invoke(l Listener) {
	defer func() {
		if r := recover(); r != nil {
			observability.LogListenerPanic(s.logger, s.name, r)
		}
	}()
	l()
}

// SetCustomComparator installs a typed comparator that overrides both the
// store options and the engine default.
func (s *Store[T]) SetCustomComparator(fn func(a, b T) bool) {
	s.mu.Lock()
	s.comparator = fn
	s.mu.Unlock()
}

// ClearCustomComparator removes the typed comparator.
func (s *Store[T]) ClearCustomComparator() {
	s.SetCustomComparator(nil)
}

// SetComparisonOptions installs per-store comparison options.
func (s *Store[T]) SetComparisonOptions(opts compare.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.options = &opts
	s.mu.Unlock()
	return nil
}

// ClearComparisonOptions reverts to the engine default.
func (s *Store[T]) ClearComparisonOptions() {
	s.mu.Lock()
	s.options = nil
	s.mu.Unlock()
}

// ComparisonOptions returns the per-store options, if any.
func (s *Store[T]) ComparisonOptions() (compare.Options, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.options == nil {
		return compare.Options{}, false
	}
	return *s.options, true
}

// SetNotificationMode switches delivery timing for subsequent changes.
// A notification already scheduled is still delivered.
func (s *Store[T]) SetNotificationMode(mode NotificationMode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// NotificationMode returns the current delivery mode.
func (s *Store[T]) NotificationMode() NotificationMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// ListenerCount returns the number of subscribed listeners.
func (s *Store[T]) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// ClearListeners removes every listener.
func (s *Store[T]) ClearListeners() {
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}

// Destroy clears listeners, drops any pending notification and makes
// further writes no-ops. Reads keep returning the last value.
func (s *Store[T]) Destroy() {
	s.mu.Lock()
	s.listeners = nil
	s.pending = false
	s.destroyed = true
	s.mu.Unlock()
}
