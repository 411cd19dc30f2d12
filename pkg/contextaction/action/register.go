package action

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/registry"
)

type entry struct {
	action  string
	fn      HandlerFunc
	cfg     handlerConfig
	fired   atomic.Bool
	removed atomic.Bool
}

// Register keeps the handlers of each action, ordered by descending
// priority, and dispatches payloads through them.
type Register struct {
	config registerConfig

	mu       sync.RWMutex
	handlers *registry.Registry[string, []*entry]

	statsMu sync.Mutex
	stats   map[string]*Stats
}

// NewRegister creates an empty register.
func NewRegister(opts ...RegisterOption) *Register {
	cfg := registerConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		mode:    Sequential,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Register{
		config:   cfg,
		handlers: registry.New[string, []*entry](),
		stats:    make(map[string]*Stats),
	}
}

// Add registers fn for action and returns its remover.
// It fails with a ValidationError for an empty action, a nil handler or a
// handler ID already used by the action.
func (r *Register) Add(action string, fn HandlerFunc, opts ...HandlerOption) (Unregister, error) {
	if action == "" {
		return nil, &caerrors.ValidationError{Field: "action", Message: "action name is required"}
	}
	if fn == nil {
		return nil, &caerrors.ValidationError{Field: "handler", Message: "handler is nil"}
	}

	var cfg handlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.New().String()
	}
	e := &entry{action: action, fn: fn, cfg: cfg}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, _ := r.handlers.Get(action)
	for _, existing := range current {
		if existing.cfg.id == cfg.id {
			return nil, &caerrors.ValidationError{
				Field:   "id",
				Message: fmt.Sprintf("handler %q already registered for action %q", cfg.id, action),
			}
		}
	}

	// Insert after every handler with priority >= ours so ties keep
	// registration order.
	idx := len(current)
	for i, existing := range current {
		if existing.cfg.priority < cfg.priority {
			idx = i
			break
		}
	}
	next := make([]*entry, 0, len(current)+1)
	next = append(next, current[:idx]...)
	next = append(next, e)
	next = append(next, current[idx:]...)
	r.handlers.Register(action, next)

	return func() { r.remove(e) }, nil
}

// On is Add for registrations known to be valid. It panics on error.
func (r *Register) On(action string, fn HandlerFunc, opts ...HandlerOption) Unregister {
	unregister, err := r.Add(action, fn, opts...)
	if err != nil {
		panic(err)
	}
	return unregister
}

func (r *Register) remove(e *entry) {
	if !e.removed.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handlers.Get(e.action)
	if !ok {
		return
	}
	next := make([]*entry, 0, len(current))
	for _, existing := range current {
		if existing != e {
			next = append(next, existing)
		}
	}
	if len(next) == 0 {
		r.handlers.Delete(e.action)
		return
	}
	r.handlers.Register(e.action, next)
}

func (r *Register) snapshot(action string) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries, _ := r.handlers.Get(action)
	return entries
}

// HandlerCount returns the number of handlers registered for action.
func (r *Register) HandlerCount(action string) int {
	return len(r.snapshot(action))
}

// HasHandlers reports whether action has at least one handler.
func (r *Register) HasHandlers(action string) bool {
	return r.HandlerCount(action) > 0
}

// HandlerIDs returns the handler IDs of action in execution order.
func (r *Register) HandlerIDs(action string) []string {
	entries := r.snapshot(action)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.cfg.id
	}
	return ids
}

// Actions returns the actions with handlers, in first-registration order.
func (r *Register) Actions() []string {
	return r.handlers.Keys()
}

// Clear removes every handler for action.
func (r *Register) Clear(action string) {
	r.mu.Lock()
	removed, _ := r.handlers.Delete(action)
	r.mu.Unlock()
	for _, e := range removed {
		e.removed.Store(true)
	}
}

// ClearAll removes every handler for every action.
func (r *Register) ClearAll() {
	r.mu.Lock()
	removed := r.handlers.Clear()
	r.mu.Unlock()
	for _, entries := range removed {
		for _, e := range entries {
			e.removed.Store(true)
		}
	}
}

// Stats returns the cumulative counters for action.
func (r *Register) Stats(action string) Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	if s, ok := r.stats[action]; ok {
		return *s
	}
	return Stats{}
}

func (r *Register) recordStats(res Result) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s, ok := r.stats[res.Action]
	if !ok {
		s = &Stats{}
		r.stats[res.Action] = s
	}
	s.Dispatches++
	s.HandlerErrors += int64(len(res.Errors))
	switch res.Status {
	case Completed:
		s.Completed++
	case Aborted:
		s.Aborted++
	case Errored:
		s.Errored++
	}
}
