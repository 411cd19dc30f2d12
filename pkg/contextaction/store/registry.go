package store

import (
	"log/slog"
	"sync"
	"time"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/registry"
)

// Metadata describes a registered store.
type Metadata struct {
	Tags         []string
	Description  string
	Version      string
	Debug        bool
	RegisteredAt time.Time
}

// MetadataPatch is a partial metadata update. Nil fields are left untouched.
type MetadataPatch struct {
	Tags        []string
	Description *string
	Version     *string
	Debug       *bool
}

// Entry is one name/store pair in a registry snapshot.
type Entry struct {
	Name  string
	Store Handle
}

// Registry is a named collection of stores with its own change listeners.
// Listeners fire after Register, Unregister and Clear.
type Registry struct {
	name   string
	logger *slog.Logger

	stores *registry.Registry[string, Handle]
	meta   *registry.Registry[string, Metadata]

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	snapshot  []Entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for warnings.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(name string, opts ...RegistryOption) *Registry {
	r := &Registry{
		name:   name,
		logger: slog.Default(),
		stores: registry.New[string, Handle](),
		meta:   registry.New[string, Metadata](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Register adds a store under name, replacing and destroying any different
// store already registered there. meta may be nil.
func (r *Registry) Register(name string, h Handle, meta *Metadata) error {
	if name == "" {
		return &caerrors.ValidationError{Field: "name", Message: "store name is required"}
	}
	if h == nil {
		return &caerrors.ValidationError{Field: "store", Message: "store is nil"}
	}

	old, replaced := r.stores.Get(name)
	r.stores.Register(name, h)

	m := Metadata{}
	if meta != nil {
		m = *meta
		m.Tags = append([]string(nil), meta.Tags...)
	}
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now()
	}
	r.meta.Register(name, m)

	if replaced && old != h {
		if d, ok := old.(Destroyer); ok {
			d.Destroy()
		}
	}

	r.changed()
	return nil
}

// Unregister removes the store and its metadata. The store itself is left
// intact. A missing name logs a warning and returns false.
func (r *Registry) Unregister(name string) bool {
	if _, ok := r.stores.Delete(name); !ok {
		r.logger.Warn("unregister of unknown store",
			slog.String("registry", r.name),
			slog.String("store", name),
		)
		return false
	}
	r.meta.Delete(name)
	r.changed()
	return true
}

// Store returns the store registered under name.
func (r *Registry) Store(name string) (Handle, bool) {
	return r.stores.Get(name)
}

// All returns a copy of the name to store map.
func (r *Registry) All() map[string]Handle {
	out := make(map[string]Handle, r.stores.Len())
	r.stores.Range(func(name string, h Handle) bool {
		out[name] = h
		return true
	})
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool { return r.stores.Has(name) }

// Count returns the number of registered stores.
func (r *Registry) Count() int { return r.stores.Len() }

// Names returns store names in registration order.
func (r *Registry) Names() []string { return r.stores.Keys() }

// Metadata returns a copy of the metadata for name.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	m, ok := r.meta.Get(name)
	if !ok {
		return Metadata{}, false
	}
	m.Tags = append([]string(nil), m.Tags...)
	return m, true
}

// UpdateMetadata merges patch into the metadata for name.
// It returns false if name is not registered.
func (r *Registry) UpdateMetadata(name string, patch MetadataPatch) bool {
	if !r.stores.Has(name) {
		return false
	}
	m, _ := r.meta.Get(name)
	if patch.Tags != nil {
		m.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Version != nil {
		m.Version = *patch.Version
	}
	if patch.Debug != nil {
		m.Debug = *patch.Debug
	}
	r.meta.Register(name, m)
	return true
}

// Clear unregisters every store, destroying each one.
func (r *Registry) Clear() {
	removed := r.stores.Clear()
	r.meta.Clear()
	for _, h := range removed {
		if d, ok := h.(Destroyer); ok {
			d.Destroy()
		}
	}
	r.changed()
}

// ForEach calls fn for each store in registration order.
func (r *Registry) ForEach(fn func(name string, h Handle)) {
	r.stores.Range(func(name string, h Handle) bool {
		fn(name, h)
		return true
	})
}

// Filter returns a new registry holding the stores for which pred is true.
// The stores are shared; the two registries' memberships are independent.
func (r *Registry) Filter(pred func(name string, h Handle) bool) *Registry {
	out := NewRegistry(r.name+".filtered", WithRegistryLogger(r.logger))
	r.stores.Range(func(name string, h Handle) bool {
		if pred(name, h) {
			out.stores.Register(name, h)
			if m, ok := r.meta.Get(name); ok {
				m.Tags = append([]string(nil), m.Tags...)
				out.meta.Register(name, m)
			}
		}
		return true
	})
	return out
}

// Subscribe registers a membership listener and returns its idempotent remover.
func (r *Registry) Subscribe(l Listener) Unsubscribe {
	if l == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listenerEntry{id: id, fn: l})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, e := range r.listeners {
				if e.id == id {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Snapshot returns the registered stores in order. The returned slice is
// the same until membership changes and must not be modified.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil {
		entries := make([]Entry, 0, r.stores.Len())
		r.stores.Range(func(name string, h Handle) bool {
			entries = append(entries, Entry{Name: name, Store: h})
			return true
		})
		r.snapshot = entries
	}
	return r.snapshot
}

func (r *Registry) changed() {
	r.mu.Lock()
	r.snapshot = nil
	listeners := make([]Listener, len(r.listeners))
	for i, e := range r.listeners {
		listeners[i] = e.fn
	}
	r.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					observability.LogListenerPanic(r.logger, r.name, rec)
				}
			}()
			l()
		}()
	}
}

// Lookup returns the store registered under name as a *Store[T].
// It returns false if the name is missing or holds a different value type.
func Lookup[T any](r *Registry, name string) (*Store[T], bool) {
	h, ok := r.Store(name)
	if !ok {
		return nil, false
	}
	s, ok := h.(*Store[T])
	return s, ok
}
