package registry

import "sync"

// Registry is a thread-safe, insertion-ordered map of values indexed by key.
// Overwriting an existing key keeps its original position.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	order   []K
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds or replaces a value. It reports whether the key was new.
func (r *Registry[K, V]) Register(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setLocked(key, value)
}

func (r *Registry[K, V]) setLocked(key K, value V) bool {
	_, exists := r.entries[key]
	r.entries[key] = value
	if !exists {
		r.order = append(r.order, key)
	}
	return !exists
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Delete removes a key and returns the removed value.
// The boolean is false if the key was not present.
func (r *Registry[K, V]) Delete(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	if !ok {
		return v, false
	}
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return v, true
}

// Keys returns all keys in insertion order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, len(r.order))
	copy(keys, r.order)
	return keys
}

// Values returns all values in insertion order.
func (r *Registry[K, V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make([]V, 0, len(r.order))
	for _, k := range r.order {
		values = append(values, r.entries[k])
	}
	return values
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in insertion order until fn returns false.
//
// Range iterates over a snapshot, so fn may call Register or Delete
// without affecting the current iteration.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	keys := make([]K, len(r.order))
	copy(keys, r.order)
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = r.entries[k]
	}
	r.mu.RUnlock()

	for i, k := range keys {
		if !fn(k, values[i]) {
			return
		}
	}
}

// GetOrCreate returns the value for a key, creating it with factory if it
// doesn't exist. The factory is called at most once per key, even under
// concurrent access. The boolean reports whether the value was created.
func (r *Registry[K, V]) GetOrCreate(key K, factory func() V) (V, bool) {
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return v, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		return v, false
	}
	v = factory()
	r.setLocked(key, v)
	return v, true
}

// Clear removes every entry and returns the removed values in insertion order.
func (r *Registry[K, V]) Clear() []V {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := make([]V, 0, len(r.order))
	for _, k := range r.order {
		removed = append(removed, r.entries[k])
	}
	r.entries = make(map[K]V)
	r.order = nil
	return removed
}
