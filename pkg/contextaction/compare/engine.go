package compare

import "sync"

// Engine holds the default comparison options for one runtime.
// Stores without their own options compare through it.
type Engine struct {
	mu  sync.RWMutex
	def Options
}

// NewEngine creates an engine with the given default options.
// Invalid options are replaced by the Reference default.
func NewEngine(def Options) *Engine {
	if def.Validate() != nil {
		def = Options{}
	}
	return &Engine{def: def}
}

// SetDefault replaces the default options.
func (e *Engine) SetDefault(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.def = opts
	e.mu.Unlock()
	return nil
}

// Default returns a copy of the default options.
func (e *Engine) Default() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	opts := e.def
	if opts.IgnoreKeys != nil {
		opts.IgnoreKeys = append([]string(nil), opts.IgnoreKeys...)
	}
	return opts
}

// Compare reports whether a and b are equal. A non-nil override is used
// instead of the default options.
func (e *Engine) Compare(a, b any, override *Options) bool {
	if override != nil {
		return Equal(a, b, *override)
	}
	if e == nil {
		return Equal(a, b, Options{})
	}
	e.mu.RLock()
	opts := e.def
	e.mu.RUnlock()
	return Equal(a, b, opts)
}
