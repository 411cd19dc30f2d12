package event

import (
	"context"
	"strings"
)

// Scoped is a prefixed view of a Bus. Names passed to it are local; the
// parent bus sees them as prefix + ":" + name.
type Scoped struct {
	bus    *Bus
	prefix string
}

func (s *Scoped) full(name string) string { return s.prefix + name }

// Prefix returns the full prefix including the trailing separator.
func (s *Scoped) Prefix() string { return s.prefix }

// On subscribes handler to the scoped event name.
func (s *Scoped) On(name string, handler Handler) Subscription {
	return s.bus.On(s.full(name), handler)
}

// Once subscribes handler to the scoped event for a single delivery.
func (s *Scoped) Once(name string, handler Handler) Subscription {
	return s.bus.Once(s.full(name), handler)
}

// Emit emits the scoped event on the parent bus.
func (s *Scoped) Emit(ctx context.Context, name string, data any) int {
	return s.bus.Emit(ctx, s.full(name), data)
}

// Off removes handlers for the scoped event.
func (s *Scoped) Off(name string, subs ...Subscription) {
	s.bus.Off(s.full(name), subs...)
}

// HandlerCount returns the number of handlers for the scoped event.
func (s *Scoped) HandlerCount(name string) int {
	return s.bus.HandlerCount(s.full(name))
}

// EventNames returns the local names in this scope that have handlers.
func (s *Scoped) EventNames() []string {
	var names []string
	for _, n := range s.bus.EventNames() {
		if local, ok := strings.CutPrefix(n, s.prefix); ok {
			names = append(names, local)
		}
	}
	return names
}

// History returns the parent's history entries in this scope, with local names.
func (s *Scoped) History() []Event {
	var out []Event
	for _, evt := range s.bus.History() {
		if local, ok := strings.CutPrefix(evt.Name, s.prefix); ok {
			evt.Name = local
			out = append(out, evt)
		}
	}
	return out
}

// Scope returns a nested view: Scope("a").Scope("b") emits "a:b:name".
func (s *Scoped) Scope(prefix string) *Scoped {
	return &Scoped{bus: s.bus, prefix: s.prefix + prefix + ScopeSeparator}
}
