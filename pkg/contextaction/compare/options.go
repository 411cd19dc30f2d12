package compare

import (
	"fmt"
	"strings"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
)

// Strategy selects how two values are compared.
type Strategy int

const (
	// Reference compares identity: == for plain values, pointer identity for
	// maps, slices, funcs and chans.
	Reference Strategy = iota

	// Shallow compares one level of fields, map entries or elements by reference.
	Shallow

	// Deep compares structurally, bounded by Options.MaxDepth.
	Deep

	// Custom delegates to Options.Comparator.
	Custom
)

// String returns the lower-case strategy name.
func (s Strategy) String() string {
	switch s {
	case Reference:
		return "reference"
	case Shallow:
		return "shallow"
	case Deep:
		return "deep"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reference", "ref":
		return Reference, nil
	case "shallow":
		return Shallow, nil
	case "deep":
		return Deep, nil
	case "custom":
		return Custom, nil
	}
	return Reference, &caerrors.ValidationError{
		Field:   "strategy",
		Message: fmt.Sprintf("unknown comparison strategy %q", s),
	}
}

// Comparator reports whether a and b are equal.
type Comparator func(a, b any) bool

// Options configures a comparison.
type Options struct {
	Strategy Strategy

	// MaxDepth bounds Deep comparison. Zero means unlimited. Values below the
	// limit are compared by reference.
	MaxDepth int

	// IgnoreKeys lists map keys and struct fields (Go name or json tag) that
	// are excluded from Shallow and Deep comparison.
	IgnoreKeys []string

	// Comparator is used by the Custom strategy. A nil Comparator falls back
	// to Reference.
	Comparator Comparator
}

// Validate checks the options for programmer errors.
func (o Options) Validate() error {
	if o.Strategy < Reference || o.Strategy > Custom {
		return &caerrors.ValidationError{
			Field:   "strategy",
			Message: fmt.Sprintf("unknown comparison strategy %d", int(o.Strategy)),
		}
	}
	if o.MaxDepth < 0 {
		return &caerrors.ValidationError{
			Field:   "max_depth",
			Message: "must be >= 0",
		}
	}
	return nil
}

func (o Options) ignoreSet() map[string]struct{} {
	if len(o.IgnoreKeys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(o.IgnoreKeys))
	for _, k := range o.IgnoreKeys {
		set[k] = struct{}{}
	}
	return set
}
