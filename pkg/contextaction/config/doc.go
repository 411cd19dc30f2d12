/*
Package config provides type-safe configuration extraction from map[string]any.

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values. Keys
may be dotted paths into nested sections, which is how contextaction reads
its recognized options:

	cfg, err := config.FromFile("contextaction.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	strategy := cfg.String("comparison.strategy", "reference")
	history := cfg.Int("events.max_history", 100)
	timeout := cfg.Duration("refs.default_timeout", 0)

	// Or work on one section at a time
	actions := cfg.Sub("actions")
	halt := actions.Bool("halt_on_error", false)

Duration accepts strings ("30s", "1h30m"), numbers (seconds) and
time.Duration values. Int accepts float64 only without a fractional part.

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
