package contextaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/contextaction/pkg/contextaction/action"
	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	"github.com/randalmurphal/contextaction/pkg/contextaction/config"
	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/event"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/store"
)

// Metrics backends recognized by telemetry.metrics.
const (
	MetricsNone       = "none"
	MetricsOTel       = "otel"
	MetricsPrometheus = "prometheus"
)

// Settings is the effective configuration read from a config.Config.
type Settings struct {
	Name             string
	Comparison       compare.Options
	NotificationMode store.NotificationMode
	MaxHistory       int
	ArchivePath      string
	ActionMode       action.Mode
	HaltOnError      bool
	RefTimeout       time.Duration
	RetryDelay       time.Duration
	Metrics          string
	MetricsNamespace string
	Tracing          bool
}

// ParseSettings reads and validates every recognized key. Missing keys take
// their defaults.
func ParseSettings(cfg config.Config) (Settings, error) {
	s := Settings{
		Name:             cfg.String("name", "default"),
		MaxHistory:       cfg.Int("events.max_history", event.DefaultMaxHistorySize),
		ArchivePath:      cfg.String("events.archive", ""),
		HaltOnError:      cfg.Bool("actions.halt_on_error", false),
		RefTimeout:       cfg.Duration("refs.default_timeout", 0),
		RetryDelay:       cfg.Duration("refs.retry_delay", 100*time.Millisecond),
		Metrics:          strings.ToLower(cfg.String("telemetry.metrics", MetricsNone)),
		MetricsNamespace: cfg.String("telemetry.namespace", "contextaction"),
		Tracing:          cfg.Bool("telemetry.tracing", false),
	}

	strategy, err := compare.ParseStrategy(cfg.String("comparison.strategy", ""))
	if err != nil {
		return Settings{}, fmt.Errorf("comparison.strategy: %w", err)
	}
	s.Comparison = compare.Options{
		Strategy:   strategy,
		MaxDepth:   cfg.Int("comparison.max_depth", 0),
		IgnoreKeys: cfg.StringSlice("comparison.ignore_keys", nil),
	}
	if err := s.Comparison.Validate(); err != nil {
		return Settings{}, fmt.Errorf("comparison: %w", err)
	}

	if s.NotificationMode, err = store.ParseNotificationMode(cfg.String("store.notification_mode", "")); err != nil {
		return Settings{}, fmt.Errorf("store.notification_mode: %w", err)
	}
	if s.ActionMode, err = action.ParseMode(cfg.String("actions.mode", "")); err != nil {
		return Settings{}, fmt.Errorf("actions.mode: %w", err)
	}

	if s.MaxHistory <= 0 {
		return Settings{}, &caerrors.ValidationError{Field: "events.max_history", Message: "must be > 0"}
	}
	if s.RefTimeout < 0 {
		return Settings{}, &caerrors.ValidationError{Field: "refs.default_timeout", Message: "must be >= 0"}
	}
	if s.RetryDelay < 0 {
		return Settings{}, &caerrors.ValidationError{Field: "refs.retry_delay", Message: "must be >= 0"}
	}
	switch s.Metrics {
	case "", MetricsNone:
		s.Metrics = MetricsNone
	case MetricsOTel, MetricsPrometheus:
	default:
		return Settings{}, &caerrors.ValidationError{
			Field:   "telemetry.metrics",
			Message: fmt.Sprintf("unknown metrics backend %q", s.Metrics),
		}
	}
	return s, nil
}

// Options converts the settings into runtime options. It opens the SQLite
// archive and creates the metrics recorder, which is why it can fail.
func (s Settings) Options() ([]Option, error) {
	opts := []Option{
		WithName(s.Name),
		WithComparison(s.Comparison),
		WithNotificationMode(s.NotificationMode),
		WithMaxHistory(s.MaxHistory),
		WithActionMode(s.ActionMode),
		WithHaltOnError(s.HaltOnError),
		WithRefTimeout(s.RefTimeout),
		WithRetryDelay(s.RetryDelay),
	}

	switch s.Metrics {
	case MetricsOTel:
		opts = append(opts, WithMetrics(observability.NewMetricsRecorder()))
	case MetricsPrometheus:
		rec, err := observability.NewPrometheusRecorder(observability.WithNamespace(s.MetricsNamespace))
		if err != nil {
			return nil, fmt.Errorf("create prometheus recorder: %w", err)
		}
		opts = append(opts, WithMetrics(rec))
	}
	if s.Tracing {
		opts = append(opts, WithTracing(observability.NewSpanManager()))
	}

	if s.ArchivePath != "" {
		archive, err := event.NewSQLiteArchive(s.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open event archive: %w", err)
		}
		opts = append(opts, WithArchive(archive))
	}
	return opts, nil
}

// FromConfig builds a runtime from cfg. Options in opts are applied after
// the configured ones and take precedence.
func FromConfig(cfg config.Config, opts ...Option) (*Runtime, error) {
	settings, err := ParseSettings(cfg)
	if err != nil {
		return nil, err
	}
	configured, err := settings.Options()
	if err != nil {
		return nil, err
	}
	rt, err := New(append(configured, opts...)...)
	if err != nil {
		var probe runtimeConfig
		for _, opt := range configured {
			opt(&probe)
		}
		if probe.archive != nil {
			_ = probe.archive.Close()
		}
		return nil, err
	}
	return rt, nil
}
