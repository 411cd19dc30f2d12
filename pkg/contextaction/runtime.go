package contextaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/contextaction/pkg/contextaction/action"
	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	"github.com/randalmurphal/contextaction/pkg/contextaction/event"
	"github.com/randalmurphal/contextaction/pkg/contextaction/refqueue"
	"github.com/randalmurphal/contextaction/pkg/contextaction/store"
)

// Runtime owns one instance of every core component.
type Runtime struct {
	Engine  *compare.Engine
	Stores  *store.Registry
	Actions *action.Register
	Events  *event.Bus
	Refs    *refqueue.Queue[any]

	config    runtimeConfig
	closeOnce sync.Once
	closeErr  error
}

// New creates a runtime. It fails with a ValidationError if the comparison
// options are invalid.
func New(opts ...Option) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.comparison.Validate(); err != nil {
		return nil, fmt.Errorf("comparison options: %w", err)
	}

	rt := &Runtime{
		Engine: compare.NewEngine(cfg.comparison),
		Stores: store.NewRegistry(cfg.name, store.WithRegistryLogger(cfg.logger)),
		Actions: action.NewRegister(
			action.WithLogger(cfg.logger),
			action.WithMetrics(cfg.metrics),
			action.WithTracing(cfg.spans),
			action.WithDefaultMode(cfg.actionMode),
			action.WithDefaultHaltOnError(cfg.haltOnError),
		),
		Events: event.NewBus(event.BusConfig{
			MaxHistorySize: cfg.maxHistory,
			OnError:        cfg.onEventError,
			Logger:         cfg.logger,
			Metrics:        cfg.metrics,
			Archive:        cfg.archive,
		}),
		Refs: refqueue.New[any](
			refqueue.WithLogger(cfg.logger),
			refqueue.WithMetrics(cfg.metrics),
			refqueue.WithTracing(cfg.spans),
			refqueue.WithDefaultTimeout(cfg.refTimeout),
			refqueue.WithDefaultRetryDelay(cfg.retryDelay),
		),
		config: cfg,
	}
	return rt, nil
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.config.logger }

// Archive returns the event archive, or nil if events are not persisted.
func (rt *Runtime) Archive() event.Archive { return rt.config.archive }

// StoreOptions returns the options NewStore applies before its own.
func (rt *Runtime) StoreOptions() []store.Option {
	opts := []store.Option{
		store.WithEngine(rt.Engine),
		store.WithNotificationMode(rt.config.notificationMode),
		store.WithLogger(rt.config.logger),
		store.WithMetrics(rt.config.metrics),
	}
	if rt.config.scheduler != nil {
		opts = append(opts, store.WithScheduler(rt.config.scheduler))
	}
	return opts
}

// NewStore creates a store wired to the runtime's comparison engine,
// notification mode and telemetry, and registers it under name. A store
// already registered under name is replaced and destroyed.
func NewStore[T any](rt *Runtime, name string, initial T, opts ...store.Option) (*store.Store[T], error) {
	s, err := store.NewE(name, initial, append(rt.StoreOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	if err := rt.Stores.Register(name, s, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// Close shuts the ref queue down, destroys every registered store, removes
// all event and action handlers and closes the archive. Later calls return
// the first call's error.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.closeOnce.Do(func() {
		var errs []error
		if err := rt.Refs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown ref queue: %w", err))
		}
		rt.Stores.Clear()
		rt.Actions.ClearAll()
		rt.Events.Clear()
		if rt.config.archive != nil {
			if err := rt.config.archive.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close event archive: %w", err))
			}
		}
		rt.closeErr = errors.Join(errs...)
	})
	return rt.closeErr
}
