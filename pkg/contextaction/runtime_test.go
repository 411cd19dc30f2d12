package contextaction_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/contextaction/pkg/contextaction"
	"github.com/randalmurphal/contextaction/pkg/contextaction/action"
	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	"github.com/randalmurphal/contextaction/pkg/contextaction/config"
	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/event"
	"github.com/randalmurphal/contextaction/pkg/contextaction/refqueue"
	"github.com/randalmurphal/contextaction/pkg/contextaction/store"
)

type cart struct {
	Items     []string
	UpdatedAt int64 `json:"updatedAt"`
}

func newRuntime(t *testing.T, opts ...contextaction.Option) *contextaction.Runtime {
	t.Helper()
	rt, err := contextaction.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestNewDefaults(t *testing.T) {
	rt := newRuntime(t)
	assert.NotNil(t, rt.Engine)
	assert.NotNil(t, rt.Stores)
	assert.NotNil(t, rt.Actions)
	assert.NotNil(t, rt.Events)
	assert.NotNil(t, rt.Refs)
	assert.Nil(t, rt.Archive())
	assert.Equal(t, "default", rt.Stores.Name())
	assert.Equal(t, compare.Reference, rt.Engine.Default().Strategy)
	assert.Equal(t, event.DefaultMaxHistorySize, rt.Events.MaxHistorySize())

	_, err := contextaction.New(contextaction.WithComparison(compare.Options{MaxDepth: -1}))
	assert.ErrorIs(t, err, caerrors.ErrInvalidOptions)
}

func TestNewStoreUsesRuntimeComparison(t *testing.T) {
	rt := newRuntime(t, contextaction.WithComparison(compare.Options{
		Strategy:   compare.Deep,
		IgnoreKeys: []string{"updatedAt"},
	}))

	s, err := contextaction.NewStore(rt, "cart", cart{Items: []string{"a"}})
	require.NoError(t, err)

	var calls atomic.Int32
	s.Subscribe(func() { calls.Add(1) })

	assert.False(t, s.SetValue(cart{Items: []string{"a"}, UpdatedAt: 99}))
	assert.True(t, s.SetValue(cart{Items: []string{"a", "b"}}))
	assert.Equal(t, int32(1), calls.Load())

	got, ok := store.Lookup[cart](rt.Stores, "cart")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, err = contextaction.NewStore(rt, "", 0)
	assert.ErrorIs(t, err, caerrors.ErrInvalidOptions)
}

func TestNewStoreBatchedWithScheduler(t *testing.T) {
	sched := store.NewManualScheduler()
	rt := newRuntime(t,
		contextaction.WithNotificationMode(store.Batched),
		contextaction.WithScheduler(sched),
	)

	s, err := contextaction.NewStore(rt, "counter", 0)
	require.NoError(t, err)
	calls := 0
	s.Subscribe(func() { calls++ })

	s.SetValue(1)
	s.SetValue(2)
	s.SetValue(3)
	assert.Equal(t, 0, calls)

	sched.Flush()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, s.GetValue())
}

func TestActionsDriveStoresAndEvents(t *testing.T) {
	archive := event.NewMemoryArchive()
	rt := newRuntime(t, contextaction.WithArchive(archive))

	counter, err := contextaction.NewStore(rt, "counter", 0)
	require.NoError(t, err)

	var seen []any
	rt.Events.On("counter:changed", event.HandlerFunc(func(evt event.Event) {
		seen = append(seen, evt.Data)
	}))

	rt.Actions.On("increment", func(ctx context.Context, p any, ctl *action.Controller) (any, error) {
		if p.(int) < 0 {
			ctl.Abort("negative increment")
			return nil, nil
		}
		return nil, nil
	}, action.WithPriority(100))
	rt.Actions.On("increment", func(ctx context.Context, p any, _ *action.Controller) (any, error) {
		counter.Update(func(n int) int { return n + p.(int) })
		rt.Events.Emit(ctx, "counter:changed", counter.GetValue())
		return counter.GetValue(), nil
	})

	res := rt.Actions.Dispatch(context.Background(), "increment", 2)
	require.True(t, res.Success())
	assert.Equal(t, 2, res.Value())

	res = rt.Actions.Dispatch(context.Background(), "increment", -1)
	assert.Equal(t, action.Aborted, res.Status)
	assert.Equal(t, 2, counter.GetValue())

	assert.Equal(t, []any{2}, seen)
	n, err := archive.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRefQueueDefaults(t *testing.T) {
	rt := newRuntime(t,
		contextaction.WithRefTimeout(10*time.Millisecond),
		contextaction.WithRetryDelay(time.Millisecond),
	)

	var calls atomic.Int32
	res, err := rt.Refs.Enqueue(context.Background(), "input", "field", func(ctx context.Context, target any) (any, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	}, refqueue.WithRetry(1))
	require.NoError(t, err)
	assert.Equal(t, refqueue.Failed, res.Status)
	assert.Equal(t, 2, res.Attempts)

	var te *caerrors.TimeoutError
	assert.ErrorAs(t, res.Err, &te)
}

func TestClose(t *testing.T) {
	archive := event.NewMemoryArchive()
	rt, err := contextaction.New(contextaction.WithArchive(archive))
	require.NoError(t, err)

	s, err := contextaction.NewStore(rt, "counter", 0)
	require.NoError(t, err)
	s.Subscribe(func() {})
	rt.Actions.On("noop", func(context.Context, any, *action.Controller) (any, error) { return nil, nil })
	rt.Events.On("tick", event.HandlerFunc(func(event.Event) {}))

	require.NoError(t, rt.Close(context.Background()))

	assert.Equal(t, 0, rt.Stores.Count())
	assert.Equal(t, 0, s.ListenerCount())
	assert.False(t, s.SetValue(1), "destroyed stores ignore writes")
	assert.False(t, rt.Actions.HasHandlers("noop"))
	assert.Equal(t, 0, rt.Events.TotalHandlerCount())
	assert.True(t, rt.Refs.Closed())

	_, err = archive.Count(context.Background())
	assert.ErrorIs(t, err, event.ErrArchiveClosed)
	assert.NoError(t, rt.Close(context.Background()))

	_, err = rt.Refs.Submit("ref", nil, func(context.Context, any) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, caerrors.ErrShutdown)
}

const runtimeYAML = `
name: app
comparison:
  strategy: deep
  max_depth: 4
  ignore_keys: [updatedAt]
store:
  notification_mode: batched
events:
  max_history: 3
  archive: ":memory:"
actions:
  mode: parallel
  halt_on_error: true
refs:
  default_timeout: 2s
  retry_delay: 5ms
telemetry:
  metrics: otel
  tracing: true
`

func TestParseSettings(t *testing.T) {
	cfg, err := config.FromYAML([]byte(runtimeYAML))
	require.NoError(t, err)

	s, err := contextaction.ParseSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, contextaction.Settings{
		Name: "app",
		Comparison: compare.Options{
			Strategy:   compare.Deep,
			MaxDepth:   4,
			IgnoreKeys: []string{"updatedAt"},
		},
		NotificationMode: store.Batched,
		MaxHistory:       3,
		ArchivePath:      ":memory:",
		ActionMode:       action.Parallel,
		HaltOnError:      true,
		RefTimeout:       2 * time.Second,
		RetryDelay:       5 * time.Millisecond,
		Metrics:          contextaction.MetricsOTel,
		MetricsNamespace: "contextaction",
		Tracing:          true,
	}, s)
}

func TestParseSettingsDefaults(t *testing.T) {
	s, err := contextaction.ParseSettings(config.New(nil))
	require.NoError(t, err)
	assert.Equal(t, compare.Reference, s.Comparison.Strategy)
	assert.Equal(t, store.Immediate, s.NotificationMode)
	assert.Equal(t, event.DefaultMaxHistorySize, s.MaxHistory)
	assert.Equal(t, action.Sequential, s.ActionMode)
	assert.Equal(t, 100*time.Millisecond, s.RetryDelay)
	assert.Equal(t, contextaction.MetricsNone, s.Metrics)
	assert.Empty(t, s.ArchivePath)
}

func TestParseSettingsErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  map[string]any
		field string
	}{
		{"strategy", map[string]any{"comparison": map[string]any{"strategy": "fuzzy"}}, "strategy"},
		{"max depth", map[string]any{"comparison": map[string]any{"max_depth": -2}}, "max_depth"},
		{"notification mode", map[string]any{"store": map[string]any{"notification_mode": "later"}}, "notification_mode"},
		{"action mode", map[string]any{"actions": map[string]any{"mode": "chaos"}}, "mode"},
		{"history", map[string]any{"events": map[string]any{"max_history": 0}}, "events.max_history"},
		{"timeout", map[string]any{"refs": map[string]any{"default_timeout": "-1s"}}, "refs.default_timeout"},
		{"metrics", map[string]any{"telemetry": map[string]any{"metrics": "statsd"}}, "telemetry.metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := contextaction.ParseSettings(config.New(tt.data))
			var ve *caerrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte(runtimeYAML))
	require.NoError(t, err)

	rt, err := contextaction.FromConfig(cfg, contextaction.WithMaxHistory(5))
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close(context.Background())) }()

	assert.Equal(t, "app", rt.Stores.Name())
	assert.Equal(t, compare.Deep, rt.Engine.Default().Strategy)
	assert.Equal(t, 5, rt.Events.MaxHistorySize(), "explicit options win over config")
	require.NotNil(t, rt.Archive())

	rt.Events.Emit(context.Background(), "saved", map[string]any{"id": 1})
	n, err := rt.Archive().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := contextaction.NewStore(rt, "cart", cart{})
	require.NoError(t, err)
	assert.Equal(t, store.Batched, s.NotificationMode())

	failing := errors.New("fail")
	rt.Actions.On("save", func(context.Context, any, *action.Controller) (any, error) { return nil, failing })
	res := rt.Actions.Dispatch(context.Background(), "save", nil)
	assert.Equal(t, action.Parallel, res.Mode)
	assert.Equal(t, action.Errored, res.Status)
}

func TestFromConfigPrometheus(t *testing.T) {
	cfg := config.New(map[string]any{
		"telemetry": map[string]any{"metrics": "prometheus", "namespace": "contextaction_runtime_test"},
	})
	rt, err := contextaction.FromConfig(cfg)
	require.NoError(t, err)
	defer rt.Close(context.Background())

	rt.Actions.On("x", func(context.Context, any, *action.Controller) (any, error) { return nil, nil })
	assert.True(t, rt.Actions.Dispatch(context.Background(), "x", nil).Success())
}

func TestFromConfigArchiveError(t *testing.T) {
	cfg := config.New(map[string]any{
		"events": map[string]any{"archive": "/nonexistent-dir/sub/events.db"},
	})
	_, err := contextaction.FromConfig(cfg)
	assert.Error(t, err)
}
