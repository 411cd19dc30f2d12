package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(WithRegistry(reg), WithNamespace("test"))
	require.NoError(t, err)

	ctx := context.Background()
	r.RecordDispatch(ctx, "save", "sequential", "completed", 2*time.Millisecond)
	r.RecordHandler(ctx, "save", time.Millisecond, nil)
	r.RecordHandler(ctx, "save", time.Millisecond, errors.New("boom"))
	r.RecordOperation(ctx, "input", "done", 1, time.Millisecond)
	r.RecordEmit(ctx, "user:login", 3)
	r.RecordNotification(ctx, "counter", 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.dispatches.WithLabelValues("save", "sequential", "completed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.handlerRuns.WithLabelValues("save")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.handlerErrors.WithLabelValues("save")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.operations.WithLabelValues("input", "done")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.emits.WithLabelValues("user:login")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.notifications.WithLabelValues("counter")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_dispatches_total")
	assert.Contains(t, names, "test_handler_duration_seconds")
}

func TestPrometheusRecorderReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusRecorder(WithRegistry(reg))
	require.NoError(t, err)
	second, err := NewPrometheusRecorder(WithRegistry(reg))
	require.NoError(t, err)

	ctx := context.Background()
	first.RecordEmit(ctx, "tick", 0)
	second.RecordEmit(ctx, "tick", 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(first.emits.WithLabelValues("tick")))
}

func TestPrometheusOptions(t *testing.T) {
	cfg := defaultPrometheusConfig()
	for _, opt := range []PrometheusOption{
		WithNamespace("ns"),
		WithSubsystem("sub"),
		WithConstLabels(prometheus.Labels{"app": "demo"}),
		WithBuckets([]float64{0.1, 1}),
	} {
		opt(&cfg)
	}

	assert.Equal(t, "ns", cfg.Namespace)
	assert.Equal(t, "sub", cfg.Subsystem)
	assert.Equal(t, prometheus.Labels{"app": "demo"}, cfg.ConstLabels)
	assert.Equal(t, []float64{0.1, 1}, cfg.Buckets)
	assert.Equal(t, prometheus.DefaultRegisterer, defaultPrometheusConfig().Registry)
}
