package refqueue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/refqueue"
)

type widget struct{ name string }

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) get() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func record(j *journal, name string, d time.Duration) refqueue.Operation[*widget] {
	return func(context.Context, *widget) (any, error) {
		j.add(name + ":start")
		time.Sleep(d)
		j.add(name + ":end")
		return name, nil
	}
}

// blocker returns an operation that runs until release is closed.
func blocker() (refqueue.Operation[*widget], chan struct{}) {
	release := make(chan struct{})
	return func(context.Context, *widget) (any, error) {
		<-release
		return "blocker", nil
	}, release
}

func wait(t *testing.T, tk *refqueue.Ticket) refqueue.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := tk.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestSerializationPerRef(t *testing.T) {
	q := refqueue.New[*widget]()
	j := &journal{}
	w := &widget{name: "chart"}

	a, err := q.Submit("chart", w, record(j, "A", 20*time.Millisecond))
	require.NoError(t, err)
	b, err := q.Submit("chart", w, record(j, "B", 0))
	require.NoError(t, err)

	assert.Equal(t, refqueue.Done, wait(t, a).Status)
	assert.Equal(t, refqueue.Done, wait(t, b).Status)
	assert.Equal(t, []string{"A:start", "A:end", "B:start", "B:end"}, j.get())
}

func TestRunningOperationIsNotOvertaken(t *testing.T) {
	q := refqueue.New[*widget]()
	j := &journal{}

	slow, err := q.Submit("ref1", nil, record(j, "slow", 30*time.Millisecond), refqueue.WithPriority(1))
	require.NoError(t, err)
	fast, err := q.Submit("ref1", nil, record(j, "fast", 0), refqueue.WithPriority(5))
	require.NoError(t, err)

	wait(t, slow)
	wait(t, fast)
	assert.Equal(t, []string{"slow:start", "slow:end", "fast:start", "fast:end"}, j.get())
}

func TestWaitingOperationsRunByPriority(t *testing.T) {
	q := refqueue.New[*widget]()
	j := &journal{}
	block, release := blocker()

	head, err := q.Submit("ref1", nil, block)
	require.NoError(t, err)

	var tickets []*refqueue.Ticket
	for _, op := range []struct {
		name     string
		priority int
	}{
		{"slow", 1},
		{"fast", 5},
		{"fast-second", 5},
		{"default", 0},
	} {
		tk, err := q.Submit("ref1", nil, record(j, op.name, 0), refqueue.WithPriority(op.priority))
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}
	assert.Equal(t, 4, q.PendingCount("ref1"))
	assert.True(t, q.IsProcessing("ref1"))

	close(release)
	wait(t, head)
	for _, tk := range tickets {
		wait(t, tk)
	}

	assert.Equal(t, []string{
		"fast:start", "fast:end",
		"fast-second:start", "fast-second:end",
		"slow:start", "slow:end",
		"default:start", "default:end",
	}, j.get())
}

func TestCancelPendingOperations(t *testing.T) {
	q := refqueue.New[*widget]()
	block, release := blocker()
	var ran atomic.Int32
	op := func(context.Context, *widget) (any, error) {
		ran.Add(1)
		return nil, nil
	}

	head, err := q.Submit("ref1", nil, block)
	require.NoError(t, err)
	first, err := q.Submit("ref1", nil, op, refqueue.WithOperationID("first"))
	require.NoError(t, err)
	second, err := q.Submit("ref1", nil, op)
	require.NoError(t, err)

	assert.Equal(t, 2, q.Cancel("ref1"))
	assert.Equal(t, 0, q.PendingCount("ref1"))

	for _, tk := range []*refqueue.Ticket{first, second} {
		res := wait(t, tk)
		assert.Equal(t, refqueue.Cancelled, res.Status)
		assert.Equal(t, 0, res.Attempts)
		assert.ErrorIs(t, res.Err, caerrors.ErrCancelled)
	}

	var ce *caerrors.CancellationError
	res, _ := first.Result()
	require.ErrorAs(t, res.Err, &ce)
	assert.Equal(t, "ref1", ce.Ref)
	assert.Equal(t, "first", ce.OperationID)

	close(release)
	assert.Equal(t, refqueue.Done, wait(t, head).Status)
	assert.Equal(t, int32(0), ran.Load())

	stats := q.Stats("ref1")
	assert.Equal(t, refqueue.Stats{Completed: 1, Cancelled: 2}, stats)
	assert.Equal(t, 0, q.Cancel("unknown"))
}

func TestEnqueueReportsCancellationAsResult(t *testing.T) {
	q := refqueue.New[*widget]()
	block, release := blocker()
	_, err := q.Submit("ref1", nil, block)
	require.NoError(t, err)

	type enqueued struct {
		res refqueue.Result
		err error
	}
	got := make(chan enqueued, 1)
	go func() {
		res, err := q.Enqueue(context.Background(), "ref1", nil, func(context.Context, *widget) (any, error) {
			return nil, nil
		})
		got <- enqueued{res, err}
	}()

	require.Eventually(t, func() bool { return q.PendingCount("ref1") == 1 }, time.Second, time.Millisecond)
	q.Cancel("ref1")
	close(release)

	e := <-got
	require.NoError(t, e.err)
	assert.Equal(t, refqueue.Cancelled, e.res.Status)
}

func TestRefsRunIndependently(t *testing.T) {
	q := refqueue.New[*widget]()
	bRan := make(chan struct{})

	a, err := q.Submit("a", nil, func(context.Context, *widget) (any, error) {
		select {
		case <-bRan:
			return "a", nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("ref b never ran")
		}
	})
	require.NoError(t, err)
	b, err := q.Submit("b", nil, func(context.Context, *widget) (any, error) {
		close(bRan)
		return "b", nil
	})
	require.NoError(t, err)

	assert.Equal(t, refqueue.Done, wait(t, b).Status)
	resA := wait(t, a)
	assert.Equal(t, refqueue.Done, resA.Status)
	assert.Equal(t, "a", resA.Value)

	assert.Equal(t, []string{"a", "b"}, q.Refs())
	all := q.AllStats()
	assert.Len(t, all, 2)
	assert.Equal(t, int64(1), all["a"].Completed)
}

func TestRetry(t *testing.T) {
	q := refqueue.New[*widget](refqueue.WithDefaultRetryDelay(time.Millisecond))

	t.Run("succeeds after failures", func(t *testing.T) {
		var calls atomic.Int32
		res, err := q.Enqueue(context.Background(), "retry", nil, func(context.Context, *widget) (any, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("flaky")
			}
			return "ok", nil
		}, refqueue.WithRetry(2))

		require.NoError(t, err)
		assert.Equal(t, refqueue.Done, res.Status)
		assert.Equal(t, "ok", res.Value)
		assert.Equal(t, 3, res.Attempts)
	})

	t.Run("gives up", func(t *testing.T) {
		boom := errors.New("boom")
		var calls atomic.Int32
		res, err := q.Enqueue(context.Background(), "retry", nil, func(context.Context, *widget) (any, error) {
			calls.Add(1)
			return nil, boom
		}, refqueue.WithRetry(1), refqueue.WithRetryDelay(0))

		require.NoError(t, err)
		assert.Equal(t, refqueue.Failed, res.Status)
		assert.ErrorIs(t, res.Err, boom)
		assert.Equal(t, 2, res.Attempts)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("deliberate stop is not retried", func(t *testing.T) {
		var calls atomic.Int32
		res, err := q.Enqueue(context.Background(), "retry", nil, func(context.Context, *widget) (any, error) {
			calls.Add(1)
			return nil, &caerrors.AbortError{Reason: "stale"}
		}, refqueue.WithRetry(3))

		require.NoError(t, err)
		assert.Equal(t, refqueue.Failed, res.Status)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("no retry by default", func(t *testing.T) {
		res, err := q.Enqueue(context.Background(), "retry", nil, func(context.Context, *widget) (any, error) {
			return nil, errors.New("once")
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Attempts)
	})

	assert.Equal(t, int64(1), q.Stats("retry").Completed)
	assert.Equal(t, int64(3), q.Stats("retry").Failed)
}

func TestTimeoutAdvancesQueue(t *testing.T) {
	q := refqueue.New[*widget]()
	stuck := make(chan struct{})
	defer close(stuck)

	hung, err := q.Submit("ref1", nil, func(context.Context, *widget) (any, error) {
		<-stuck
		return nil, nil
	}, refqueue.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	polite, err := q.Submit("ref1", nil, func(ctx context.Context, _ *widget) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, refqueue.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	after, err := q.Submit("ref1", nil, func(context.Context, *widget) (any, error) {
		return "after", nil
	})
	require.NoError(t, err)

	for _, tk := range []*refqueue.Ticket{hung, polite} {
		res := wait(t, tk)
		assert.Equal(t, refqueue.Failed, res.Status)
		var te *caerrors.TimeoutError
		require.ErrorAs(t, res.Err, &te)
		assert.Equal(t, 20*time.Millisecond, te.Duration)
	}
	assert.Equal(t, "after", wait(t, after).Value)
}

func TestDefaultTimeout(t *testing.T) {
	q := refqueue.New[*widget](refqueue.WithDefaultTimeout(10 * time.Millisecond))
	res, err := q.Enqueue(context.Background(), "ref1", nil, func(ctx context.Context, _ *widget) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, refqueue.Failed, res.Status)

	res, err = q.Enqueue(context.Background(), "ref1", nil, func(context.Context, *widget) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return "slow but allowed", nil
	}, refqueue.WithTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, refqueue.Done, res.Status)
}

func TestOperationPanicFails(t *testing.T) {
	q := refqueue.New[*widget]()
	res, err := q.Enqueue(context.Background(), "ref1", nil, func(context.Context, *widget) (any, error) {
		panic("bad widget")
	}, refqueue.WithOperationID("op-1"))
	require.NoError(t, err)
	assert.Equal(t, refqueue.Failed, res.Status)
	assert.Equal(t, "op-1", res.ID)

	var pe *caerrors.PanicError
	require.ErrorAs(t, res.Err, &pe)
	assert.Equal(t, "bad widget", pe.Value)
}

func TestTargetAndContextValues(t *testing.T) {
	type key struct{}
	q := refqueue.New[*widget]()
	w := &widget{name: "table"}

	ctx := context.WithValue(context.Background(), key{}, "trace-me")
	res, err := q.Enqueue(ctx, "ref1", w, func(ctx context.Context, target *widget) (any, error) {
		return target.name + "/" + ctx.Value(key{}).(string), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "table/trace-me", res.Value)
	assert.Equal(t, "ref1", res.Ref)
}

func TestEnqueueWaitCanBeAbandoned(t *testing.T) {
	q := refqueue.New[*widget]()
	block, release := blocker()
	defer close(release)
	_, err := q.Submit("ref1", nil, block)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Enqueue(ctx, "ref1", nil, func(context.Context, *widget) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.PendingCount("ref1"))
}

func TestSubmitValidation(t *testing.T) {
	q := refqueue.New[*widget]()
	op := func(context.Context, *widget) (any, error) { return nil, nil }

	_, err := q.Submit("", nil, op)
	var ve *caerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ref", ve.Field)

	_, err = q.Submit("ref1", nil, nil)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "operation", ve.Field)
}

func TestShutdown(t *testing.T) {
	q := refqueue.New[*widget]()
	block, release := blocker()

	head, err := q.Submit("ref1", nil, block)
	require.NoError(t, err)
	waiting, err := q.Submit("ref1", nil, func(context.Context, *widget) (any, error) { return nil, nil })
	require.NoError(t, err)

	shutdown := make(chan error, 1)
	go func() { shutdown <- q.Shutdown(context.Background()) }()

	res := wait(t, waiting)
	assert.Equal(t, refqueue.Cancelled, res.Status)
	require.Eventually(t, q.Closed, time.Second, time.Millisecond)

	_, err = q.Submit("ref1", nil, block)
	assert.ErrorIs(t, err, caerrors.ErrShutdown)
	_, err = q.Enqueue(context.Background(), "ref3", nil, block)
	assert.ErrorIs(t, err, caerrors.ErrShutdown)

	close(release)
	assert.Equal(t, refqueue.Done, wait(t, head).Status)
	require.NoError(t, <-shutdown)
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestShutdownDeadlineInterruptsRunning(t *testing.T) {
	q := refqueue.New[*widget]()
	running, err := q.Submit("ref1", nil, func(ctx context.Context, _ *widget) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, refqueue.WithRetry(5))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)

	res := wait(t, running)
	assert.Equal(t, refqueue.Failed, res.Status)
	assert.Equal(t, 1, res.Attempts, "a stopped queue does not retry")
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestOperationSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	q := refqueue.New[*widget](refqueue.WithTracing(observability.NewSpanManagerWithProvider(tp)))
	_, err := q.Enqueue(context.Background(), "chart", nil, func(context.Context, *widget) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "contextaction.ref.chart", spans[0].Name)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "done", refqueue.Done.String())
	assert.Equal(t, "failed", refqueue.Failed.String())
	assert.Equal(t, "cancelled", refqueue.Cancelled.String())
	assert.Equal(t, "status(9)", refqueue.Status(9).String())
}
