package refqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
	"github.com/randalmurphal/contextaction/pkg/contextaction/registry"
)

// Operation is the work queued against a ref. It receives the target it was
// submitted with.
type Operation[T any] func(ctx context.Context, target T) (any, error)

// Stats are the counters of one ref.
type Stats struct {
	Pending   int
	Running   int
	Completed int64
	Failed    int64
	Cancelled int64
}

type item[T any] struct {
	ctx    context.Context
	target T
	op     Operation[T]
	cfg    opConfig
	ticket *Ticket
}

type lane[T any] struct {
	pending []*item[T]
	running *item[T]
	stats   Stats
}

// push inserts it after every waiting item with priority >= its own.
func (l *lane[T]) push(it *item[T]) {
	idx := len(l.pending)
	for i, existing := range l.pending {
		if existing.cfg.priority < it.cfg.priority {
			idx = i
			break
		}
	}
	l.pending = append(l.pending, nil)
	copy(l.pending[idx+1:], l.pending[idx:])
	l.pending[idx] = it
}

func (l *lane[T]) pop() *item[T] {
	if len(l.pending) == 0 {
		return nil
	}
	it := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return it
}

// Queue runs operations one at a time per ref.
type Queue[T any] struct {
	config queueConfig

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	lanes  *registry.Registry[string, *lane[T]]
	closed bool
	wg     sync.WaitGroup
}

// New creates an empty queue.
func New[T any](opts ...QueueOption) *Queue[T] {
	cfg := queueConfig{
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Queue[T]{
		config: cfg,
		base:   base,
		cancel: cancel,
		lanes:  registry.New[string, *lane[T]](),
	}
}

// Submit queues op for ref and returns without waiting. If the ref is idle
// the operation starts right away, so an operation submitted later can never
// overtake it.
func (q *Queue[T]) Submit(ref string, target T, op Operation[T], opts ...OperationOption) (*Ticket, error) {
	return q.submit(context.Background(), ref, target, op, opts)
}

// Enqueue queues op for ref and waits for its result. Context values reach
// the operation; cancelling ctx only stops the wait.
func (q *Queue[T]) Enqueue(ctx context.Context, ref string, target T, op Operation[T], opts ...OperationOption) (Result, error) {
	t, err := q.submit(ctx, ref, target, op, opts)
	if err != nil {
		return Result{}, err
	}
	return t.Wait(ctx)
}

func (q *Queue[T]) submit(ctx context.Context, ref string, target T, op Operation[T], opts []OperationOption) (*Ticket, error) {
	if ref == "" {
		return nil, &caerrors.ValidationError{Field: "ref", Message: "ref name is required"}
	}
	if op == nil {
		return nil, &caerrors.ValidationError{Field: "operation", Message: "operation is nil"}
	}

	var cfg opConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.New().String()
	}
	if !cfg.hasDelay {
		cfg.retryDelay = q.config.retryDelay
	}
	if !cfg.hasTimeout {
		cfg.timeout = q.config.timeout
	}

	it := &item[T]{
		ctx:    context.WithoutCancel(ctx),
		target: target,
		op:     op,
		cfg:    cfg,
		ticket: newTicket(cfg.id, ref),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, fmt.Errorf("submit to %q: %w", ref, caerrors.ErrShutdown)
	}

	l, _ := q.lanes.GetOrCreate(ref, func() *lane[T] { return &lane[T]{} })
	if l.running != nil {
		l.push(it)
		return it.ticket, nil
	}

	l.running = it
	q.wg.Add(1)
	go q.process(ref, l, it)
	return it.ticket, nil
}

// process runs it and then every operation waiting on the same lane.
func (q *Queue[T]) process(ref string, l *lane[T], it *item[T]) {
	defer q.wg.Done()
	for it != nil {
		res := q.execute(ref, it)

		q.mu.Lock()
		switch res.Status {
		case Done:
			l.stats.Completed++
		case Failed:
			l.stats.Failed++
		}
		next := l.pop()
		l.running = next
		q.mu.Unlock()

		it.ticket.resolve(res)
		it = next
	}
}

func (q *Queue[T]) execute(ref string, it *item[T]) Result {
	id := it.cfg.id
	ctx, stop := q.operationContext(it.ctx)
	defer stop()

	ctx, span := q.config.spans.StartOperationSpan(ctx, ref, id)
	elapsed := observability.TimedOperation()

	retry := caerrors.FixedDelay(it.cfg.retries, it.cfg.retryDelay,
		caerrors.WithRetryableFunc(func(err error) bool {
			return q.base.Err() == nil && !caerrors.IsIntentional(err)
		}),
		caerrors.WithOnRetry(func(attempt int, err error) {
			observability.LogOperationRetry(q.config.logger, ref, id, attempt, err)
			q.config.spans.AddSpanEvent(ctx, "retry")
		}),
	)

	out := caerrors.WithRetryContext(ctx, retry, func(ctx context.Context) (any, error) {
		return q.attempt(ctx, ref, it)
	})

	res := Result{
		ID:       id,
		Ref:      ref,
		Status:   Done,
		Value:    out.Value,
		Attempts: out.Attempts,
		Duration: out.Duration,
	}
	if out.Err != nil {
		res.Status = Failed
		res.Value = nil
		res.Err = out.Err
	}

	q.config.spans.EndSpanWithError(span, res.Err)
	q.config.metrics.RecordOperation(ctx, ref, res.Status.String(), res.Attempts, res.Duration)
	observability.LogOperationComplete(q.config.logger, ref, id, res.Status.String(), res.Attempts, elapsed())
	return res
}

// operationContext keeps the submitter's values and is cancelled when the
// queue is forced down.
func (q *Queue[T]) operationContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(q.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

type outcome struct {
	value any
	err   error
}

func (q *Queue[T]) attempt(ctx context.Context, ref string, it *item[T]) (any, error) {
	if it.cfg.timeout <= 0 {
		return call(ctx, it)
	}

	tctx, cancel := context.WithTimeout(ctx, it.cfg.timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		v, err := call(tctx, it)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, q.timeoutError(ref, it)
		}
		return o.value, o.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, q.timeoutError(ref, it)
	}
}

func (q *Queue[T]) timeoutError(ref string, it *item[T]) error {
	return &caerrors.TimeoutError{
		Operation: fmt.Sprintf("operation %s on %s", it.cfg.id, ref),
		Duration:  it.cfg.timeout,
	}
}

func call[T any](ctx context.Context, it *item[T]) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &caerrors.PanicError{
				Where: "operation " + it.cfg.id,
				Value: rec,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return it.op(ctx, it.target)
}

// Cancel resolves every operation of ref that has not started with status
// Cancelled. The running operation, if any, finishes normally. It returns
// the number of operations cancelled.
func (q *Queue[T]) Cancel(ref string) int {
	q.mu.Lock()
	l, ok := q.lanes.Get(ref)
	if !ok {
		q.mu.Unlock()
		return 0
	}
	cancelled := l.pending
	l.pending = nil
	l.stats.Cancelled += int64(len(cancelled))
	q.mu.Unlock()

	for _, it := range cancelled {
		q.resolveCancelled(ref, it, "cancelled by caller")
	}
	return len(cancelled)
}

func (q *Queue[T]) resolveCancelled(ref string, it *item[T], cause string) {
	res := Result{
		ID:     it.cfg.id,
		Ref:    ref,
		Status: Cancelled,
		Err:    &caerrors.CancellationError{Ref: ref, OperationID: it.cfg.id, Cause: cause},
	}
	q.config.metrics.RecordOperation(it.ctx, ref, res.Status.String(), 0, 0)
	observability.LogOperationComplete(q.config.logger, ref, it.cfg.id, res.Status.String(), 0, 0)
	it.ticket.resolve(res)
}

// Shutdown stops accepting operations, cancels everything not yet started
// and waits for running operations. If ctx ends first, running operations
// have their contexts cancelled and ctx's error is returned. Calling
// Shutdown again waits for the same operations.
func (q *Queue[T]) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	type queued struct {
		ref string
		it  *item[T]
	}
	var cancelled []queued
	q.lanes.Range(func(ref string, l *lane[T]) bool {
		for _, it := range l.pending {
			cancelled = append(cancelled, queued{ref: ref, it: it})
		}
		l.stats.Cancelled += int64(len(l.pending))
		l.pending = nil
		return true
	})
	q.mu.Unlock()

	for _, c := range cancelled {
		q.resolveCancelled(c.ref, c.it, "queue shut down")
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

// Stats returns the counters of ref. Unknown refs report zeros.
func (q *Queue[T]) Stats(ref string) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.lanes.Get(ref)
	if !ok {
		return Stats{}
	}
	return l.snapshot()
}

// AllStats returns the counters of every ref the queue has seen.
func (q *Queue[T]) AllStats() map[string]Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]Stats, q.lanes.Len())
	q.lanes.Range(func(ref string, l *lane[T]) bool {
		out[ref] = l.snapshot()
		return true
	})
	return out
}

func (l *lane[T]) snapshot() Stats {
	s := l.stats
	s.Pending = len(l.pending)
	if l.running != nil {
		s.Running = 1
	}
	return s
}

// Refs returns the refs the queue has seen, in first-use order.
func (q *Queue[T]) Refs() []string {
	return q.lanes.Keys()
}

// PendingCount returns the number of operations of ref waiting to start.
func (q *Queue[T]) PendingCount(ref string) int {
	return q.Stats(ref).Pending
}

// IsProcessing reports whether an operation of ref is running.
func (q *Queue[T]) IsProcessing(ref string) bool {
	return q.Stats(ref).Running > 0
}

// Closed reports whether Shutdown has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
