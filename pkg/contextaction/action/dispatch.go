package action

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
	"github.com/randalmurphal/contextaction/pkg/contextaction/observability"
)

type outcome struct {
	value any
	err   error
}

// run starts one handler on its own goroutine. The returned channel
// receives exactly one outcome; panics become PanicErrors.
func (r *Register) run(ctx context.Context, e *entry, payload any, ctl *Controller) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		hctx, span := r.config.spans.StartHandlerSpan(ctx, e.action, e.cfg.id, e.cfg.priority)
		start := time.Now()

		var o outcome
		defer func() {
			if rec := recover(); rec != nil {
				o = outcome{err: &caerrors.PanicError{
					Where: "handler " + e.cfg.id,
					Value: rec,
					Stack: string(debug.Stack()),
				}}
			}
			elapsed := time.Since(start)
			r.config.spans.EndSpanWithError(span, o.err)
			r.config.metrics.RecordHandler(ctx, e.action, elapsed, o.err)
			if logger := observability.EnrichLogger(r.config.logger, e.action, ctl.DispatchID(), e.cfg.id); logger != nil {
				logger.Debug("handler finished",
					slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
					slog.Bool("failed", o.err != nil),
				)
			}
			ch <- o
		}()

		o.value, o.err = e.fn(hctx, payload, ctl)
	}()
	return ch
}

// claim applies the condition and once rules. It reports whether the
// handler should run for payload.
func (r *Register) claim(e *entry, payload any) bool {
	if e.removed.Load() && e.cfg.once {
		return false
	}
	if e.cfg.condition != nil && !e.cfg.condition(payload) {
		return false
	}
	if e.cfg.once {
		if !e.fired.CompareAndSwap(false, true) {
			return false
		}
		r.remove(e)
	}
	return true
}

func (r *Register) handlerError(e *entry, err error) *caerrors.HandlerError {
	return &caerrors.HandlerError{
		Action:    e.action,
		HandlerID: e.cfg.id,
		Priority:  e.cfg.priority,
		Err:       err,
	}
}

// Dispatch runs payload through the handlers registered for action when the
// call starts. It blocks until the pipeline finishes; the returned Result
// is never changed afterwards, even by handlers still running.
func (r *Register) Dispatch(ctx context.Context, action string, payload any, opts ...DispatchOption) Result {
	cfg := dispatchConfig{mode: r.config.mode, haltOnError: r.config.haltOnError}
	for _, opt := range opts {
		opt(&cfg)
	}

	dispatchID := uuid.New().String()
	entries := r.snapshot(action)

	ctx, span := r.config.spans.StartDispatchSpan(ctx, action, dispatchID, cfg.mode.String())
	observability.LogDispatchStart(r.config.logger, action, dispatchID, cfg.mode.String(), len(entries))
	elapsed := observability.TimedOperation()
	start := time.Now()

	res := Result{
		Action:     action,
		DispatchID: dispatchID,
		Mode:       cfg.mode,
		Status:     Running,
	}

	switch cfg.mode {
	case Parallel:
		r.dispatchParallel(ctx, entries, payload, cfg, &res)
	case Race:
		r.dispatchRace(ctx, entries, payload, cfg, &res)
	default:
		r.dispatchSequential(ctx, entries, payload, cfg, &res)
	}

	if res.Status == Running {
		res.Status = Completed
	}
	res.Duration = time.Since(start)

	if res.Aborted {
		observability.LogAbort(r.config.logger, action, res.AbortedBy, res.AbortReason)
	}
	observability.LogDispatchComplete(r.config.logger, action, dispatchID, res.Status.String(), elapsed(), len(res.Errors))
	r.config.metrics.RecordDispatch(ctx, action, cfg.mode.String(), res.Status.String(), res.Duration)
	r.config.spans.EndSpanWithError(span, res.Err())
	r.recordStats(res)
	return res
}

func (r *Register) logDetached(e *entry, ch <-chan outcome) {
	go func() {
		if o := <-ch; o.err != nil {
			observability.LogHandlerError(r.config.logger, e.action, e.cfg.id, o.err)
		}
	}()
}

func (r *Register) dispatchSequential(ctx context.Context, entries []*entry, payload any, cfg dispatchConfig, res *Result) {
	p := newPipeline(payload)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			p.abort(err.Error(), "")
			break
		}

		current := p.currentPayload()
		if !r.claim(e, current) {
			res.Skipped++
			continue
		}

		ctl := newController(res.Action, res.DispatchID, e.cfg.id, p)
		done := r.run(ctx, e, current, ctl)
		res.Executed++

		if e.cfg.nonBlocking {
			r.logDetached(e, done)
			continue
		}

		select {
		case o := <-done:
			r.record(e, o, cfg, p, res)
		case <-ctl.next:
			r.settleOrDetach(e, done, cfg, p, res)
		case <-ctl.aborted:
			r.settleOrDetach(e, done, cfg, p, res)
		case <-ctx.Done():
			p.abort(ctx.Err().Error(), "")
			r.logDetached(e, done)
		}

		if res.Status == Errored || p.isAborted() {
			break
		}
	}

	res.Results = p.seal()
	r.applyAbort(p, res)
}

// record stores a sequential handler's outcome in the pipeline and result.
func (r *Register) record(e *entry, o outcome, cfg dispatchConfig, p *pipeline, res *Result) {
	if o.err != nil {
		res.Errors = append(res.Errors, r.handlerError(e, o.err))
		observability.LogHandlerError(r.config.logger, e.action, e.cfg.id, o.err)
		if e.cfg.haltOnError || cfg.haltOnError {
			res.Status = Errored
		}
	}
	if o.value != nil {
		p.addResult(o.value)
	}
}

// settleOrDetach records the outcome of a handler that called Next or Abort
// if it has already returned, and detaches it otherwise.
func (r *Register) settleOrDetach(e *entry, done <-chan outcome, cfg dispatchConfig, p *pipeline, res *Result) {
	select {
	case o := <-done:
		r.record(e, o, cfg, p, res)
	default:
		r.logDetached(e, done)
	}
}

func (r *Register) applyAbort(p *pipeline, res *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted {
		res.Aborted = true
		res.AbortReason = p.abortReason
		res.AbortedBy = p.abortedBy
		res.Status = Aborted
	}
}

type started struct {
	e    *entry
	p    *pipeline
	done <-chan outcome
}

// start launches every eligible handler with its own pipeline over the
// same payload.
func (r *Register) start(ctx context.Context, entries []*entry, payload any, res *Result) []started {
	var runs []started
	for _, e := range entries {
		if !r.claim(e, payload) {
			res.Skipped++
			continue
		}
		p := newPipeline(payload)
		ctl := newController(res.Action, res.DispatchID, e.cfg.id, p)
		done := r.run(ctx, e, payload, ctl)
		res.Executed++
		if e.cfg.nonBlocking {
			r.logDetached(e, done)
			p.seal()
			continue
		}
		runs = append(runs, started{e: e, p: p, done: done})
	}
	return runs
}

func (r *Register) dispatchParallel(ctx context.Context, entries []*entry, payload any, cfg dispatchConfig, res *Result) {
	runs := r.start(ctx, entries, payload, res)

	outcomes := make([]outcome, len(runs))
	waited := 0
wait:
	for i, run := range runs {
		select {
		case outcomes[i] = <-run.done:
			waited++
		case <-ctx.Done():
			res.Aborted = true
			res.AbortReason = ctx.Err().Error()
			res.Status = Aborted
			for _, rest := range runs[i:] {
				rest.p.seal()
				res.Discarded = append(res.Discarded, rest.e.cfg.id)
				r.logDetached(rest.e, rest.done)
			}
			break wait
		}
	}
	runs = runs[:waited]

	// Merge in priority order so results are deterministic.
	for i, run := range runs {
		o := outcomes[i]
		if o.err != nil {
			res.Errors = append(res.Errors, r.handlerError(run.e, o.err))
			observability.LogHandlerError(r.config.logger, run.e.action, run.e.cfg.id, o.err)
			if (run.e.cfg.haltOnError || cfg.haltOnError) && res.Status == Running {
				res.Status = Errored
			}
		}
		if o.value != nil {
			run.p.addResult(o.value)
		}
		contributions := run.p.seal()
		if run.p.isAborted() {
			res.Discarded = append(res.Discarded, run.e.cfg.id)
			continue
		}
		res.Results = append(res.Results, contributions...)
	}
}

func (r *Register) dispatchRace(ctx context.Context, entries []*entry, payload any, cfg dispatchConfig, res *Result) {
	runs := r.start(ctx, entries, payload, res)
	if len(runs) == 0 {
		return
	}

	type settled struct {
		idx int
		o   outcome
	}
	first := make(chan settled, len(runs))
	for i, run := range runs {
		go func(i int, done <-chan outcome) {
			first <- settled{idx: i, o: <-done}
		}(i, run.done)
	}

	var winner settled
	select {
	case winner = <-first:
	case <-ctx.Done():
		res.Aborted = true
		res.AbortReason = ctx.Err().Error()
		res.Status = Aborted
		for _, run := range runs {
			run.p.seal()
			res.Discarded = append(res.Discarded, run.e.cfg.id)
		}
		return
	}

	for i, run := range runs {
		if i != winner.idx {
			run.p.seal()
			res.Discarded = append(res.Discarded, run.e.cfg.id)
		}
	}

	w := runs[winner.idx]
	if winner.o.err != nil {
		res.Errors = append(res.Errors, r.handlerError(w.e, winner.o.err))
		observability.LogHandlerError(r.config.logger, w.e.action, w.e.cfg.id, winner.o.err)
		if w.e.cfg.haltOnError || cfg.haltOnError {
			res.Status = Errored
		}
	}
	if winner.o.value != nil {
		w.p.addResult(winner.o.value)
	}
	res.Results = w.p.seal()
	r.applyAbort(w.p, res)
}
