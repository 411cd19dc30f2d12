package action

import "sync"

// pipeline is the state a controller writes to. Sequential dispatches share
// one pipeline across handlers; parallel and race dispatches give each
// handler its own and merge them afterwards.
type pipeline struct {
	mu          sync.Mutex
	payload     any
	results     []any
	aborted     bool
	abortReason string
	abortedBy   string
	sealed      bool
}

func newPipeline(payload any) *pipeline {
	return &pipeline{payload: payload}
}

func (p *pipeline) currentPayload() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payload
}

func (p *pipeline) addResult(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.sealed {
		p.results = append(p.results, v)
	}
}

func (p *pipeline) abort(reason, by string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed || p.aborted {
		return
	}
	p.aborted = true
	p.abortReason = reason
	p.abortedBy = by
}

func (p *pipeline) isAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

// seal freezes the pipeline. Later writes from handlers still running in
// the background are ignored.
func (p *pipeline) seal() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true
	return append([]any(nil), p.results...)
}

// Controller is the per-handler view of a running dispatch.
type Controller struct {
	action     string
	dispatchID string
	handlerID  string
	p          *pipeline

	nextOnce  sync.Once
	next      chan struct{}
	abortOnce sync.Once
	aborted   chan struct{}
}

func newController(action, dispatchID, handlerID string, p *pipeline) *Controller {
	return &Controller{
		action:     action,
		dispatchID: dispatchID,
		handlerID:  handlerID,
		p:          p,
		next:       make(chan struct{}),
		aborted:    make(chan struct{}),
	}
}

// Action returns the dispatched action name.
func (c *Controller) Action() string { return c.action }

// DispatchID returns the ID of the dispatch this controller belongs to.
func (c *Controller) DispatchID() string { return c.dispatchID }

// HandlerID returns the ID of the handler holding this controller.
func (c *Controller) HandlerID() string { return c.handlerID }

// Next lets a sequential pipeline advance before this handler returns.
// The handler keeps running; its return value is then discarded.
func (c *Controller) Next() {
	c.nextOnce.Do(func() { close(c.next) })
}

// Abort stops the pipeline. In sequential mode no further handler starts.
// In parallel mode only this handler's contributions are dropped.
func (c *Controller) Abort(reason string) {
	c.p.abort(reason, c.handlerID)
	c.abortOnce.Do(func() { close(c.aborted) })
}

// Aborted reports whether the pipeline this controller writes to was aborted.
func (c *Controller) Aborted() bool { return c.p.isAborted() }

// Payload returns the payload as currently seen by this handler.
func (c *Controller) Payload() any { return c.p.currentPayload() }

// ModifyPayload replaces the payload seen by handlers that start after
// this call. Handlers already running are unaffected.
func (c *Controller) ModifyPayload(fn func(payload any) any) {
	cur := c.p.currentPayload()
	next := fn(cur)

	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if !c.p.sealed {
		c.p.payload = next
	}
}

// SetResult appends v to the dispatch results.
func (c *Controller) SetResult(v any) { c.p.addResult(v) }

// Results returns the contributions recorded so far on this pipeline.
func (c *Controller) Results() []any {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return append([]any(nil), c.p.results...)
}
