/*
Package action runs named actions through a priority-ordered handler pipeline.

Handlers register per action name with an optional priority (higher runs
first, ties keep registration order). Registration returns an Unregister
func that callers defer, so a handler never outlives the component that
installed it:

	reg := action.NewRegister()
	defer reg.On("checkout", validate, action.WithPriority(100))()
	defer reg.On("checkout", charge, action.WithPriority(10), action.HaltOnError())()

	res := reg.Dispatch(ctx, "checkout", order)
	if err := res.Err(); err != nil {
	    return err
	}

# Controller

Every handler receives a *Controller scoped to one dispatch. Abort stops the
pipeline and marks the result Aborted. ModifyPayload changes what later
handlers receive. SetResult adds to the collected results. Next lets a
sequential pipeline move on while the handler keeps working.

# Execution modes

Sequential (the default) runs handlers one at a time. Each handler runs on
its own goroutine and the pipeline advances when it returns or calls Next.
Context cancellation between handlers aborts the dispatch.

Parallel starts all handlers together, each with its own view of the
payload, and waits for all of them. An Abort in parallel mode only drops
that handler's contributions.

Race starts all handlers and adopts the first one to return. The others keep
running but their results are discarded, and the returned Result never
changes afterwards.

# Errors

A failing or panicking handler is recorded as a HandlerError in
Result.Errors and, by default, the pipeline continues. The HaltOnError
handler option turns a failure into status Errored; WithDefaultHaltOnError
and WithHaltOnError set the same policy for a whole register or dispatch.

Typed actions declared with Define get compile-time payload checking
through Handle and Send.
*/
package action
