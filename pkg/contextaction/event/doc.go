// Package event provides a synchronous publish/subscribe bus keyed by event
// name, for signaling between stores outside the action pipeline.
//
// Emit fans out to the handlers subscribed when the call starts, in
// subscription order, then records the event in a bounded history ring
// (oldest evicted first). Handlers that return errors or panic are reported
// to BusConfig.OnError and logged; the remaining handlers still run and the
// emitter never sees the failure.
//
//	bus := event.NewBus(event.BusConfig{MaxHistorySize: 50})
//	sub := bus.On("cart:updated", func(ctx context.Context, evt event.Event) error {
//	    return refreshTotals(ctx, evt.Data)
//	})
//	defer sub.Unsubscribe()
//
//	bus.Emit(ctx, "cart:updated", cart)
//
// Once subscriptions are removed before their handler runs. Scope returns a
// prefixed view sharing the same handlers and history, so
// bus.Scope("cart").Emit(ctx, "updated", x) reaches handlers of "cart:updated".
//
// An optional Archive receives every event after fan-out. MemoryArchive and
// SQLiteArchive (modernc.org/sqlite, no cgo) store JSON-encoded payloads.
// The archive is an audit trail of bus traffic; store state is never persisted.
package event
