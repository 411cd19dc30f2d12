// Package refqueue serializes operations per key.
//
// A Queue keeps one lane per ref name. At most one operation runs per lane
// at a time; waiting operations start in descending priority order, FIFO
// among equal priorities. Different refs are processed independently and
// concurrently.
//
// # Basic Usage
//
//	q := refqueue.New[*Widget]()
//	defer q.Shutdown(context.Background())
//
//	res, err := q.Enqueue(ctx, "chart", w, func(ctx context.Context, w *Widget) (any, error) {
//	    return nil, w.Redraw(ctx)
//	}, refqueue.WithPriority(5), refqueue.WithRetry(2))
//
// Enqueue blocks until the operation is resolved. Submit returns a Ticket
// immediately for callers that must not block.
//
// # Cancellation
//
// Cancel resolves every operation of a ref that has not started yet with
// status Cancelled and a CancellationError in Result.Err. The running
// operation is not interrupted. Cancellation is a result, not a failure:
// Enqueue reports it with a nil error.
//
// # Retries and Timeouts
//
// Failed operations are retried with a fixed delay between attempts. A
// timeout applies to each attempt; on expiry the attempt fails with a
// TimeoutError, its context is cancelled and the lane moves on.
package refqueue
