package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/contextaction/pkg/contextaction"
	"github.com/randalmurphal/contextaction/pkg/contextaction/action"
	"github.com/randalmurphal/contextaction/pkg/contextaction/refqueue"
)

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	var raceDelay time.Duration

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a short scripted session against a runtime",
		Long: `Build a runtime from --config (or defaults) and walk through the core:
a counter store updated by a prioritized action pipeline, parallel and
race dispatches, a serialized ref queue and the event history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr(), raceDelay)
		},
	}
	cmd.Flags().DurationVar(&raceDelay, "race-delay", 20*time.Millisecond, "head start of the fast handler in the race dispatch")
	return cmd
}

func runDemo(ctx context.Context, opts *RootOptions, out, errOut io.Writer, raceDelay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	rt, err := contextaction.FromConfig(cfg, contextaction.WithLogger(opts.logger(errOut)))
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close(context.Background())

	fmt.Fprintln(out, "== store")
	counter, err := contextaction.NewStore(rt, "counter", 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "counter=%d\n", counter.GetValue())

	fmt.Fprintln(out, "== sequential pipeline")
	rt.Actions.On("increment", func(_ context.Context, p any, ctl *action.Controller) (any, error) {
		n, ok := p.(int)
		if !ok || n <= 0 {
			ctl.Abort(fmt.Sprintf("invalid increment %v", p))
		}
		return nil, nil
	}, action.WithPriority(100), action.WithID("validate"))
	rt.Actions.On("increment", func(ctx context.Context, p any, _ *action.Controller) (any, error) {
		counter.Update(func(n int) int { return n + p.(int) })
		next := counter.GetValue()
		rt.Events.Emit(ctx, "counter:changed", next)
		return next, nil
	}, action.WithID("apply"))

	for _, amount := range []int{2, 3, -1} {
		res := rt.Actions.Dispatch(ctx, "increment", amount, action.WithMode(action.Sequential))
		printResult(out, fmt.Sprintf("increment(%d)", amount), res)
	}
	fmt.Fprintf(out, "counter=%d\n", counter.GetValue())

	fmt.Fprintln(out, "== parallel dispatch")
	for _, source := range []string{"cache", "db"} {
		rt.Actions.On("lookup", func(context.Context, any, *action.Controller) (any, error) {
			return source, nil
		}, action.WithID(source))
	}
	printResult(out, "lookup", rt.Actions.Dispatch(ctx, "lookup", "user:1", action.WithMode(action.Parallel)))

	fmt.Fprintln(out, "== race dispatch")
	for i, mirror := range []string{"slow-mirror", "fast-mirror"} {
		delay := raceDelay * time.Duration(2-i)
		rt.Actions.On("fetch", func(ctx context.Context, _ any, _ *action.Controller) (any, error) {
			select {
			case <-time.After(delay):
				return mirror, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}, action.WithID(mirror))
	}
	printResult(out, "fetch", rt.Actions.Dispatch(ctx, "fetch", nil, action.WithMode(action.Race)))

	fmt.Fprintln(out, "== ref queue")
	if err := demoRefQueue(ctx, rt, out); err != nil {
		return err
	}

	fmt.Fprintln(out, "== events")
	for _, evt := range rt.Events.History() {
		fmt.Fprintf(out, "%s %v\n", evt.Name, evt.Data)
	}
	if archive := rt.Archive(); archive != nil {
		n, err := archive.Count(ctx)
		if err != nil {
			return fmt.Errorf("count archived events: %w", err)
		}
		fmt.Fprintf(out, "archived=%d\n", n)
	}
	return nil
}

func printResult(out io.Writer, label string, res action.Result) {
	fmt.Fprintf(out, "%s: status=%s results=%v", label, res.Status, res.Results)
	if res.Aborted {
		fmt.Fprintf(out, " abort=%q by=%s", res.AbortReason, res.AbortedBy)
	}
	if len(res.Discarded) > 0 {
		fmt.Fprintf(out, " discarded=%v", res.Discarded)
	}
	fmt.Fprintln(out)
}

// demoRefQueue holds the "chart" lane busy, queues three redraws behind it
// and cancels a fourth lane, printing the order the redraws ran in.
func demoRefQueue(ctx context.Context, rt *contextaction.Runtime, out io.Writer) error {
	var (
		mu    sync.Mutex
		order []string
	)
	redraw := func(name string) refqueue.Operation[any] {
		return func(context.Context, any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	release := make(chan struct{})
	head, err := rt.Refs.Submit("chart", "chart-1", func(context.Context, any) (any, error) {
		<-release
		return "layout", nil
	})
	if err != nil {
		return err
	}

	var tickets []*refqueue.Ticket
	for _, op := range []struct {
		name     string
		priority int
	}{{"axes", 1}, {"series", 5}, {"legend", 1}} {
		t, err := rt.Refs.Submit("chart", "chart-1", redraw(op.name), refqueue.WithPriority(op.priority))
		if err != nil {
			return err
		}
		tickets = append(tickets, t)
	}

	blocked := make(chan struct{})
	defer close(blocked)
	if _, err := rt.Refs.Submit("table", "table-1", func(context.Context, any) (any, error) {
		<-blocked
		return nil, nil
	}); err != nil {
		return err
	}
	stale, err := rt.Refs.Submit("table", "table-1", redraw("table"))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "chart pending=%d table cancelled=%d\n", rt.Refs.PendingCount("chart"), rt.Refs.Cancel("table"))

	close(release)
	if _, err := head.Wait(ctx); err != nil {
		return err
	}
	for _, t := range tickets {
		if _, err := t.Wait(ctx); err != nil {
			return err
		}
	}
	res, err := stale.Wait(ctx)
	if err != nil {
		return err
	}

	mu.Lock()
	fmt.Fprintf(out, "chart order=%v table=%s\n", order, res.Status)
	mu.Unlock()
	return nil
}
