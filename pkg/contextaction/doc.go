/*
Package contextaction provides a state management and action pipeline core
for interactive applications.

# Overview

A Runtime bundles the pieces an application needs to keep state outside its
views and change it through ordered business logic:
  - store: named reactive values with snapshot semantics and change detection
  - action: prioritized handler pipelines with abort, payload rewriting and
    sequential, parallel and race scheduling
  - event: a synchronous publish/subscribe bus with bounded history
  - refqueue: per-key serialized operations with retry and cancellation
  - compare: the equality strategies stores use to decide what changed

Nothing is global. Each Runtime owns its comparison defaults, registry, bus
and queues, so tests and independent subsystems never share state.

# Basic Usage

	rt, err := contextaction.New()
	if err != nil {
	    log.Fatal(err)
	}
	defer rt.Close(context.Background())

	counter, err := contextaction.NewStore(rt, "counter", 0)
	if err != nil {
	    log.Fatal(err)
	}
	counter.Subscribe(func() {
	    fmt.Println("counter:", counter.GetSnapshot().Value)
	})

	rt.Actions.On("increment", func(ctx context.Context, p any, ctl *action.Controller) (any, error) {
	    counter.Update(func(n int) int { return n + p.(int) })
	    return nil, nil
	})

	res := rt.Actions.Dispatch(ctx, "increment", 2)
	if err := res.Err(); err != nil {
	    log.Printf("increment: %v", err)
	}

# Configuration

FromConfig builds a Runtime from a config.Config, typically loaded from YAML:

	comparison:
	  strategy: deep
	  ignore_keys: [updatedAt]
	store:
	  notification_mode: batched
	events:
	  max_history: 200
	  archive: events.db
	actions:
	  mode: sequential
	  halt_on_error: false
	refs:
	  default_timeout: 5s
	  retry_delay: 100ms
	telemetry:
	  metrics: prometheus
	  tracing: true

Options passed alongside the config win over config values.

# Observability

Dispatches, handlers, ref operations, emissions and store notifications are
reported through observability.MetricsRecorder (OpenTelemetry or Prometheus)
and observability.SpanManager. Both default to no-ops.
*/
package contextaction
