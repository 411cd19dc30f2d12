package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/contextaction/pkg/contextaction/event"
	"github.com/randalmurphal/contextaction/pkg/contextaction/refqueue"
)

// BenchmarkEmit_10Handlers fans one event out to ten handlers.
func BenchmarkEmit_10Handlers(b *testing.B) {
	bus := event.NewBus(event.BusConfig{})
	for i := 0; i < 10; i++ {
		bus.On("tick", event.HandlerFunc(func(event.Event) {}))
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Emit(ctx, "tick", i)
	}
}

// BenchmarkEmit_MemoryArchive emits into an in-memory archive.
func BenchmarkEmit_MemoryArchive(b *testing.B) {
	bus := event.NewBus(event.BusConfig{Archive: event.NewMemoryArchive()})
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Emit(ctx, "tick", i)
	}
}

// BenchmarkRefQueue_Enqueue runs operations one at a time on a single ref.
func BenchmarkRefQueue_Enqueue(b *testing.B) {
	q := refqueue.New[int]()
	defer q.Shutdown(context.Background())
	op := func(_ context.Context, n int) (any, error) { return n, nil }
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = q.Enqueue(ctx, "ref", i, op)
	}
}
