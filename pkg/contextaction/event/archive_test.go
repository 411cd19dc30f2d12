package event_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/contextaction/pkg/contextaction/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archives(t *testing.T) map[string]event.Archive {
	t.Helper()
	sqlite, err := event.NewSQLiteArchive(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]event.Archive{
		"memory": event.NewMemoryArchive(),
		"sqlite": sqlite,
	}
}

func TestArchive_AppendAndList(t *testing.T) {
	for name, archive := range archives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

			require.NoError(t, archive.Append(ctx, event.Event{Name: "a", Data: 1, Timestamp: ts}))
			require.NoError(t, archive.Append(ctx, event.Event{Name: "b", Data: "two", Timestamp: ts}))
			require.NoError(t, archive.Append(ctx, event.Event{Name: "a", Data: []int{3}, Timestamp: ts}))
			require.NoError(t, archive.Append(ctx, event.Event{Name: "a", Timestamp: ts}))

			all, err := archive.List(ctx, "", 0)
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, "b", all[1].Name)
			assert.Equal(t, `"two"`, string(all[1].Data))
			assert.True(t, all[0].Seq < all[1].Seq)
			assert.True(t, ts.Equal(all[0].Timestamp))
			assert.Empty(t, all[3].Data)

			onlyA, err := archive.List(ctx, "a", 2)
			require.NoError(t, err)
			require.Len(t, onlyA, 2)
			assert.Equal(t, "1", string(onlyA[0].Data))
			assert.Equal(t, "[3]", string(onlyA[1].Data))

			n, err := archive.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
		})
	}
}

func TestArchive_RejectsUnencodablePayload(t *testing.T) {
	for name, archive := range archives(t) {
		t.Run(name, func(t *testing.T) {
			err := archive.Append(context.Background(), event.Event{Name: "bad", Data: make(chan int)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "encode bad payload")
		})
	}
}

func TestArchive_Closed(t *testing.T) {
	for name, archive := range archives(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, archive.Close())
			require.NoError(t, archive.Close())

			ctx := context.Background()
			assert.ErrorIs(t, archive.Append(ctx, event.Event{Name: "x"}), event.ErrArchiveClosed)
			_, err := archive.List(ctx, "", 0)
			assert.ErrorIs(t, err, event.ErrArchiveClosed)
			_, err = archive.Count(ctx)
			assert.ErrorIs(t, err, event.ErrArchiveClosed)
		})
	}
}

func TestSQLiteArchive_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	first, err := event.NewSQLiteArchive(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), event.Event{Name: "saved", Data: 1, Timestamp: time.Now()}))
	require.NoError(t, first.Close())

	second, err := event.NewSQLiteArchive(path)
	require.NoError(t, err)
	defer second.Close()

	records, err := second.List(context.Background(), "saved", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", string(records[0].Data))
}

func TestSQLiteArchive_InvalidPath(t *testing.T) {
	_, err := event.NewSQLiteArchive("/nonexistent/path/events.db")
	assert.Error(t, err)
}

func TestSQLiteArchive_ConcurrentEmit(t *testing.T) {
	archive, err := event.NewSQLiteArchive(":memory:")
	require.NoError(t, err)
	defer archive.Close()

	bus := event.NewBus(event.BusConfig{Archive: archive})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bus.Emit(context.Background(), "tick", i)
		}(i)
	}
	wg.Wait()

	n, err := archive.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
