package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrArchiveClosed is returned by archive operations after Close.
var ErrArchiveClosed = errors.New("archive is closed")

// Record is an archived event with its JSON-encoded payload.
type Record struct {
	Seq       int64
	Name      string
	Data      []byte
	Timestamp time.Time
}

// Archive is an append-only audit log of bus traffic.
type Archive interface {
	// Append stores an event. Payloads must be JSON-encodable.
	Append(ctx context.Context, evt Event) error

	// List returns up to limit records for name, oldest first.
	// An empty name lists every event; limit <= 0 means no limit.
	List(ctx context.Context, name string, limit int) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases resources. It is safe to call more than once.
	Close() error
}

func encodeData(evt Event) ([]byte, error) {
	if evt.Data == nil {
		return nil, nil
	}
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", evt.Name, err)
	}
	return data, nil
}

// MemoryArchive keeps records in memory. Data is lost when the process exits.
type MemoryArchive struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

// Append implements Archive.
func (m *MemoryArchive) Append(_ context.Context, evt Event) error {
	data, err := encodeData(evt)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrArchiveClosed
	}
	m.records = append(m.records, Record{
		Seq:       int64(len(m.records) + 1),
		Name:      evt.Name,
		Data:      data,
		Timestamp: evt.Timestamp.UTC(),
	})
	return nil
}

// List implements Archive.
func (m *MemoryArchive) List(_ context.Context, name string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrArchiveClosed
	}

	var out []Record
	for _, r := range m.records {
		if name != "" && r.Name != name {
			continue
		}
		r.Data = append([]byte(nil), r.Data...)
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count implements Archive.
func (m *MemoryArchive) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrArchiveClosed
	}
	return len(m.records), nil
}

// Close implements Archive.
func (m *MemoryArchive) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}

var (
	_ Archive = (*MemoryArchive)(nil)
	_ Archive = (*SQLiteArchive)(nil)
)
