package store

import (
	"context"
	"sync"

	"sjsage522/hotdealmatcher/internal/crawler"
)

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	watermarks map[string]crawler.Watermark
	rows       []crawler.ResultRow
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watermarks: make(map[string]crawler.Watermark),
	}
}

func (m *MemoryStore) LoadWatermark(ctx context.Context, source string) (crawler.Watermark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks[source], nil
}

func (m *MemoryStore) SaveWatermark(ctx context.Context, source string, wm crawler.Watermark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarks[source] = wm
	return nil
}

func (m *MemoryStore) AppendRows(ctx context.Context, rows []crawler.ResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}

// Rows returns a copy of the appended rows.
func (m *MemoryStore) Rows() []crawler.ResultRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]crawler.ResultRow, len(m.rows))
	copy(out, m.rows)
	return out
}

func (m *MemoryStore) Close() error {
	return nil
}
