package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryBackend is an in-memory Backend for tests and throwaway stores.
type MemoryBackend struct {
	mu    sync.RWMutex
	docs  map[string][]VectorRecord
	syncs int
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs: make(map[string][]VectorRecord),
	}
}

// Load implements Backend.
func (m *MemoryBackend) Load(ctx context.Context) ([]VectorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var records []VectorRecord
	for _, id := range ids {
		records = append(records, m.docs[id]...)
	}
	return records, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(ctx context.Context, docID string, records []VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docID] = slices.Clone(records)
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, docID)
	return nil
}

// Reset implements Backend.
func (m *MemoryBackend) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string][]VectorRecord)
	return nil
}

// Sync implements Backend.
func (m *MemoryBackend) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	return nil
}

// Size implements Backend.
func (m *MemoryBackend) Size() int64 {
	return 0
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// DocumentCount returns the number of stored documents.
func (m *MemoryBackend) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
