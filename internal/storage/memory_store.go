package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Apply holds the write lock for the
// whole batch, so readers never observe a partially applied batch.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get retrieves a value by key
func (m *MemoryStore) Get(ctx context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// Set writes a single value
func (m *MemoryStore) Set(ctx context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key.String()] = cloneBytes(value)
	return nil
}

// Delete removes a key; deleting a missing key is not an error
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key.String())
	return nil
}

// Apply writes a batch atomically
func (m *MemoryStore) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		if op.Delete {
			delete(m.data, op.Key.String())
			continue
		}
		m.data[op.Key.String()] = cloneBytes(op.Value)
	}
	return nil
}

// Keys returns every stored key in sorted order
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
