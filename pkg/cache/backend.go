package cache

import (
	"context"
	"sync"
	"time"
)

// Backend is a byte-oriented key/value store used by PersistentCache.
type Backend interface {
	// Get returns the value stored under key. A missing key is reported
	// with ok == false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Pruner is implemented by backends that can drop entries not written since
// a cutoff.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// MemoryBackend keeps entries in process memory. It survives nothing and is
// meant for tests and the "memory" cache backend setting.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	updatedAt time.Time
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), updatedAt: m.now()}
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Prune implements Pruner.
func (m *MemoryBackend) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.updatedAt.Before(olderThan) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}
