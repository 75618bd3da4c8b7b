package persist

import (
	"context"
	"sync"
)

// MemoryPersister keeps the latest snapshot of each store in memory. It
// backs storage.backend "memory" and is handy in tests.
type MemoryPersister struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	writes    map[string]int
}

// NewMemoryPersister creates an empty persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		snapshots: make(map[string][]byte),
		writes:    make(map[string]int),
	}
}

// Name implements Persister.
func (*MemoryPersister) Name() string { return "memory" }

// OnChange implements Persister.
func (m *MemoryPersister) OnChange(_ context.Context, store string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[store] = append([]byte(nil), snapshot...)
	m.writes[store]++
	return nil
}

// Load implements Persister.
func (m *MemoryPersister) Load(_ context.Context, store string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snapshots[store]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Writes returns how many snapshots of store have been received.
func (m *MemoryPersister) Writes(store string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[store]
}
