package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps history in process memory. It is lost on restart.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string][]Turn)}
}

// Ensure registers id.
func (m *MemoryBackend) Ensure(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		m.sessions[id] = nil
	}
	return nil
}

// Append stores t as the newest turn of id.
func (m *MemoryBackend) Append(_ context.Context, id string, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = append(m.sessions[id], t)
	return nil
}

// Recent returns a copy of the k newest turns of id, oldest-first.
func (m *MemoryBackend) Recent(_ context.Context, id string, k int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.sessions[id]
	if k >= 0 && len(turns) > k {
		turns = turns[len(turns)-k:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// IDs returns every known session id.
func (m *MemoryBackend) IDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error { return nil }
