package rag

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/54b3r/docchat/internal/fault"
)

// MemoryStore is an in-process VectorStore using exact cosine similarity.
// It backs local development (INDEX_BACKEND=memory) and tests; contents are
// lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	order   []string
	records map[string]memoryPoint
}

type memoryPoint struct {
	rec Record
	vec []float32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryPoint)}
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Dimension returns the vector dimension fixed by the first write or Reset,
// or 0.
func (m *MemoryStore) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// Upsert stores records, replacing any with the same ID.
func (m *MemoryStore) Upsert(_ context.Context, records []Record, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fault.New(fault.KindIndexWriteFailure, "memory.upsert",
			fmt.Sprintf("%d records but %d embeddings", len(records), len(embeddings)))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, vec := range embeddings {
		want := m.dim
		if want == 0 {
			want = len(embeddings[0])
		}
		if len(vec) == 0 || len(vec) != want {
			return fault.New(fault.KindIndexWriteFailure, "memory.upsert",
				fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(vec), want))
		}
	}
	for i, rec := range records {
		if m.dim == 0 {
			m.dim = len(embeddings[i])
		}
		if _, ok := m.records[rec.ID]; !ok {
			m.order = append(m.order, rec.ID)
		}
		rec.Score = 0
		m.records[rec.ID] = memoryPoint{rec: rec, vec: append([]float32(nil), embeddings[i]...)}
	}
	return nil
}

// Search returns the topK most similar records.
func (m *MemoryStore) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Record, error) {
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, id := range m.order {
		p, ok := m.records[id]
		if !ok {
			continue
		}
		rec := p.rec
		rec.Score = cosine(queryEmbedding, p.vec)
		out = append(out, rec)
	}
	SortByScore(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Reset empties the store and fixes its dimension.
func (m *MemoryStore) Reset(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fault.New(fault.KindIndexWriteFailure, "memory.reset",
			fmt.Sprintf("invalid vector dimension %d", dimension))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dim = dimension
	m.order = nil
	m.records = make(map[string]memoryPoint)
	return nil
}

// DeleteSource removes every record from source.
func (m *MemoryStore) DeleteSource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, id := range m.order {
		if m.records[id].rec.Source == source {
			delete(m.records, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of a and b, or 0 when either is zero
// or their lengths differ.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
