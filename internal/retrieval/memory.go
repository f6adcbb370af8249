package retrieval

import (
	"context"
	"fmt"
	"sync"
)

var _ VectorIndex = (*MemoryIndex)(nil)

// MemoryIndex keeps records in a slice and scans all of them on Search.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []memEntry
}

type memEntry struct {
	rec  Record
	norm float32
}

// NewMemoryIndex returns an empty in-process index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Insert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dim
	batch := make([]memEntry, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %s: empty embedding", r.ID)
		}
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim {
			return fmt.Errorf("record %s: %w: got %d, want %d", r.ID, ErrDimensionMismatch, len(r.Embedding), dim)
		}
		vec := make([]float32, len(r.Embedding))
		copy(vec, r.Embedding)
		r.Embedding = vec
		batch = append(batch, memEntry{rec: r, norm: norm(vec)})
	}

	m.dim = dim
	m.entries = append(m.entries, batch...)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, k int) ([]ScoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(vector), m.dim)
	}

	qNorm := norm(vector)
	top := newTopK(k)
	for i, e := range m.entries {
		top.offer(candidate{seq: int64(i), score: cosine(vector, e.rec.Embedding, qNorm, e.norm)})
	}

	ranked := top.ranked()
	results := make([]ScoredRecord, len(ranked))
	for i, c := range ranked {
		results[i] = ScoredRecord{Record: m.entries[c.seq].rec, Score: c.score}
	}
	return results, nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close drops all records.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.dim = 0
	return nil
}
