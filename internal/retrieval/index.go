package retrieval

import (
	"context"
	"errors"

	"github.com/kalambet/texttutor/internal/document"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// dimension already established by the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// VectorIndex stores embedded segments and answers nearest-neighbour
// queries by cosine similarity. Implementations are scoped to a single
// session and are not shared.
type VectorIndex interface {
	// Insert adds records atomically: either all of them become searchable
	// or none do. Duplicates are stored as separate entries.
	Insert(ctx context.Context, records []Record) error

	// Search returns at most k records ordered by decreasing similarity.
	// Equal scores keep insertion order. An empty index yields no results
	// and no error.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the index.
	Close() error
}

// Record is one embedded segment.
type Record struct {
	ID        string
	Segment   document.Segment
	Embedding []float32
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
