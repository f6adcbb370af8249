package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/storage"
)

var _ VectorIndex = (*SQLiteIndex)(nil)

// SQLiteIndex stores vectors in the segment_vectors table and performs a
// brute-force cosine scan on Search.
type SQLiteIndex struct {
	store *storage.Store
	db    *sql.DB
}

// NewSQLiteIndex wraps an opened store. The index takes ownership and
// closes the store on Close.
func NewSQLiteIndex(store *storage.Store) *SQLiteIndex {
	return &SQLiteIndex{store: store, db: store.DB()}
}

// OpenMemorySQLiteIndex returns an index over a private in-memory database.
func OpenMemorySQLiteIndex() (*SQLiteIndex, error) {
	st, err := storage.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return NewSQLiteIndex(st), nil
}

// Insert writes all records in one transaction.
func (s *SQLiteIndex) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	dim, err := dimension(ctx, tx)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segment_vectors (id, text, metadata, embedding, dim, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
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
		meta, err := json.Marshal(r.Segment.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Segment.Text, string(meta), encodeFloat32s(r.Embedding), len(r.Embedding), now); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

func dimension(ctx context.Context, tx *sql.Tx) (int, error) {
	var dim int
	err := tx.QueryRowContext(ctx, `SELECT dim FROM segment_vectors LIMIT 1`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index dimension: %w", err)
	}
	return dim, nil
}

// Search scans only seq and embedding to pick the top-k, then loads the
// full rows for the winners.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredRecord, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT seq, embedding FROM segment_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	qNorm := norm(vector)
	top := newTopK(k)
	var buf []float32
	for rows.Next() {
		var seq int64
		var blob []byte
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding %d: %w", seq, err)
		}
		if len(buf) != len(vector) {
			return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(vector), len(buf))
		}
		top.offer(candidate{seq: seq, score: cosine(vector, buf, qNorm, norm(buf))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	ranked := top.ranked()
	if len(ranked) == 0 {
		return nil, nil
	}

	args := make([]any, len(ranked))
	for i, c := range ranked {
		args[i] = c.seq
	}
	full, err := s.db.QueryContext(ctx, `SELECT seq, id, text, metadata, embedding
		FROM segment_vectors WHERE seq IN (?`+strings.Repeat(",?", len(ranked)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-k records: %w", err)
	}
	defer full.Close()

	bySeq := make(map[int64]Record, len(ranked))
	for full.Next() {
		var (
			seq  int64
			r    Record
			text string
			meta string
			blob []byte
		)
		if err := full.Scan(&seq, &r.ID, &text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning full record: %w", err)
		}
		var md map[string]string
		if err := json.Unmarshal([]byte(meta), &md); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
		}
		r.Segment = document.NewSegment(text, md)
		if r.Embedding, err = decodeFloat32sInto(nil, blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		bySeq[seq] = r
	}
	if err := full.Err(); err != nil {
		return nil, fmt.Errorf("iterating full records: %w", err)
	}

	// IN does not preserve order; rebuild it from the ranking.
	results := make([]ScoredRecord, 0, len(ranked))
	for _, c := range ranked {
		if r, ok := bySeq[c.seq]; ok {
			results = append(results, ScoredRecord{Record: r, Score: c.score})
		}
	}
	return results, nil
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segment_vectors").Scan(&count)
	return count, err
}

func (s *SQLiteIndex) Close() error {
	return s.store.Close()
}
