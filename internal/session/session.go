// Package session owns the per-user state of a tutoring session: its vector
// index, the corpus of ingested chunks and the conversation history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/retrieval"
)

// ErrNotFound is returned for an unknown or ended session id.
var ErrNotFound = errors.New("session not found")

// Turn is one answered question.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session holds one isolated corpus and index. Callers that mutate it must
// hold the lock returned by Lock so ingestion and answering on the same
// session run one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	op      sync.Mutex
	mu      sync.RWMutex
	index   retrieval.VectorIndex
	corpus  []document.Segment
	history []Turn
}

// Lock serializes pipeline operations on the session. The returned func
// releases it.
func (s *Session) Lock() func() {
	s.op.Lock()
	return s.op.Unlock
}

// Index returns the session's vector index.
func (s *Session) Index() retrieval.VectorIndex {
	return s.index
}

// AppendCorpus records chunks that are now searchable.
func (s *Session) AppendCorpus(chunks []document.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = append(s.corpus, chunks...)
}

// CorpusSize returns the number of chunks ingested so far.
func (s *Session) CorpusSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.corpus)
}

// Corpus returns a copy of the ingested chunks in ingestion order.
func (s *Session) Corpus() []document.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Segment, len(s.corpus))
	copy(out, s.corpus)
	return out
}

// AppendTurn adds an answered question to the history.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
}

// History returns a copy of the answered turns, oldest first.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// IndexFactory builds the vector index for a new session.
type IndexFactory func(ctx context.Context) (retrieval.VectorIndex, error)

// MemoryIndexes is an IndexFactory for in-process indexes.
func MemoryIndexes(context.Context) (retrieval.VectorIndex, error) {
	return retrieval.NewMemoryIndex(), nil
}

// SQLiteIndexes is an IndexFactory for private in-memory SQLite indexes.
func SQLiteIndexes(context.Context) (retrieval.VectorIndex, error) {
	return retrieval.OpenMemorySQLiteIndex()
}

// Manager tracks live sessions.
type Manager struct {
	newIndex IndexFactory
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager that builds indexes with newIndex. A nil
// logger uses slog.Default().
func NewManager(newIndex IndexFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		newIndex: newIndex,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start creates a session with an empty corpus and history.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	idx, err := m.newIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session index: %w", err)
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: m.now().UTC(),
		index:     idx,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session started", "session_id", s.ID)
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// End removes the session and releases its index. Its corpus and history
// are discarded.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	unlock := s.Lock()
	defer unlock()
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("closing index for session %s: %w", id, err)
	}
	m.logger.Info("session ended", "session_id", id, "chunks", s.CorpusSize(), "turns", len(s.History()))
	return nil
}

// List returns live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CloseAll ends every live session. Used on shutdown.
func (m *Manager) CloseAll() {
	for _, s := range m.List() {
		if err := m.End(s.ID); err != nil {
			m.logger.Warn("ending session", "session_id", s.ID, "error", err)
		}
	}
}
