// Package api exposes tutoring sessions over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/pipeline"
	"github.com/kalambet/texttutor/internal/retrieval"
	"github.com/kalambet/texttutor/internal/session"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxUploadSize      = 20 << 20 // 20MB
)

// ConversationLister reads recorded turns, newest first.
type ConversationLister interface {
	List() ([]conversation.Record, error)
}

type Deps struct {
	Sessions      *session.Manager
	Pipeline      *pipeline.Pipeline
	Conversations ConversationLister
	Logger        *slog.Logger
}

// NewHandler returns the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Post("/sessions", handleStartSession(deps))
	r.Delete("/sessions/{id}", handleEndSession(deps))
	r.Post("/sessions/{id}/documents", handleIngest(deps))
	r.Post("/sessions/{id}/questions", handleQuestion(deps))
	r.Get("/conversations", handleListConversations(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// pipelineError maps the error kinds of a session operation to a status.
func pipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, pipeline.ErrNoCorpus):
		httpError(w, http.StatusConflict, "no_corpus", "%v", err)
	case errors.Is(err, document.ErrExtraction), errors.Is(err, pipeline.ErrEmptyQuestion):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, retrieval.ErrEmbedding):
		httpError(w, http.StatusBadGateway, "embedding_error", "%v", err)
	case errors.Is(err, pipeline.ErrGeneration):
		httpError(w, http.StatusBadGateway, "generation_error", "%v", err)
	case errors.Is(err, conversation.ErrPersistence):
		httpError(w, http.StatusInternalServerError, "persistence_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
