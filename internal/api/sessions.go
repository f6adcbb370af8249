package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/pipeline"
	"github.com/kalambet/texttutor/internal/session"
)

type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type IngestRequest struct {
	Text string `json:"text"`
}

type QuestionRequest struct {
	Question string `json:"question"`
	// History, when present, replaces the session history and the turn is
	// neither appended nor recorded.
	History []session.Turn `json:"history,omitempty"`
}

type QuestionResponse struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	DisplaySources []string `json:"display_sources"`
	// Warning is set when the answer was produced and added to the session
	// history but could not be written to the conversation log.
	Warning string `json:"warning,omitempty"`
}

func handleStartSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Start(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start session: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, SessionResponse{ID: s.ID, CreatedAt: s.CreatedAt})
	}
}

func handleEndSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.End(chi.URLParam(r, "id")); err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
	}
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			pipelineError(w, err)
			return
		}

		var in pipeline.Input
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
			if err := r.ParseMultipartForm(maxUploadSize); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid upload: %v", err)
				return
			}
			f, hdr, err := r.FormFile("file")
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
				return
			}
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
				return
			}
			in = pipeline.PDFInput(filepath.Base(hdr.Filename), data)
		} else {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
			var req IngestRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
			in = pipeline.TextInput(req.Text)
		}

		res, err := deps.Pipeline.Ingest(r.Context(), sess, in)
		if err != nil {
			deps.Logger.Warn("ingest failed", "session_id", sess.ID, "error", err)
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleQuestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			pipelineError(w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req QuestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var ans pipeline.Answer
		if req.History != nil {
			ans, err = deps.Pipeline.Answer(r.Context(), sess, req.Question, req.History)
		} else {
			ans, err = deps.Pipeline.Ask(r.Context(), sess, req.Question)
		}
		if errors.Is(err, conversation.ErrPersistence) {
			resp := newQuestionResponse(ans)
			resp.Warning = fmt.Sprintf("answer not recorded: %v", err)
			writeJSON(w, http.StatusOK, resp)
			return
		}
		if err != nil {
			deps.Logger.Warn("question failed", "session_id", sess.ID, "error", err)
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newQuestionResponse(ans))
	}
}

func newQuestionResponse(ans pipeline.Answer) QuestionResponse {
	display := make([]string, len(ans.Sources))
	for i, s := range ans.Sources {
		display[i] = document.FormatSource(s)
	}
	return QuestionResponse{Answer: ans.Text, Sources: ans.Sources, DisplaySources: display}
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		records, err := deps.Conversations.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list conversations: %v", err)
			return
		}
		if len(records) > limit {
			records = records[:limit]
		}
		if records == nil {
			records = []conversation.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}
