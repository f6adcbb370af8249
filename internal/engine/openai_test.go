package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
)

func newTestOpenAI(t *testing.T, h http.HandlerFunc) *OpenAIEngine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAIEngine("sk-test", srv.URL, option.WithMaxRetries(0))
}

func TestOpenAIEngine_Chat(t *testing.T) {
	var captured map[string]any
	e := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-test")
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Forty-two."}}]
		}`))
	})

	got, err := e.Chat(context.Background(), "gpt-3.5-turbo", []Message{
		{Role: RoleSystem, Content: "Use the context."},
		{Role: RoleUser, Content: "What is the answer?"},
	}, ChatOptions{Temperature: 0.7, MaxTokens: 1000})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "Forty-two." {
		t.Errorf("Chat = %q, want %q", got, "Forty-two.")
	}

	if captured["model"] != "gpt-3.5-turbo" {
		t.Errorf("model = %v, want gpt-3.5-turbo", captured["model"])
	}
	if captured["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", captured["temperature"])
	}
	if captured["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v, want 1000", captured["max_tokens"])
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("messages[0].role = %v, want system", role)
	}
}

func TestOpenAIEngine_ChatError(t *testing.T) {
	e := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})

	if _, err := e.Chat(context.Background(), "gpt-3.5-turbo", []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestOpenAIEngine_Embed(t *testing.T) {
	e := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["input"] != "hello world" {
			t.Errorf("input = %v, want %q", body["input"], "hello world")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.5, -0.25, 1]}],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	})

	vec, err := e.Embed(context.Background(), "text-embedding-3-small", "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	want := []float32{0.5, -0.25, 1}
	if len(vec) != len(want) {
		t.Fatalf("got %d floats, want %d", len(vec), len(want))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}
