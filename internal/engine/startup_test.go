package engine

import (
	"context"
	"io"
	"testing"
)

type mockEngine struct {
	isRunning bool
}

func (m *mockEngine) Chat(_ context.Context, _ string, _ []Message, _ ChatOptions) (string, error) {
	return "", nil
}
func (m *mockEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }

type mockLocalEngine struct {
	mockEngine
	models map[string]bool
	pulled []string
}

func (m *mockLocalEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockLocalEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockLocalEngine{
		mockEngine: mockEngine{isRunning: true},
		models:     map[string]bool{"llama3.2": true, "nomic-embed-text": true},
	}
	if err := EnsureReady(context.Background(), m, "llama3.2", "nomic-embed-text", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockLocalEngine{
		mockEngine: mockEngine{isRunning: true},
		models:     map[string]bool{"llama3.2": true},
	}
	if err := EnsureReady(context.Background(), m, "llama3.2", "nomic-embed-text", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "nomic-embed-text" {
		t.Errorf("expected pull of nomic-embed-text, got %v", m.pulled)
	}
}

func TestEnsureReady_RemoteSkipsPull(t *testing.T) {
	m := &mockEngine{isRunning: true}
	if err := EnsureReady(context.Background(), m, "gpt-3.5-turbo", "text-embedding-3-small", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false}
	if err := EnsureReady(context.Background(), m, "gpt-3.5-turbo", "", io.Discard); err == nil {
		t.Fatal("expected error when engine is down")
	}
}
