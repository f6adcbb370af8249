package engine

import (
	"strings"
	"testing"
)

func TestDetect_Ollama(t *testing.T) {
	e, err := Detect(DetectConfig{Provider: "ollama"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if _, ok := e.(*OllamaEngine); !ok {
		t.Errorf("Detect returned %T, want *OllamaEngine", e)
	}
}

func TestDetect_OpenAI(t *testing.T) {
	e, err := Detect(DetectConfig{Provider: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if _, ok := e.(*OpenAIEngine); !ok {
		t.Errorf("Detect returned %T, want *OpenAIEngine", e)
	}
}

func TestDetect_OpenAIMissingKey(t *testing.T) {
	_, err := Detect(DetectConfig{Provider: "openai"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error = %q, want it to name OPENAI_API_KEY", err)
	}
}

func TestDetect_UnknownProvider(t *testing.T) {
	if _, err := Detect(DetectConfig{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
