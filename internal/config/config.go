package config

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Chunk     ChunkConfig
	LLM       LLMConfig
	Embed     EmbedConfig
	Retrieval RetrievalConfig
	Index     IndexConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type ChunkConfig struct {
	Size    int
	Overlap int
}

// LLMConfig selects the chat model and the provider that serves both chat
// and embeddings.
type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
}

type EmbedConfig struct {
	Model string
}

type RetrievalConfig struct {
	TopK             int
	CondenseQuestion bool
	// MaxContextTokens bounds the passages injected into the prompt.
	MaxContextTokens int
}

type IndexConfig struct {
	Backend string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	IndexMemory = "memory"
	IndexSQLite = "sqlite"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 200,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Embed: EmbedConfig{
			Model: "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			TopK:             3,
			MaxContextTokens: 4000,
		},
		Index: IndexConfig{
			Backend: IndexMemory,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConversationsDir is where answered turns are recorded.
func (c Config) ConversationsDir() string {
	return filepath.Join(c.Storage.DataDir, "conversations")
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/texttutor/config.json and applies environment overrides.
//
// A .env file in the working directory is loaded first. Variables already
// present in the environment take precedence over it.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("invalid config: chunk.size must be positive, got %d", c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("invalid config: chunk.overlap must be in [0, %d), got %d", c.Chunk.Size, c.Chunk.Overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("invalid config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxContextTokens <= 0 {
		return fmt.Errorf("invalid config: retrieval.max_context_tokens must be positive, got %d", c.Retrieval.MaxContextTokens)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("invalid config: unknown llm.provider %q", c.LLM.Provider)
	}
	switch c.Index.Backend {
	case IndexMemory, IndexSQLite:
	default:
		return fmt.Errorf("invalid config: unknown index.backend %q", c.Index.Backend)
	}
	return nil
}
