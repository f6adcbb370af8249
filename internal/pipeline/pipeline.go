// Package pipeline implements ingestion and retrieval-augmented answering
// over a session's corpus.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kalambet/texttutor/internal/chunker"
	"github.com/kalambet/texttutor/internal/composer"
	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/engine"
)

var (
	// ErrNoCorpus is returned when a question is asked before anything was ingested.
	ErrNoCorpus = errors.New("no documents ingested in this session")

	// ErrGeneration marks failures of the language model call.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Embedder generates embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces the model's reply to a list of chat messages.
type Generator interface {
	Generate(ctx context.Context, messages []engine.Message) (string, error)
}

// Recorder persists answered turns.
type Recorder interface {
	Record(question, answer string, sources []string) (conversation.Record, error)
}

// EngineGenerator binds an Engine to a model and sampling options.
type EngineGenerator struct {
	engine engine.Engine
	model  string
	opts   engine.ChatOptions
}

// NewGenerator returns a Generator that calls e.Chat with model and opts.
func NewGenerator(e engine.Engine, model string, opts engine.ChatOptions) *EngineGenerator {
	return &EngineGenerator{engine: e, model: model, opts: opts}
}

func (g *EngineGenerator) Generate(ctx context.Context, messages []engine.Message) (string, error) {
	return g.engine.Chat(ctx, g.model, messages, g.opts)
}

// Options tune retrieval.
type Options struct {
	// TopK is how many passages are retrieved per question (default 3).
	TopK int
	// CondenseQuestion rewrites follow-up questions into standalone ones
	// before retrieval when history is present.
	CondenseQuestion bool
}

// Pipeline wires the chunker, embedder, generator and conversation log.
type Pipeline struct {
	splitter  *chunker.Splitter
	embedder  Embedder
	generator Generator
	composer  *composer.Composer
	recorder  Recorder
	opts      Options
	logger    *slog.Logger
}

// New creates a Pipeline. recorder may be nil, in which case Ask does not
// persist turns. A nil logger uses slog.Default().
func New(
	splitter *chunker.Splitter,
	embedder Embedder,
	generator Generator,
	comp *composer.Composer,
	recorder Recorder,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		splitter:  splitter,
		embedder:  embedder,
		generator: generator,
		composer:  comp,
		recorder:  recorder,
		opts:      opts,
		logger:    logger,
	}
}
