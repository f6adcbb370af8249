package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/texttutor/internal/chunker"
	"github.com/kalambet/texttutor/internal/composer"
	"github.com/kalambet/texttutor/internal/config"
	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/engine"
	"github.com/kalambet/texttutor/internal/pipeline"
	"github.com/kalambet/texttutor/internal/retrieval"
	"github.com/kalambet/texttutor/internal/session"
)

// app is everything an in-process command needs.
type app struct {
	cfg      config.Config
	sessions *session.Manager
	pipeline *pipeline.Pipeline
	log      *conversation.Log
	logger   *slog.Logger
}

func setupLogging(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func indexFactory(backend string) session.IndexFactory {
	if backend == config.IndexSQLite {
		return session.SQLiteIndexes
	}
	return session.MemoryIndexes
}

// newApp detects the inference backend, checks it is reachable and wires
// the pipeline. Progress from model pulls goes to progress.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, progress io.Writer) (*app, error) {
	eng, err := engine.Detect(engine.DetectConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting inference backend: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, cfg.LLM.Model, cfg.Embed.Model, progress); err != nil {
		return nil, err
	}
	return wireApp(cfg, eng, logger)
}

func wireApp(cfg config.Config, eng engine.Engine, logger *slog.Logger) (*app, error) {
	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunk.Size),
		chunker.WithOverlap(cfg.Chunk.Overlap),
	)
	if err != nil {
		return nil, err
	}

	convLog := conversation.NewLog(cfg.ConversationsDir(), logger)
	p := pipeline.New(
		splitter,
		retrieval.NewEmbedder(eng, cfg.Embed.Model),
		pipeline.NewGenerator(eng, cfg.LLM.Model, engine.ChatOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}),
		composer.New(cfg.Retrieval.MaxContextTokens),
		convLog,
		pipeline.Options{
			TopK:             cfg.Retrieval.TopK,
			CondenseQuestion: cfg.Retrieval.CondenseQuestion,
		},
		logger,
	)

	return &app{
		cfg:      cfg,
		sessions: session.NewManager(indexFactory(cfg.Index.Backend), logger),
		pipeline: p,
		log:      convLog,
		logger:   logger,
	}, nil
}

// loadApp is the common prologue of in-process commands.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, setupLogging(cfg), os.Stderr)
}
