package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
	"github.com/xhad/kbase/pkg/llm"
)

const (
	DefaultTopK     = 5
	DefaultCooldown = 50 * time.Second

	SystemPrompt = `You answer questions using only the provided context. If the context does not contain enough information, say so. Always cite the source (e.g. "According to [source]..."). Do not make up facts or sources.`

	NothingIndexed = "No documents have been indexed yet. Add PDFs or markdown files to the data folder and run `kbase index` (or POST /index)."
)

type EngineConfig struct {
	TopK int
	// Cooldown is the wait before the single retry of a rate-limited
	// generation.
	Cooldown time.Duration
	Logger   *slog.Logger
	// Tokens, when set, logs the prompt size at debug level.
	Tokens TokenCounter
}

// TokenCounter is satisfied by *llm.TokenCounter.
type TokenCounter interface {
	Count(text string) int
}

// Engine answers questions from the indexed collection.
type Engine struct {
	retriever *Retriever
	generator types.Generator
	config    EngineConfig
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

func NewEngine(searcher Searcher, generator types.Generator, config EngineConfig) *Engine {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		retriever: NewRetriever(searcher, config.TopK),
		generator: generator,
		config:    config,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// WithSleep replaces the cooldown wait.
func (e *Engine) WithSleep(sleep func(context.Context, time.Duration) error) *Engine {
	e.sleep = sleep
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Ask retrieves context for question and generates a cited answer. topK <= 0
// uses the configured default.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (models.Answer, error) {
	if !e.generator.Configured() {
		return models.Answer{}, &llm.ConfigError{Component: "chat"}
	}

	retrieved, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return models.Answer{}, fmt.Errorf("retrieve: %w", err)
	}
	if retrieved.Empty {
		return models.Answer{Text: NothingIndexed, Citations: []models.Citation{}}, nil
	}

	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", retrieved.Text, question)
	if e.config.Tokens != nil {
		e.logger.Debug("prompt built",
			"chunks", len(retrieved.Citations),
			"tokens", e.config.Tokens.Count(SystemPrompt)+e.config.Tokens.Count(user))
	}

	text, err := e.generate(ctx, user)
	if err != nil {
		return models.Answer{}, err
	}

	return models.Answer{Text: text, Citations: retrieved.Citations}, nil
}

func (e *Engine) generate(ctx context.Context, user string) (string, error) {
	text, err := e.generator.Generate(ctx, SystemPrompt, user)
	if err == nil || !errors.Is(err, llm.ErrRateLimited) {
		return text, err
	}

	e.logger.Warn("generation rate limited, retrying", "cooldown", e.config.Cooldown, "error", err)
	if err := e.sleep(ctx, e.config.Cooldown); err != nil {
		return "", fmt.Errorf("waiting out rate limit: %w", err)
	}
	return e.generator.Generate(ctx, SystemPrompt, user)
}
