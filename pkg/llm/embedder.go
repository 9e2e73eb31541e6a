package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/xhad/kbase/internal/types"
)

var _ types.Embedder = (*Embedder)(nil)

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	Backend
	Model string
	// BatchSize overrides the backend's texts-per-call limit.
	BatchSize int
}

// Embedder is the embedding gateway. An Embedder without a backend reports
// Configured() == false and fails every call with a ConfigError.
type Embedder struct {
	Config    EmbedderConfig
	embed     embeddings.Embedder
	batchSize int
}

// NewEmbedderWithConfig builds the langchaingo client for the configured
// provider. No network call is made.
func NewEmbedderWithConfig(ctx context.Context, config EmbedderConfig) (*Embedder, error) {
	if !config.Backend.configured() {
		return &Embedder{Config: config}, nil
	}
	if config.Model == "" {
		config.Model, _ = defaultModels(config.Provider)
	}

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch config.Provider {
	case ProviderGemini:
		client, err = newGemini(ctx, config.Backend, "", config.Model)
	case ProviderOllama:
		client, err = newOllama(config.Backend, config.Model)
	case ProviderOpenAI:
		client, err = newOpenAI(config.Backend, "", config.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s embedder: %w", config.Provider, err)
	}

	return NewEmbedderFromClient(client, config)
}

// NewEmbedderFromClient wraps an existing embedding client.
func NewEmbedderFromClient(client embeddings.EmbedderClient, config EmbedderConfig) (*Embedder, error) {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize(config.Provider)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		Config:    config,
		embed:     emb,
		batchSize: batchSize,
	}, nil
}

// Local Ollama servers embed one prompt per request.
func defaultBatchSize(p Provider) int {
	if p == ProviderOllama {
		return 1
	}
	return 100
}

func (e *Embedder) Configured() bool {
	return e.embed != nil
}

func (e *Embedder) BatchSize() int {
	if e.batchSize <= 0 {
		return 1
	}
	return e.batchSize
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.Configured() {
		return nil, &ConfigError{Component: "embedder"}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embed.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classify("embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if !e.Configured() {
		return nil, &ConfigError{Component: "embedder"}
	}

	vector, err := e.embed.EmbedQuery(ctx, text)
	if err != nil {
		return nil, classify("embed query", err)
	}
	return vector, nil
}
