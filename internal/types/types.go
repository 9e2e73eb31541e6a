package types

import (
	"context"

	"github.com/xhad/kbase/internal/models"
)

// Embedder turns texts into vectors, in input order.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// BatchSize is the number of texts the backend accepts per call.
	BatchSize() int
	Configured() bool
}

// Generator produces an answer from a system instruction and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Configured() bool
}

// VectorStore owns named collections of embedded chunks.
// Missing collections are reported with store.ErrCollectionNotFound.
type VectorStore interface {
	DeleteCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, name string) error
	Add(ctx context.Context, name string, chunks []models.IndexedChunk) error
	Query(ctx context.Context, name string, embedding []float32, limit int) ([]models.RetrievedChunk, error)
	Count(ctx context.Context, name string) (int, error)
	Close() error
}

// Loader fetches documents from one source.
type Loader interface {
	Name() string
	Load(ctx context.Context) ([]models.Document, error)
}
