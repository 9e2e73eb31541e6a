package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/pkg/processor"
	"github.com/xhad/kbase/pkg/store"
)

const (
	DefaultCollection = "knowledge_base"
	DefaultTopK       = 5

	// Rows written to the store per Add call.
	writeBatchSize = 500
)

type IndexConfig struct {
	Collection string
	Logger     *slog.Logger
	// OnProgress is called after each embedding batch with the number of
	// chunks embedded so far.
	OnProgress func(done, total int)
}

// Index keeps one vector collection in sync with a document set.
type Index struct {
	store     types.VectorStore
	embedder  types.Embedder
	processor processor.Processor
	config    IndexConfig
	logger    *slog.Logger
}

func New(vs types.VectorStore, emb types.Embedder, proc processor.Processor, config IndexConfig) *Index {
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		store:     vs,
		embedder:  emb,
		processor: proc,
		config:    config,
		logger:    logger.With("collection", config.Collection),
	}
}

func (ix *Index) Collection() string {
	return ix.config.Collection
}

// Rebuild replaces the collection with the chunks of docs and returns the
// number of chunks written. With nothing to index the store is left as is.
// The existing collection is only cleared once every chunk is embedded.
func (ix *Index) Rebuild(ctx context.Context, docs []models.Document) (int, error) {
	chunks := ix.processor.Process(docs)
	if len(chunks) == 0 {
		ix.logger.Info("nothing to index", "documents", len(docs))
		return 0, nil
	}
	if !ix.embedder.Configured() {
		return 0, &llm.ConfigError{Component: "embedder"}
	}

	runID := uuid.NewString()
	started := time.Now()
	log := ix.logger.With("run_id", runID)
	log.Info("rebuild started", "documents", len(docs), "chunks", len(chunks))

	rows := make([]models.IndexedChunk, 0, len(chunks))
	batch := max(ix.embedder.BatchSize(), 1)
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vectors))
		}

		for i, c := range chunks[start:end] {
			rows = append(rows, models.IndexedChunk{Chunk: c, Embedding: vectors[i]})
		}

		log.Debug("embedded batch", "done", end, "total", len(chunks))
		if ix.config.OnProgress != nil {
			ix.config.OnProgress(end, len(chunks))
		}
	}

	name := ix.config.Collection
	if err := ix.store.DeleteCollection(ctx, name); err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		return 0, fmt.Errorf("clear collection %s: %w", name, err)
	}
	if err := ix.store.CreateCollection(ctx, name); err != nil {
		return 0, fmt.Errorf("create collection %s: %w", name, err)
	}

	for start := 0; start < len(rows); start += writeBatchSize {
		end := min(start+writeBatchSize, len(rows))
		if err := ix.store.Add(ctx, name, rows[start:end]); err != nil {
			return 0, fmt.Errorf("write chunks %d-%d: %w", start, end, err)
		}
	}

	log.Info("rebuild finished", "chunks", len(rows), "elapsed", time.Since(started))
	return len(rows), nil
}

// Query returns up to topK chunks nearest to the question. A collection that
// was never built yields no results.
func (ix *Index) Query(ctx context.Context, question string, topK int) ([]models.RetrievedChunk, error) {
	if !ix.embedder.Configured() {
		return nil, &llm.ConfigError{Component: "embedder"}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := ix.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := ix.store.Query(ctx, ix.config.Collection, vector, topK)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return []models.RetrievedChunk{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", ix.config.Collection, err)
	}
	return hits, nil
}

// Count reports the number of chunks in the collection, zero if it was never
// built.
func (ix *Index) Count(ctx context.Context) (int, error) {
	n, err := ix.store.Count(ctx, ix.config.Collection)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return 0, nil
	}
	return n, err
}
