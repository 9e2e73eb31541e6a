package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
)

var _ types.VectorStore = (*PGVector)(nil)

const undefinedTable = "42P01"

type PGVectorConfig struct {
	ConnString string
	// VectorDim fixes the embedding column width; zero leaves it unconstrained.
	VectorDim int
	// TablePrefix is prepended to collection names. Defaults to "kb_".
	TablePrefix string
}

// PGVector keeps each collection in its own table.
type PGVector struct {
	config PGVectorConfig
	pool   *pgxpool.Pool
}

func NewPGVector(ctx context.Context, config PGVectorConfig) (*PGVector, error) {
	if config.ConnString == "" {
		return nil, errors.New("postgres connection string is required")
	}
	if config.TablePrefix == "" {
		config.TablePrefix = "kb_"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	return &PGVector{config: config, pool: pool}, nil
}

func (vs *PGVector) table(name string) string {
	return pgx.Identifier{vs.config.TablePrefix + name}.Sanitize()
}

// notFound maps a missing-table error onto ErrCollectionNotFound.
func notFound(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return ErrCollectionNotFound
	}
	return err
}

func (vs *PGVector) DeleteCollection(ctx context.Context, name string) error {
	if _, err := vs.pool.Exec(ctx, "DROP TABLE "+vs.table(name)); err != nil {
		if err := notFound(err); errors.Is(err, ErrCollectionNotFound) {
			return err
		}
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

func (vs *PGVector) CreateCollection(ctx context.Context, name string) error {
	column := "vector"
	if vs.config.VectorDim > 0 {
		column = fmt.Sprintf("vector(%d)", vs.config.VectorDim)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding %s NOT NULL,
			metadata JSONB NOT NULL
		)`, vs.table(name), column)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Add upserts chunks by ID in one transaction.
func (vs *PGVector) Add(ctx context.Context, name string, chunks []models.IndexedChunk) error {
	if len(chunks) == 0 {
		_, err := vs.Count(ctx, name)
		return err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.table(name))

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		meta, err := encodeMetadata(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", ch.ID, err)
		}
		batch.Queue(stmt,
			ch.ID,
			strings.ToValidUTF8(strings.ReplaceAll(ch.Text, "\x00", ""), ""),
			pgvector.NewVector(ch.Embedding),
			string(meta),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if err := notFound(err); errors.Is(err, ErrCollectionNotFound) {
			return err
		}
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *PGVector) Query(ctx context.Context, name string, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	if limit <= 0 {
		_, err := vs.Count(ctx, name)
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata::text, embedding <-> $1 AS distance
		FROM %s
		ORDER BY distance, seq
		LIMIT $2`,
		vs.table(name))

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		if err := notFound(err); errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.RetrievedChunk
	for rows.Next() {
		var (
			hit  models.RetrievedChunk
			meta string
		)
		if err := rows.Scan(&hit.ID, &hit.Content, &meta, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if hit.Metadata, err = decodeMetadata([]byte(meta)); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", hit.ID, err)
		}
		hit.Source = sourceOf(hit.Metadata)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		if err := notFound(err); errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return hits, nil
}

func (vs *PGVector) Count(ctx context.Context, name string) (int, error) {
	var n int
	err := vs.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+vs.table(name)).Scan(&n)
	if err != nil {
		if err := notFound(err); errors.Is(err, ErrCollectionNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (vs *PGVector) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}
