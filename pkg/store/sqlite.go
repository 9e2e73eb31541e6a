package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
)

var _ types.VectorStore = (*SQLite)(nil)

const sqliteFile = "kbase.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chunks (
	collection TEXT NOT NULL,
	seq INTEGER NOT NULL,
	id TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_collection_seq ON chunks(collection, seq);
`

// SQLite persists collections in a single database file and searches them
// with an exact L2 scan.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the store under dir.
func NewSQLite(dir string) (*SQLite, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	path := filepath.Join(dir, sqliteFile)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) exists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, name string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCollectionNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up collection %s: %w", name, err)
	}
	return nil
}

func (s *SQLite) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.exists(ctx, tx, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", name); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) CreateCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO collections (name) VALUES (?)", name); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// Add upserts chunks by ID in one transaction.
func (s *SQLite) Add(ctx context.Context, name string, chunks []models.IndexedChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.exists(ctx, tx, name); err != nil {
		return err
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM chunks WHERE collection = ?", name).Scan(&seq); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, seq, id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		meta, err := encodeMetadata(ch.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", ch.ID, err)
		}
		seq++
		if _, err := stmt.ExecContext(ctx, name, seq, ch.ID, ch.Text, string(meta), encodeVector(ch.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", ch.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) Query(ctx context.Context, name string, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	if err := s.exists(ctx, s.db, name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, metadata, embedding FROM chunks WHERE collection = ? ORDER BY seq", name)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.RetrievedChunk
	for rows.Next() {
		var (
			hit  models.RetrievedChunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", hit.ID, err)
		}
		if hit.Distance, err = l2(embedding, vec); err != nil {
			return nil, err
		}
		if hit.Metadata, err = decodeMetadata([]byte(meta)); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", hit.ID, err)
		}
		hit.Source = sourceOf(hit.Metadata)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return nearest(hits, limit), nil
}

func (s *SQLite) Count(ctx context.Context, name string) (int, error) {
	if err := s.exists(ctx, s.db, name); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}
