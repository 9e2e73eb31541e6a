package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
)

var _ types.VectorStore = (*Memory)(nil)

// Memory is an in-process store with brute-force L2 search.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	rows  map[string]models.IndexedChunk
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]*memCollection{}}
}

func (m *Memory) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return ErrCollectionNotFound
	}
	delete(m.collections, name)
	return nil
}

func (m *Memory) CreateCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memCollection{rows: map[string]models.IndexedChunk{}}
	}
	return nil
}

// Add upserts chunks by ID.
func (m *Memory) Add(_ context.Context, name string, chunks []models.IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return ErrCollectionNotFound
	}
	for _, ch := range chunks {
		if _, exists := c.rows[ch.ID]; !exists {
			c.order = append(c.order, ch.ID)
		}
		ch.Metadata = NormalizeMetadata(ch.Metadata)
		ch.Embedding = slices.Clone(ch.Embedding)
		c.rows[ch.ID] = ch
	}
	return nil
}

func (m *Memory) Query(_ context.Context, name string, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if limit <= 0 {
		return nil, nil
	}

	hits := make([]models.RetrievedChunk, 0, len(c.order))
	for _, id := range c.order {
		row := c.rows[id]
		d, err := l2(embedding, row.Embedding)
		if err != nil {
			return nil, err
		}
		hits = append(hits, models.RetrievedChunk{
			ID:       row.ID,
			Content:  row.Text,
			Source:   sourceOf(row.Metadata),
			Metadata: maps.Clone(row.Metadata),
			Distance: d,
		})
	}
	return nearest(hits, limit), nil
}

func (m *Memory) Count(_ context.Context, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return 0, ErrCollectionNotFound
	}
	return len(c.order), nil
}

func (m *Memory) Close() error { return nil }
