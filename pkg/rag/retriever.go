package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/kbase/internal/models"
)

const contextSeparator = "\n\n---\n\n"

// Searcher finds the chunks nearest to a question.
type Searcher interface {
	Query(ctx context.Context, question string, topK int) ([]models.RetrievedChunk, error)
}

// Context is the retrieved material for one question.
type Context struct {
	Text      string
	Citations []models.Citation
	// Empty is set when nothing was retrieved.
	Empty bool
}

type Retriever struct {
	searcher Searcher
	topK     int
}

func NewRetriever(searcher Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{searcher: searcher, topK: topK}
}

// Retrieve searches for question and assembles the hits, in retrieval order,
// into prompt context and citations. topK <= 0 uses the retriever's default.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) (Context, error) {
	if topK <= 0 {
		topK = r.topK
	}

	chunks, err := r.searcher.Query(ctx, question, topK)
	if err != nil {
		return Context{}, err
	}
	return Assemble(chunks), nil
}

// Assemble formats chunks as "[Source: s]\ncontent" blocks and cites each one.
func Assemble(chunks []models.RetrievedChunk) Context {
	if len(chunks) == 0 {
		return Context{Empty: true, Citations: []models.Citation{}}
	}

	parts := make([]string, 0, len(chunks))
	citations := make([]models.Citation, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", c.Source, c.Content))

		meta := c.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		citations = append(citations, models.Citation{Source: c.Source, Metadata: meta})
	}

	return Context{
		Text:      strings.Join(parts, contextSeparator),
		Citations: citations,
	}
}
