package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/kbase/pkg/llm"
)

type fakeEmbeddingClient struct {
	calls [][]string
	err   error
}

func (f *fakeEmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		config     llm.EmbedderConfig
		configured bool
		batchSize  int
	}{
		{"no provider", llm.EmbedderConfig{}, false, 1},
		{"openai without key", llm.EmbedderConfig{Backend: llm.Backend{Provider: llm.ProviderOpenAI}}, false, 1},
		{"gemini without key", llm.EmbedderConfig{Backend: llm.Backend{Provider: llm.ProviderGemini}}, false, 1},
		{"ollama", llm.EmbedderConfig{Backend: llm.Backend{Provider: llm.ProviderOllama, BaseURL: "http://localhost:1234"}}, true, 1},
		{"openai", llm.EmbedderConfig{Backend: llm.Backend{Provider: llm.ProviderOpenAI, APIKey: "sk-test"}}, true, 100},
		{"batch override", llm.EmbedderConfig{Backend: llm.Backend{Provider: llm.ProviderOpenAI, APIKey: "sk-test"}, BatchSize: 16}, true, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := llm.NewEmbedderWithConfig(ctx, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.configured, emb.Configured())
			assert.Equal(t, tt.batchSize, emb.BatchSize())
		})
	}
}

func TestEmbedder_NotConfigured(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(context.Background(), llm.EmbedderConfig{})
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "question")
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	var cfgErr *llm.ConfigError
	_, err = emb.EmbedDocuments(context.Background(), []string{"a"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "embedder", cfgErr.Component)
}

func TestEmbedder_EmbedDocumentsKeepsOrder(t *testing.T) {
	client := &fakeEmbeddingClient{}
	emb, err := llm.NewEmbedderFromClient(client, llm.EmbedderConfig{BatchSize: 2})
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Len(t, client.calls, 3)
}

func TestEmbedder_EmbedQueryPreservesNewlines(t *testing.T) {
	client := &fakeEmbeddingClient{}
	emb, err := llm.NewEmbedderFromClient(client, llm.EmbedderConfig{})
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "line one\nline two")
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.Equal(t, []string{"line one\nline two"}, client.calls[0])
}

func TestEmbedder_ClassifiesRateLimit(t *testing.T) {
	client := &fakeEmbeddingClient{err: errors.New("googleapi: Error 429: Resource has been exhausted")}
	emb, err := llm.NewEmbedderFromClient(client, llm.EmbedderConfig{})
	require.NoError(t, err)

	_, err = emb.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	client := &fakeEmbeddingClient{}
	emb, err := llm.NewEmbedderFromClient(client, llm.EmbedderConfig{})
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, client.calls)
}
