package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names a model backend.
type Provider string

const (
	ProviderNone   Provider = ""
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

const (
	DefaultOllamaURL = "http://localhost:11434"

	DefaultGeminiEmbedModel = "gemini-embedding-001"
	DefaultGeminiChatModel  = "gemini-2.0-flash-lite"
	DefaultOpenAIEmbedModel = "text-embedding-3-small"
	DefaultOpenAIChatModel  = "gpt-4o-mini"
	DefaultOllamaEmbedModel = "nomic-embed-text"
	DefaultOllamaChatModel  = "llama3.2"
)

// ParseProvider accepts the provider names used in configuration files.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderNone, ProviderGemini, ProviderOllama, ProviderOpenAI:
		return p, nil
	}
	return ProviderNone, fmt.Errorf("unknown provider %q", s)
}

// Backend holds the connection settings shared by both gateways.
type Backend struct {
	Provider Provider
	APIKey   string
	BaseURL  string
}

func (b Backend) configured() bool {
	switch b.Provider {
	case ProviderOllama:
		return true
	case ProviderGemini, ProviderOpenAI:
		return b.APIKey != ""
	}
	return false
}

func defaultModels(p Provider) (embed, chat string) {
	switch p {
	case ProviderGemini:
		return DefaultGeminiEmbedModel, DefaultGeminiChatModel
	case ProviderOllama:
		return DefaultOllamaEmbedModel, DefaultOllamaChatModel
	case ProviderOpenAI:
		return DefaultOpenAIEmbedModel, DefaultOpenAIChatModel
	}
	return "", ""
}

func newGemini(ctx context.Context, b Backend, chatModel, embedModel string) (*googleai.GoogleAI, error) {
	opts := []googleai.Option{googleai.WithAPIKey(b.APIKey)}
	if chatModel != "" {
		opts = append(opts, googleai.WithDefaultModel(chatModel))
	}
	if embedModel != "" {
		opts = append(opts, googleai.WithDefaultEmbeddingModel(embedModel))
	}
	return googleai.New(ctx, opts...)
}

func newOllama(b Backend, model string) (*ollama.LLM, error) {
	url := b.BaseURL
	if url == "" {
		url = DefaultOllamaURL
	}
	return ollama.New(ollama.WithModel(model), ollama.WithServerURL(url))
}

func newOpenAI(b Backend, chatModel, embedModel string) (*openai.LLM, error) {
	opts := []openai.Option{openai.WithToken(b.APIKey)}
	if chatModel != "" {
		opts = append(opts, openai.WithModel(chatModel))
	}
	if embedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(embedModel))
	}
	if b.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(b.BaseURL))
	}
	return openai.New(opts...)
}
