package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/kbase/internal/types"
)

var _ types.Generator = (*ChatEngine)(nil)

const DefaultTemperature = 0.2

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Backend
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatEngine is the answer generation gateway.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a ChatEngine for the configured provider. Without a
// backend the engine reports Configured() == false.
func NewWithConfig(ctx context.Context, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}
	if !config.Backend.configured() {
		return &ChatEngine{config: config}, nil
	}
	if config.Model == "" {
		_, config.Model = defaultModels(config.Provider)
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case ProviderGemini:
		model, err = newGemini(ctx, config.Backend, config.Model, "")
	case ProviderOllama:
		model, err = newOllama(config.Backend, config.Model)
	case ProviderOpenAI:
		model, err = newOpenAI(config.Backend, config.Model, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewFromModel(model, config), nil
}

// NewFromModel wraps an existing langchaingo model.
func NewFromModel(model llms.Model, config ChatConfig) *ChatEngine {
	return &ChatEngine{
		config: config,
		llm:    model,
	}
}

func (ce *ChatEngine) Configured() bool {
	return ce.llm != nil
}

func (ce *ChatEngine) Model() string {
	return ce.config.Model
}

// Generate sends the system instruction and user message as one exchange and
// returns the trimmed reply. Rate-limit failures match ErrRateLimited.
func (ce *ChatEngine) Generate(ctx context.Context, system, user string) (string, error) {
	if !ce.Configured() {
		return "", &ConfigError{Component: "chat"}
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	opts := []llms.CallOption{llms.WithTemperature(ce.config.Temperature)}
	if ce.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(ce.config.MaxTokens))
	}

	response, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", classify("chat error", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", errors.New("chat error: no response from LLM")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
