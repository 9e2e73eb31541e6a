package llm_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/xhad/kbase/pkg/llm"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", llm.ErrRateLimited, true},
		{"wrapped sentinel", fmt.Errorf("embed: %w", llm.ErrRateLimited), true},
		{"googleapi 429", &googleapi.Error{Code: 429}, true},
		{"googleapi 500", &googleapi.Error{Code: 500, Message: "backend error"}, false},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), true},
		{"quota text", errors.New("You exceeded your current quota"), true},
		{"rate limit text", errors.New("Rate limit reached for requests"), true},
		{"unrelated", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.IsRateLimited(tt.err))
		})
	}
}

func TestConfigError(t *testing.T) {
	var err error = &llm.ConfigError{Component: "chat"}
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
	assert.Contains(t, err.Error(), "chat")
	assert.Contains(t, err.Error(), "USE_OLLAMA")
}

func TestParseProvider(t *testing.T) {
	p, err := llm.ParseProvider("gemini")
	assert.NoError(t, err)
	assert.Equal(t, llm.ProviderGemini, p)

	p, err = llm.ParseProvider("")
	assert.NoError(t, err)
	assert.Equal(t, llm.ProviderNone, p)

	_, err = llm.ParseProvider("anthropic")
	assert.Error(t, err)
}

func TestTokenCounter_Nil(t *testing.T) {
	var c *llm.TokenCounter
	assert.Zero(t, c.Count("some text"))
}
