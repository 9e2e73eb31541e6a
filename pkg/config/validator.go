package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/pkg/store"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if _, err := llm.ParseProvider(c.Provider); err != nil {
		errors = append(errors, ValidationError{
			Field:   "provider",
			Message: "provider must be one of gemini, ollama, openai",
		})
	}

	if c.Provider == string(llm.ProviderGemini) && c.Gemini.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "gemini.api_key",
			Message: "api_key is required for the gemini provider",
		})
	}

	if c.Provider == string(llm.ProviderOpenAI) && c.OpenAI.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "openai.api_key",
			Message: "api_key is required for the openai provider",
		})
	}

	if u, err := url.Parse(c.Ollama.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "ollama.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.MaxTokens < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens cannot be negative",
		})
	}

	if c.LLM.RateLimitCooldown < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.rate_limit_cooldown",
			Message: "rate_limit_cooldown cannot be negative",
		})
	}

	switch c.Store.Driver {
	case store.DriverSQLite, store.DriverMemory:
	case store.DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.database_url",
				Message: "database_url is required for the postgres driver",
			})
		}
		if c.Store.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.vector_dim",
				Message: "vector_dim must be positive for the postgres driver",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.driver",
			Message: fmt.Sprintf("unknown driver %q", c.Store.Driver),
		})
	}

	if c.Store.Collection == "" || strings.ContainsAny(c.Store.Collection, " \t\n\"';") {
		errors = append(errors, ValidationError{
			Field:   "store.collection",
			Message: "collection must be a non-empty identifier",
		})
	}

	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if overlap := c.Processor.ChunkOverlap; overlap != nil {
		switch {
		case *overlap < 0:
			errors = append(errors, ValidationError{
				Field:   "processor.chunk_overlap",
				Message: "chunk_overlap cannot be negative",
			})
		case c.Processor.ChunkSize >= 1 && *overlap >= c.Processor.ChunkSize:
			errors = append(errors, ValidationError{
				Field:   "processor.chunk_overlap",
				Message: "chunk_overlap must be smaller than chunk_size",
			})
		}
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Sources.Web.URL != "" {
		if u, err := url.Parse(c.Sources.Web.URL); err != nil || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "sources.web.url",
				Message: "invalid start URL",
			})
		}
	}

	if c.Sources.Web.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "sources.web.max_depth",
			Message: "max_depth cannot be negative",
		})
	}

	if c.Sources.Web.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sources.web.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Server.RequestTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}

	return errors
}
