package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotConfigured is matched by every ConfigError.
	ErrNotConfigured = errors.New("no model backend configured")

	// ErrRateLimited marks a backend failure caused by rate limiting or an
	// exhausted quota. Such calls may succeed after a cooldown.
	ErrRateLimited = errors.New("model backend rate limited")
)

// ConfigError reports that a gateway has no usable backend.
type ConfigError struct {
	Component string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: no backend configured; set GEMINI_API_KEY + USE_GEMINI=true, or USE_OLLAMA=true, or OPENAI_API_KEY", e.Component)
}

func (e *ConfigError) Unwrap() error {
	return ErrNotConfigured
}

// IsRateLimited reports whether err is a rate-limit or quota failure.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToUpper(err.Error())
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "RESOURCEEXHAUSTED", "QUOTA", "RATE LIMIT"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func classify(op string, err error) error {
	if IsRateLimited(err) && !errors.Is(err, ErrRateLimited) {
		return fmt.Errorf("%s: %w: %w", op, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
