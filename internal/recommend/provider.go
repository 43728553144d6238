// Package recommend turns fused context text into a short list of
// actionable suggestions via an external reasoning provider.
//
// The provider call is the only slow, failure-prone step in the
// ingestion pipeline. Everything in this package is written so that a
// missing credential, a timeout or a provider error degrades to a fixed
// fallback list instead of failing the ingestion request.
package recommend

import (
	"context"
	"fmt"
	"time"
)

// Provider generates a free-text completion for a prompt.
type Provider interface {
	// Complete sends the prompt and returns the raw response text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Available reports whether the provider is configured and ready.
	Available() bool
}

// Config holds provider selection and credentials.
type Config struct {
	// Provider is "openai", "anthropic" or "disabled".
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout bounds a single completion attempt.
	Timeout time.Duration

	MaxTokens   int
	Temperature float64
}

// NewProvider builds a provider from configuration. A missing API key
// is a valid, handled configuration: it yields the unavailable provider
// (fallback recommendations), never a startup failure.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "disabled":
		return Unavailable(), nil
	case "openai":
		if cfg.APIKey == "" {
			return Unavailable(), nil
		}
		return newOpenAIClient(cfg), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return Unavailable(), nil
		}
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown recommendation provider: %s", cfg.Provider)
	}
}

// Unavailable returns the provider used when no credential is
// configured. Every call fails, which routes the generator onto its
// fallback path.
func Unavailable() Provider {
	return unavailableProvider{}
}

type unavailableProvider struct{}

func (unavailableProvider) Complete(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (unavailableProvider) Available() bool { return false }

// ErrNotConfigured indicates no reasoning provider credential was
// supplied.
var ErrNotConfigured = fmt.Errorf("reasoning provider not configured")
