// Package ai adds summaries, severities and remediation guidance to
// findings, through an LLM provider when one is configured and through
// local rules otherwise.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// LLMProvider is a text completion backend.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("missing api key")
	ErrEmptyResponse   = errors.New("empty response from provider")
)

// Providers lists the supported provider names.
var Providers = []string{"gemini", "openai", "anthropic"}

// NewProvider builds the named provider. An empty model selects the
// provider's default.
func NewProvider(ctx context.Context, providerName, apiKey, modelName string, logger hclog.Logger) (LLMProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", providerName, ErrMissingAPIKey)
	}
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	case "openai":
		return NewOpenAIProvider(apiKey, modelName, logger), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, modelName, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
}
