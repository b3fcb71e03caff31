package llm

import (
	"context"
	"errors"
)

// ProviderName identifies an LLM provider.
type ProviderName string

// Provider name constants.
const (
	ProviderGoogle    ProviderName = "google"
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderMock      ProviderName = "mock"
)

// Priority constants for provider ordering.
const (
	PriorityPrimary        = 100
	PriorityFallback       = 50
	PrioritySecondFallback = 25
	PriorityMock           = 0
)

// Errors shared by providers.
var (
	ErrEmptyLLMResponse = errors.New("empty LLM response")
)

// Shared format strings.
const (
	errRateLimiter   = "rate limiter: %w"
	errFmtCompletion = "%s completion: %w"
)

// Provider is a single generation backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// IsAvailable returns true if the provider is configured.
	IsAvailable() bool

	// Priority returns the provider priority (higher = preferred).
	Priority() int

	// Complete returns the raw text of a completion that should contain a
	// JSON document shaped like schema.
	Complete(ctx context.Context, prompt string, schema *Schema) (string, error)
}
