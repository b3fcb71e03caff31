// Package llm generates structured JSON responses from large language models.
//
// Providers are tried in priority order behind per-provider circuit breakers.
// A response that is not a JSON document matching the requested Schema counts
// as a provider failure, so the next provider gets a chance before the caller
// sees ErrMalformedResponse.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/resilience"
)

// Generator produces a JSON document for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *Schema) (json.RawMessage, error)
}

var _ Generator = (*Registry)(nil)

// Config selects and configures generation providers.
type Config struct {
	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Comma-separated provider names, most preferred first.
	ProviderOrder string

	Model        string
	Temperature  float32
	RateLimitRPS int

	Breaker resilience.Config
}

// Priorities handed out by position in the provider order.
var orderPriorities = []int{PriorityPrimary, PriorityFallback, PrioritySecondFallback}

// NewRegistryFromConfig registers every configured provider in the requested
// order. With no credentials at all it falls back to the mock provider.
func NewRegistryFromConfig(ctx context.Context, cfg Config, logger *zerolog.Logger) *Registry {
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 1
	}

	r := NewRegistry(logger)

	for i, name := range parseProviderOrder(cfg.ProviderOrder) {
		priority := PrioritySecondFallback
		if i < len(orderPriorities) {
			priority = orderPriorities[i]
		}

		p := newProvider(ctx, ProviderName(name), priority, cfg, logger)
		if p == nil || !p.IsAvailable() {
			continue
		}

		r.Register(p, cfg.Breaker)
	}

	if r.ProviderCount() == 0 {
		logger.Warn().Msg("no LLM providers configured, using mock provider")
		r.Register(NewMockProvider(), cfg.Breaker)
	}

	return r
}

// Close releases provider connections.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error

	for _, p := range r.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func newProvider(ctx context.Context, name ProviderName, priority int, cfg Config, logger *zerolog.Logger) Provider {
	switch name {
	case ProviderGoogle:
		if cfg.GoogleAPIKey == "" {
			return nil
		}

		p, err := NewGoogleProvider(ctx, GoogleConfig{
			APIKey:      cfg.GoogleAPIKey,
			Model:       modelFor(name, cfg.Model),
			Temperature: cfg.Temperature,
			RateLimit:   cfg.RateLimitRPS,
			Priority:    priority,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to create Google LLM provider")
			return nil
		}

		return p
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       modelFor(name, cfg.Model),
			Temperature: cfg.Temperature,
			RateLimit:   cfg.RateLimitRPS,
			Priority:    priority,
		})
	case ProviderAnthropic:
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       modelFor(name, cfg.Model),
			Temperature: cfg.Temperature,
			RateLimit:   cfg.RateLimitRPS,
			Priority:    priority,
		})
	default:
		logger.Warn().Str(logKeyProvider, string(name)).Msg("unknown LLM provider in order, ignoring")
		return nil
	}
}

// modelFor hands the configured model only to the provider serving that
// model family; the others keep their defaults.
func modelFor(name ProviderName, model string) string {
	m := strings.ToLower(model)

	var ok bool

	switch name {
	case ProviderGoogle:
		ok = strings.HasPrefix(m, "gemini")
	case ProviderOpenAI:
		ok = strings.HasPrefix(m, "gpt") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
	case ProviderAnthropic:
		ok = strings.HasPrefix(m, "claude")
	}

	if !ok {
		return ""
	}

	return model
}

func parseProviderOrder(order string) []string {
	if strings.TrimSpace(order) == "" {
		return []string{string(ProviderGoogle), string(ProviderOpenAI), string(ProviderAnthropic)}
	}

	var out []string

	for _, p := range strings.Split(order, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// sanitizeUTF8 drops invalid byte sequences that some APIs reject outright.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	return strings.ToValidUTF8(s, "")
}
