// Package embeddings turns text into fixed-size vectors for the vector index.
//
// Providers are tried in the configured order (EMBEDDING_PROVIDER_ORDER),
// each behind its own circuit breaker and rate limiter. Vectors are padded or
// truncated to one target size so results from different providers share a
// collection. Without any credentials the deterministic MockProvider is used.
package embeddings

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/resilience"
)

// Client embeds texts. Empty input yields empty output.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Batch is one embedded batch and the provider that served it.
type Batch struct {
	Vectors  [][]float32
	Provider ProviderName
	// Fallback is set when a provider other than the first one answered.
	Fallback bool
}

// BatchClient is a Client that can report where vectors came from.
type BatchClient interface {
	Client
	EmbedBatch(ctx context.Context, texts []string) (Batch, error)
}

var (
	_ BatchClient = (*Registry)(nil)
	_ Client      = (*MockProvider)(nil)
)

// Config holds provider credentials and the shared target size.
type Config struct {
	OpenAIAPIKey string
	OpenAIModel  string
	GoogleAPIKey string
	GoogleModel  string

	// RateLimit is requests per second per provider.
	RateLimit int

	// ProviderOrder is a comma-separated list, most preferred first.
	ProviderOrder string

	Breaker    resilience.Config
	Dimensions int
}

// NewClient registers every configured provider named in cfg.ProviderOrder.
// Closers for providers holding connections are returned alongside.
func NewClient(ctx context.Context, cfg Config, logger *zerolog.Logger) (*Registry, []func() error) {
	registry := NewRegistry(cfg.Dimensions, logger)

	var closers []func() error

	for _, name := range ParseProviderOrder(cfg.ProviderOrder) {
		switch ProviderName(name) {
		case ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				continue
			}

			registry.Register(NewOpenAIProvider(OpenAIConfig{
				APIKey:     cfg.OpenAIAPIKey,
				Model:      cfg.OpenAIModel,
				Dimensions: registry.Dimensions(),
				RateLimit:  cfg.RateLimit,
			}), cfg.Breaker)
		case ProviderGoogle:
			if cfg.GoogleAPIKey == "" {
				continue
			}

			p, err := NewGoogleProvider(ctx, GoogleConfig{
				APIKey:    cfg.GoogleAPIKey,
				Model:     cfg.GoogleModel,
				RateLimit: cfg.RateLimit,
			})
			if err != nil {
				logger.Error().Err(err).Msg("google embedding provider unavailable")
				continue
			}

			registry.Register(p, cfg.Breaker)
			closers = append(closers, p.Close)
		default:
			logger.Warn().Str(logKeyProvider, name).Msg("unknown embedding provider in order, ignoring")
		}
	}

	if len(registry.ProviderNames()) == 0 {
		logger.Warn().Msg("no embedding providers configured, using mock provider")
		registry.Register(NewMockProviderWithDimensions(registry.Dimensions()), cfg.Breaker)
	}

	return registry, closers
}

// ParseProviderOrder splits a comma-separated order into lower-case names.
// An empty order means openai then google.
func ParseProviderOrder(order string) []string {
	if strings.TrimSpace(order) == "" {
		return []string{string(ProviderOpenAI), string(ProviderGoogle)}
	}

	var names []string

	for _, p := range strings.Split(order, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			names = append(names, p)
		}
	}

	return names
}
