package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/resilience"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = errors.New("no LLM providers available")
	ErrAllProvidersFailed   = errors.New("all LLM providers failed")
)

// Metric values.
const (
	metricValueAvailable   = 1.0
	metricValueUnavailable = 0.0
	statusSuccess          = "success"
	statusError            = "error"
	statusMalformed        = "malformed"
)

// Log keys.
const (
	logKeyProvider           = "provider"
	logMsgCircuitBreakerOpen = "skipping provider - circuit breaker open"
)

// Registry manages LLM providers with fallback support.
type Registry struct {
	mu              sync.RWMutex
	providers       map[ProviderName]Provider
	order           []ProviderName // Priority order (highest first)
	circuitBreakers map[ProviderName]*resilience.Breaker
	logger          *zerolog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		providers:       make(map[ProviderName]Provider),
		order:           make([]ProviderName, 0),
		circuitBreakers: make(map[ProviderName]*resilience.Breaker),
		logger:          logger,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider, cfg resilience.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	r.order = append(r.order, name)
	r.circuitBreakers[name] = resilience.New(string(name), cfg, resilience.OnStateChange(r.breakerChanged))

	r.sortProvidersByPriority()

	observability.LLMProviderAvailable.WithLabelValues(string(name)).Set(metricValueAvailable)

	r.logger.Info().
		Str(logKeyProvider, string(name)).
		Int("priority", p.Priority()).
		Msg("registered LLM provider")
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// ProviderNames returns provider names in priority order.
func (r *Registry) ProviderNames() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderName, len(r.order))
	copy(out, r.order)

	return out
}

// Generate asks providers in priority order for a JSON document matching
// schema. A response that cannot be parsed or validated moves on to the next
// provider; when every provider fails the error wraps the last failure.
func (r *Registry) Generate(ctx context.Context, prompt string, schema *Schema) (json.RawMessage, error) {
	names := r.ProviderNames()
	if len(names) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var (
		lastErr error
		primary = names[0]
	)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}

		doc, attempted, err := r.tryProvider(ctx, name, prompt, schema)
		if !attempted {
			continue
		}

		if err != nil {
			lastErr = err
			continue
		}

		if name != primary {
			observability.LLMFallbacks.WithLabelValues(string(primary), string(name)).Inc()
			r.logger.Info().
				Str(logKeyProvider, string(name)).
				Str("from_provider", string(primary)).
				Msg("used fallback LLM provider")
		}

		return doc, nil
	}

	if lastErr != nil {
		return nil, errors.Join(ErrAllProvidersFailed, lastErr)
	}

	return nil, ErrNoProvidersAvailable
}

func (r *Registry) tryProvider(ctx context.Context, name ProviderName, prompt string, schema *Schema) (json.RawMessage, bool, error) {
	r.mu.RLock()
	p := r.providers[name]
	cb := r.circuitBreakers[name]
	r.mu.RUnlock()

	if p == nil || !p.IsAvailable() {
		return nil, false, nil
	}

	if !cb.Allow() {
		r.logger.Debug().Str(logKeyProvider, string(name)).Msg(logMsgCircuitBreakerOpen)

		return nil, false, nil
	}

	start := time.Now()
	text, err := p.Complete(ctx, sanitizeUTF8(prompt), schema)
	observability.LLMRequestDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

	if err != nil {
		r.recordFailure(name, cb, statusError, err)
		return nil, true, err
	}

	raw := []byte(extractJSON(text))
	if err := schema.Validate(raw); err != nil {
		r.recordFailure(name, cb, statusMalformed, err)
		return nil, true, err
	}

	cb.Success()
	observability.LLMRequests.WithLabelValues(string(name), statusSuccess).Inc()

	return json.RawMessage(raw), true, nil
}

func (r *Registry) recordFailure(name ProviderName, cb *resilience.Breaker, status string, err error) {
	cb.Failure()
	observability.LLMRequests.WithLabelValues(string(name), status).Inc()

	event := r.logger.Warn().Err(err).Str(logKeyProvider, string(name))
	if errors.Is(err, coreerrors.ErrMalformedResponse) {
		event = event.Bool("malformed", true)
	}

	event.Msg("LLM provider failed, trying fallback")
}

func (r *Registry) breakerChanged(name string, from, to resilience.State) {
	value := metricValueAvailable
	if to == resilience.StateOpen {
		value = metricValueUnavailable
	}

	observability.LLMProviderAvailable.WithLabelValues(name).Set(value)
	r.logger.Info().Str(logKeyProvider, name).Stringer("from", from).Stringer("to", to).Msg("LLM circuit breaker state changed")
}

// sortProvidersByPriority sorts providers by priority in descending order.
func (r *Registry) sortProvidersByPriority() {
	sort.SliceStable(r.order, func(i, j int) bool {
		return r.providers[r.order[i]].Priority() > r.providers[r.order[j]].Priority()
	})
}
