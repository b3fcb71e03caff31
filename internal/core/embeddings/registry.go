package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/resilience"
)

var (
	ErrNoProvidersAvailable = errors.New("no embedding providers available")
	ErrAllProvidersFailed   = errors.New("all embedding providers failed")
	ErrVectorCountMismatch  = errors.New("provider returned a different number of vectors")
)

const logKeyProvider = "provider"

type entry struct {
	provider Provider
	breaker  *resilience.Breaker
}

// Registry tries providers in registration order. A batch is embedded by a
// single provider so every vector of one call comes from the same model.
type Registry struct {
	mu         sync.RWMutex
	entries    []entry
	dimensions int
	logger     *zerolog.Logger
}

func NewRegistry(dimensions int, logger *zerolog.Logger) *Registry {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return &Registry{dimensions: dimensions, logger: logger}
}

// Register appends p behind the providers already registered. A second
// provider with the same name is ignored.
func (r *Registry) Register(p Provider, cfg resilience.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.provider.Name() == p.Name() {
			r.logger.Warn().Str(logKeyProvider, string(p.Name())).Msg("embedding provider registered twice, ignoring")
			return
		}
	}

	r.entries = append(r.entries, entry{
		provider: p,
		breaker:  resilience.New(string(p.Name()), cfg, resilience.OnStateChange(breakerChanged)),
	})

	setProviderAvailable(string(p.Name()), true)

	r.logger.Info().
		Str(logKeyProvider, string(p.Name())).
		Int("position", len(r.entries)).
		Msg("registered embedding provider")
}

// Embed returns one vector of Dimensions() per text, in input order.
func (r *Registry) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := r.EmbedBatch(ctx, texts)

	return res.Vectors, err
}

// EmbedBatch is Embed that also reports which provider served the batch.
func (r *Registry) EmbedBatch(ctx context.Context, texts []string) (Batch, error) {
	if len(texts) == 0 {
		return Batch{Vectors: [][]float32{}}, nil
	}

	r.mu.RLock()
	entries := append([]entry(nil), r.entries...)
	r.mu.RUnlock()

	if len(entries) == 0 {
		return Batch{}, ErrNoProvidersAvailable
	}

	primary := string(entries[0].provider.Name())

	var errs []error

	for _, e := range entries {
		name := string(e.provider.Name())

		if !e.breaker.Allow() {
			r.logger.Debug().Str(logKeyProvider, name).Msg("skipping embedding provider, circuit open")
			continue
		}

		start := time.Now()
		vectors, err := embedInChunks(ctx, e.provider, texts)
		observeRequest(name, time.Since(start), err)

		if err != nil {
			e.breaker.Failure()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))

			if ctx.Err() != nil {
				break
			}

			r.logger.Warn().Err(err).Str(logKeyProvider, name).Int("texts", len(texts)).Msg("embedding provider failed")

			continue
		}

		e.breaker.Success()
		observeTexts(name, len(texts))

		if name != primary {
			observeFallback(primary, name)
		}

		for i := range vectors {
			vectors[i] = FitDimensions(vectors[i], r.dimensions)
		}

		return Batch{Vectors: vectors, Provider: e.provider.Name(), Fallback: name != primary}, nil
	}

	if len(errs) == 0 {
		return Batch{}, ErrNoProvidersAvailable
	}

	return Batch{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func embedInChunks(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	size := p.MaxBatchSize()
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))

		vectors, err := p.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}

		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrVectorCountMismatch, len(vectors), end-start)
		}

		out = append(out, vectors...)
	}

	return out, nil
}

// Dimensions is the size of every returned vector.
func (r *Registry) Dimensions() int {
	return r.dimensions
}

// ProviderNames lists providers in the order they are tried.
func (r *Registry) ProviderNames() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]ProviderName, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.provider.Name()
	}

	return names
}
