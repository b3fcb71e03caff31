package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ProviderName identifies an embedding backend.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderGoogle ProviderName = "google"
	ProviderMock   ProviderName = "mock"
)

// DefaultDimensions matches text-embedding-3-small and the message_vectors column.
const DefaultDimensions = 1536

const limiterBurst = 5

// Provider turns texts into vectors. Implementations must return exactly one
// vector per text, in input order.
type Provider interface {
	Name() ProviderName
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// MaxBatchSize is the per-request text limit; zero means unlimited.
	MaxBatchSize() int
}

// throttle wraps a per-provider rate limiter.
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(rps int) throttle {
	if rps <= 0 {
		rps = 1
	}

	return throttle{limiter: rate.NewLimiter(rate.Limit(rps), limiterBurst)}
}

func (t throttle) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	return nil
}
