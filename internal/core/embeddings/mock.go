package embeddings

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
)

// MockProvider derives vectors from a hash of the text, so equal texts get
// equal vectors. Used when no provider has credentials, and in tests.
type MockProvider struct {
	dimensions int
}

// NewMockProvider returns a mock producing DefaultDimensions vectors.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithDimensions(DefaultDimensions)
}

// NewMockProviderWithDimensions returns a mock producing vectors of size dims.
func NewMockProviderWithDimensions(dims int) *MockProvider {
	return &MockProvider{dimensions: dims}
}

func (p *MockProvider) Name() ProviderName { return ProviderMock }

func (p *MockProvider) MaxBatchSize() int { return 0 }

// Embed never fails.
func (p *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vector(text)
	}

	return out, nil
}

func (p *MockProvider) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // deterministic test vectors

	vec := make([]float32, p.dimensions)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}

	return Normalize(vec)
}
