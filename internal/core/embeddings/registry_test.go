package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-digest/internal/core/resilience"
)

var errProviderDown = errors.New("provider down")

type stubProvider struct {
	name     ProviderName
	tag      float32
	maxBatch int
	err      error
	calls    [][]string
}

func (s *stubProvider) Name() ProviderName { return s.name }
func (s *stubProvider) MaxBatchSize() int  { return s.maxBatch }

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, append([]string(nil), texts...))

	if s.err != nil {
		return nil, s.err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), s.tag}
	}

	return out, nil
}

func newTestRegistry(dims int, providers ...Provider) *Registry {
	logger := zerolog.Nop()
	r := NewRegistry(dims, &logger)

	for _, p := range providers {
		r.Register(p, resilience.DefaultConfig())
	}

	return r
}

func TestRegistryEmbed_EmptyInput(t *testing.T) {
	r := newTestRegistry(4, &stubProvider{name: ProviderOpenAI})

	got, err := r.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRegistryEmbed_NoProviders(t *testing.T) {
	_, err := newTestRegistry(4).Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrNoProvidersAvailable)
}

func TestRegistryEmbed_PreservesOrderAcrossChunks(t *testing.T) {
	p := &stubProvider{name: ProviderOpenAI, maxBatch: 2}
	r := newTestRegistry(4, p)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	got, err := r.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))

	for i, text := range texts {
		assert.Len(t, got[i], 4, "vectors are padded to the target size")
		assert.InDelta(t, float32(len(text)), got[i][0], 0.0001)
	}

	assert.Len(t, p.calls, 3)
}

func TestRegistryEmbed_FallsBackInRegistrationOrder(t *testing.T) {
	primary := &stubProvider{name: ProviderGoogle, tag: 1, err: errProviderDown}
	fallback := &stubProvider{name: ProviderOpenAI, tag: 2}

	r := newTestRegistry(2, primary, fallback)
	assert.Equal(t, []ProviderName{ProviderGoogle, ProviderOpenAI}, r.ProviderNames())

	got, err := r.Embed(context.Background(), []string{"x", "yy"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, v := range got {
		assert.InDelta(t, float32(2), v[1], 0.0001, "whole batch comes from one provider")
	}

	assert.Len(t, primary.calls, 1)
	assert.Len(t, fallback.calls, 1)
}

func TestRegistryEmbedBatch_ReportsProvider(t *testing.T) {
	primary := &stubProvider{name: ProviderOpenAI, tag: 1}
	fallback := &stubProvider{name: ProviderGoogle, tag: 2}
	r := newTestRegistry(2, primary, fallback)

	got, err := r.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, got.Provider)
	assert.False(t, got.Fallback)

	primary.err = errProviderDown

	got, err = r.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, got.Provider)
	assert.True(t, got.Fallback)
	require.Len(t, got.Vectors, 1)
	assert.InDelta(t, float32(2), got.Vectors[0][1], 0.0001)
}

func TestRegistryEmbed_AllFail(t *testing.T) {
	r := newTestRegistry(2, &stubProvider{name: ProviderOpenAI, err: errProviderDown})

	_, err := r.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, errProviderDown)
}

func TestRegistryEmbed_CountMismatch(t *testing.T) {
	short := &shortProvider{}
	r := newTestRegistry(2, short)

	_, err := r.Embed(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, ErrVectorCountMismatch)
}

type shortProvider struct{}

func (shortProvider) Name() ProviderName { return ProviderMock }
func (shortProvider) MaxBatchSize() int  { return 0 }

func (shortProvider) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}

func TestRegistryEmbed_SkipsOpenCircuit(t *testing.T) {
	logger := zerolog.Nop()
	r := NewRegistry(2, &logger)
	primary := &stubProvider{name: ProviderOpenAI, err: errProviderDown}
	fallback := &stubProvider{name: ProviderGoogle}
	cfg := resilience.Config{Threshold: 1, ResetAfter: time.Hour}

	r.Register(primary, cfg)
	r.Register(fallback, cfg)

	_, err := r.Embed(context.Background(), []string{"first"})
	require.NoError(t, err)

	_, err = r.Embed(context.Background(), []string{"second"})
	require.NoError(t, err)

	assert.Len(t, primary.calls, 1, "open circuit skips the failing provider")
	assert.Len(t, fallback.calls, 2)
}

func TestRegistry_DuplicateIgnored(t *testing.T) {
	r := newTestRegistry(2, &stubProvider{name: ProviderOpenAI}, &stubProvider{name: ProviderOpenAI})
	assert.Equal(t, []ProviderName{ProviderOpenAI}, r.ProviderNames())
}

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProviderWithDimensions(8)

	a, err := p.Embed(context.Background(), []string{"same", "other", "same"})
	require.NoError(t, err)

	assert.Equal(t, a[0], a[2])
	assert.NotEqual(t, a[0], a[1])
	assert.Len(t, a[0], 8)

	var sum float64
	for _, v := range a[0] {
		sum += float64(v) * float64(v)
	}

	assert.InDelta(t, 1.0, sum, 1e-4, "unit length")
}

func TestNewClient_FallsBackToMock(t *testing.T) {
	logger := zerolog.Nop()

	c, closers := NewClient(context.Background(), Config{Dimensions: 16, ProviderOrder: "openai, google"}, &logger)
	assert.Empty(t, closers)
	assert.Equal(t, []ProviderName{ProviderMock}, c.ProviderNames())

	got, err := c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 16)
}

func TestParseProviderOrder(t *testing.T) {
	assert.Equal(t, []string{"openai", "google"}, ParseProviderOrder(""))
	assert.Equal(t, []string{"google", "openai"}, ParseProviderOrder(" Google ,, OPENAI "))
}

func TestFitDimensions(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 0}, FitDimensions([]float32{1, 2}, 3))
	assert.Equal(t, []float32{1, 2}, FitDimensions([]float32{1, 2, 3}, 2))
}
