package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	ModelTextEmbedding3Small = "text-embedding-3-small"
	ModelTextEmbedding3Large = "text-embedding-3-large"

	openaiMaxBatchSize = 2048
)

// ErrIncompleteResponse means a provider returned fewer vectors than texts.
var ErrIncompleteResponse = errors.New("incomplete embedding response")

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// Dimensions is sent as the text-embedding-3 "dimensions" parameter.
	Dimensions int
	RateLimit  int
}

// OpenAIProvider calls the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	throttle   throttle
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelTextEmbedding3Small
	}

	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	return &OpenAIProvider{
		client:     openai.NewClient(cfg.APIKey),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		throttle:   newThrottle(cfg.RateLimit),
	}
}

func (p *OpenAIProvider) Name() ProviderName { return ProviderOpenAI }

func (p *OpenAIProvider) MaxBatchSize() int { return openaiMaxBatchSize }

// Embed sends one request. Results are placed by their response index since
// the API does not promise response order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.throttle.wait(ctx); err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}

	// Older models reject the dimensions parameter.
	if strings.HasPrefix(p.model, "text-embedding-3") {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(texts))

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: openai index %d out of range", ErrIncompleteResponse, d.Index)
		}

		out[d.Index] = d.Embedding
	}

	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: openai missing vector %d of %d", ErrIncompleteResponse, i, len(texts))
		}
	}

	return out, nil
}
