package embeddings

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	ModelGeminiEmbedding001 = "gemini-embedding-001"

	googleMaxBatchSize = 100
)

// GoogleConfig configures the Gemini provider.
type GoogleConfig struct {
	APIKey    string
	Model     string
	RateLimit int
}

// GoogleProvider calls Gemini batchEmbedContents. Its 3072-wide vectors are
// truncated to the target size by the registry.
type GoogleProvider struct {
	client   *genai.Client
	model    string
	throttle throttle
}

func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.Model == "" {
		cfg.Model = ModelGeminiEmbedding001
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating google genai client: %w", err)
	}

	return &GoogleProvider{client: client, model: cfg.Model, throttle: newThrottle(cfg.RateLimit)}, nil
}

func (p *GoogleProvider) Name() ProviderName { return ProviderGoogle }

func (p *GoogleProvider) MaxBatchSize() int { return googleMaxBatchSize }

func (p *GoogleProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.throttle.wait(ctx); err != nil {
		return nil, err
	}

	model := p.client.EmbeddingModel(p.model)
	model.TaskType = genai.TaskTypeSemanticSimilarity

	batch := model.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("google embeddings: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: google returned a short batch", ErrIncompleteResponse)
	}

	out := make([][]float32, len(texts))

	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: google missing vector %d", ErrIncompleteResponse, i)
		}

		out[i] = e.Values
	}

	return out, nil
}

// Close releases the gRPC connection.
func (p *GoogleProvider) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("closing google embedding client: %w", err)
	}

	return nil
}
