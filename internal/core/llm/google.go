package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const (
	defaultGoogleModel     = "gemini-2.5-flash"
	modelPrefixGemini      = "gemini"
	googleRateLimiterBurst = 5
	jsonMIMEType           = "application/json"
)

// GoogleConfig configures the Gemini provider.
type GoogleConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	RateLimit   int
	Priority    int
}

// GoogleProvider generates with Gemini using native structured output.
type GoogleProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	priority    int
	rateLimiter *rate.Limiter
}

// NewGoogleProvider creates a new Google Gemini LLM provider.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating google genai client: %w", err)
	}

	model := cfg.Model
	if !strings.HasPrefix(model, modelPrefixGemini) {
		model = defaultGoogleModel
	}

	return &GoogleProvider{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		priority:    cfg.Priority,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)), googleRateLimiterBurst),
	}, nil
}

// Close closes the Google client.
func (p *GoogleProvider) Close() error {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("closing google genai client: %w", err)
		}
	}

	return nil
}

func (p *GoogleProvider) Name() ProviderName { return ProviderGoogle }
func (p *GoogleProvider) IsAvailable() bool  { return p.client != nil }
func (p *GoogleProvider) Priority() int      { return p.priority }

// Complete sends the prompt with the response schema attached.
func (p *GoogleProvider) Complete(ctx context.Context, prompt string, schema *Schema) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	genModel := p.client.GenerativeModel(p.model)
	genModel.SetTemperature(p.temperature)
	genModel.ResponseMIMEType = jsonMIMEType

	if schema != nil {
		genModel.ResponseSchema = schema.toGenai()
	}

	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf(errFmtCompletion, ProviderGoogle, err)
	}

	text := extractGoogleResponseText(resp)
	if text == "" {
		return "", ErrEmptyLLMResponse
	}

	return text, nil
}

func extractGoogleResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var result strings.Builder

	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					result.WriteString(string(text))
				}
			}
		}
	}

	return result.String()
}

var _ Provider = (*GoogleProvider)(nil)
