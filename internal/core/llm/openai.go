package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	defaultOpenAIModel     = "gpt-4o-mini"
	modelPrefixGPT         = "gpt-"
	openaiRateLimiterBurst = 5
	openaiMockAPIKey       = "mock"

	schemaInstructionFmt = "\n\nRespond with a single JSON object matching this JSON schema:\n%s"
)

// OpenAIConfig configures the OpenAI chat provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	RateLimit   int
	Priority    int
}

// OpenAIProvider generates with chat completions in JSON object mode.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	priority    int
	available   bool
	rateLimiter *rate.Limiter
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	model := cfg.Model
	if !strings.HasPrefix(model, modelPrefixGPT) {
		model = defaultOpenAIModel
	}

	return &OpenAIProvider{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		priority:    cfg.Priority,
		available:   cfg.APIKey != "" && cfg.APIKey != openaiMockAPIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)), openaiRateLimiterBurst),
	}
}

func (p *OpenAIProvider) Name() ProviderName { return ProviderOpenAI }
func (p *OpenAIProvider) IsAvailable() bool  { return p.available }
func (p *OpenAIProvider) Priority() int      { return p.priority }

// Complete embeds the schema in the prompt since JSON object mode does not
// take one.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, schema *Schema) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: withSchemaInstruction(prompt, schema),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf(errFmtCompletion, ProviderOpenAI, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyLLMResponse
	}

	return resp.Choices[0].Message.Content, nil
}

func withSchemaInstruction(prompt string, schema *Schema) string {
	if schema == nil {
		return prompt
	}

	return prompt + fmt.Sprintf(schemaInstructionFmt, schema.String())
}

var _ Provider = (*OpenAIProvider)(nil)
