package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

const (
	defaultAnthropicModel     = "claude-haiku-4-5"
	modelPrefixClaude         = "claude"
	anthropicRateLimiterBurst = 5
	anthropicMaxTokens        = 4096
)

// AnthropicConfig configures the Claude provider.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	RateLimit   int
	Priority    int
}

// AnthropicProvider generates with the Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	temperature float32
	priority    int
	available   bool
	rateLimiter *rate.Limiter
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	model := cfg.Model
	if !strings.HasPrefix(model, modelPrefixClaude) {
		model = defaultAnthropicModel
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       model,
		temperature: cfg.Temperature,
		priority:    cfg.Priority,
		available:   cfg.APIKey != "",
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)), anthropicRateLimiterBurst),
	}
}

func (p *AnthropicProvider) Name() ProviderName { return ProviderAnthropic }
func (p *AnthropicProvider) IsAvailable() bool  { return p.available }
func (p *AnthropicProvider) Priority() int      { return p.priority }

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, schema *Schema) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(float64(p.temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(withSchemaInstruction(prompt, schema))),
		},
	})
	if err != nil {
		return "", fmt.Errorf(errFmtCompletion, ProviderAnthropic, err)
	}

	var sb strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", ErrEmptyLLMResponse
	}

	return sb.String(), nil
}

var _ Provider = (*AnthropicProvider)(nil)
