package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/resilience"
)

var errUpstream = errors.New("upstream unavailable")

type namedMock struct {
	*MockProvider
	name     ProviderName
	priority int
}

func (n namedMock) Name() ProviderName { return n.name }
func (n namedMock) Priority() int      { return n.priority }

func summarySchema() *Schema {
	return &Schema{
		Type:     TypeObject,
		Required: []string{"tldr", "items"},
		Properties: map[string]*Schema{
			"tldr": {Type: TypeString},
			"items": {
				Type:  TypeArray,
				Items: &Schema{Type: TypeString},
			},
		},
	}
}

func newRegistry(providers ...Provider) *Registry {
	logger := zerolog.Nop()
	r := NewRegistry(&logger)

	for _, p := range providers {
		r.Register(p, resilience.DefaultConfig())
	}

	return r
}

func TestGenerate_ExtractsFromProse(t *testing.T) {
	mock := &MockProvider{Respond: func(string, *Schema) (string, error) {
		return "Sure!\n```json\n{\"tldr\":\"x\",\"items\":[\"a\"]}\n```", nil
	}}

	got, err := newRegistry(mock).Generate(context.Background(), "prompt", summarySchema())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tldr":"x","items":["a"]}`, string(got))
}

func TestGenerate_MalformedFallsBack(t *testing.T) {
	bad := namedMock{
		MockProvider: &MockProvider{Respond: func(string, *Schema) (string, error) { return "not json at all", nil }},
		name:         ProviderGoogle,
		priority:     PriorityPrimary,
	}
	good := namedMock{
		MockProvider: &MockProvider{Respond: func(string, *Schema) (string, error) { return `{"tldr":"ok","items":[]}`, nil }},
		name:         ProviderOpenAI,
		priority:     PriorityFallback,
	}

	got, err := newRegistry(good, bad).Generate(context.Background(), "prompt", summarySchema())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tldr":"ok","items":[]}`, string(got))
	assert.Equal(t, 1, bad.Calls)
	assert.Equal(t, 1, good.Calls)
}

func TestGenerate_AllMalformed(t *testing.T) {
	mock := &MockProvider{Respond: func(string, *Schema) (string, error) { return `{"tldr":5}`, nil }}

	_, err := newRegistry(mock).Generate(context.Background(), "prompt", summarySchema())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, coreerrors.ErrMalformedResponse)
}

func TestGenerate_ProviderError(t *testing.T) {
	mock := &MockProvider{Respond: func(string, *Schema) (string, error) { return "", errUpstream }}

	_, err := newRegistry(mock).Generate(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, errUpstream)
}

func TestGenerate_NoProviders(t *testing.T) {
	_, err := newRegistry().Generate(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
}

func TestMockProvider_SkeletonSatisfiesSchema(t *testing.T) {
	got, err := newRegistry(NewMockProvider()).Generate(context.Background(), "prompt", summarySchema())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tldr":"","items":[]}`, string(got))
}

func TestSchemaValidate(t *testing.T) {
	s := summarySchema()

	require.NoError(t, s.Validate([]byte(`{"tldr":"a","items":["b"],"extra":1}`)))
	assert.ErrorIs(t, s.Validate([]byte(`{"tldr":"a"}`)), coreerrors.ErrMalformedResponse)
	assert.ErrorIs(t, s.Validate([]byte(`{"tldr":"a","items":[1]}`)), coreerrors.ErrMalformedResponse)
	assert.ErrorIs(t, s.Validate([]byte(`[`)), coreerrors.ErrMalformedResponse)
}

func TestNewRegistryFromConfig_MockWithoutKeys(t *testing.T) {
	logger := zerolog.Nop()

	r := NewRegistryFromConfig(context.Background(), Config{}, &logger)
	assert.Equal(t, []ProviderName{ProviderMock}, r.ProviderNames())
}

func TestNewRegistryFromConfig_Order(t *testing.T) {
	logger := zerolog.Nop()

	r := NewRegistryFromConfig(context.Background(), Config{
		OpenAIAPIKey:    "sk-test",
		AnthropicAPIKey: "ak-test",
		ProviderOrder:   "anthropic, openai",
	}, &logger)

	assert.Equal(t, []ProviderName{ProviderAnthropic, ProviderOpenAI}, r.ProviderNames())
}

func TestModelFor(t *testing.T) {
	assert.Equal(t, "gemini-2.5-pro", modelFor(ProviderGoogle, "gemini-2.5-pro"))
	assert.Empty(t, modelFor(ProviderOpenAI, "gemini-2.5-pro"))
	assert.Equal(t, "gpt-4.1-mini", modelFor(ProviderOpenAI, "gpt-4.1-mini"))
	assert.Equal(t, "claude-sonnet-4-5", modelFor(ProviderAnthropic, "claude-sonnet-4-5"))
	assert.Empty(t, modelFor(ProviderAnthropic, ""))
}
