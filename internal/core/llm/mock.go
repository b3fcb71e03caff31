package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockProvider returns canned responses. Without a Respond func it answers
// with the smallest document that satisfies the schema.
type MockProvider struct {
	Respond func(prompt string, schema *Schema) (string, error)
	Calls   int

	mu sync.Mutex
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() ProviderName { return ProviderMock }
func (p *MockProvider) IsAvailable() bool  { return true }
func (p *MockProvider) Priority() int      { return PriorityMock }

func (p *MockProvider) Complete(_ context.Context, prompt string, schema *Schema) (string, error) {
	p.mu.Lock()
	p.Calls++
	p.mu.Unlock()

	if p.Respond != nil {
		return p.Respond(prompt, schema)
	}

	if schema == nil {
		return "{}", nil
	}

	b, err := json.Marshal(schema.skeleton())
	if err != nil {
		return "", fmt.Errorf("mock skeleton: %w", err)
	}

	return string(b), nil
}

var _ Provider = (*MockProvider)(nil)
