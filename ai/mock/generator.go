package mock

import (
	"context"
	"sync"
)

// DefaultGenerationModel is the model identity reported by MockGenerator.
const DefaultGenerationModel = "mock-generator"

// DefaultReply is what MockGenerator answers when no GenerateFunc is set.
const DefaultReply = "mock answer"

// MockGenerator is a test double for ai.Generator.
// It records every prompt it receives.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a mock generator that answers DefaultReply.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Model returns DefaultGenerationModel.
func (m *MockGenerator) Model() string {
	return DefaultGenerationModel
}

// Generate records prompt and returns the injected or default reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return DefaultReply, nil
}

// Prompts returns a copy of the prompts received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Reset clears recorded prompts and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.GenerateFunc = nil
}
