package llm

import (
	"context"
	"sync"
)

// MockClient is a Client for tests that records prompts and replays canned replies.
type MockClient struct {
	CompleteFn func(ctx context.Context, systemPrompt, prompt string) (string, error)
	Prompts    []string
	mu         sync.Mutex
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, systemPrompt, prompt)
	}
	return "{}", nil
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

var _ Client = (*MockClient)(nil)
