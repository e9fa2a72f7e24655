package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers. It is safe for concurrent
// use. Responses are served in order; the last one repeats.
type MockProvider struct {
	Responses []string
	Err       error

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given responses.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}

	var content string
	if len(m.Responses) > 0 {
		content = m.Responses[min(n, len(m.Responses))-1]
	}
	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}
