package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider returns scripted replies for local development and tests.
// With no script left it echoes the last user message, or reports readiness
// on an opening turn.
type MockProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []Request
}

// NewMockProvider creates a mock with the given scripted replies
func NewMockProvider(replies ...string) *MockProvider {
	return &MockProvider{replies: replies}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	return ProviderMock
}

// FailWith makes every following call fail with err
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns copies of the requests received so far
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	for i, r := range m.requests {
		r.Messages = append([]Message(nil), r.Messages...)
		out[i] = r
	}
	return out
}

// Complete records the request and returns the next reply in a chat-completion shape
func (m *MockProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, Request{
		Model:       request.Model,
		Messages:    append([]Message(nil), request.Messages...),
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	})

	if m.err != nil {
		return nil, m.err
	}

	var reply string
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	} else {
		reply = echo(request.Messages)
	}

	return &Response{
		Provider: m.Name(),
		Raw: map[string]any{
			"choices": []any{
				map[string]any{
					"index":   0,
					"message": map[string]any{"role": "assistant", "content": reply},
				},
			},
		},
	}, nil
}

func echo(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return fmt.Sprintf("[mock] you said: %s", messages[i].Content)
		}
	}
	return "[mock] ready"
}
