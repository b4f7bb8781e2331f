package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request captures the normalized completion input the manager hands to a
// provider.
type Request struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed (non-streaming) provider answer. Provider and
// Model identify which link of the fallback chain served it; Cached marks
// answers served from the manager's response cache.
type Response struct {
	Content  string        `json:"content"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Usage    Usage         `json:"usage"`
	Cached   bool          `json:"cached,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Chunk is one streamed content fragment. Done marks the final chunk.
type Chunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done,omitempty"`
}

// Provider is the uniform capability the manager needs from each model
// vendor: complete a request, or stream it chunk by chunk. Stream
// implementations must close the error channel no later than the chunk
// channel so consumers can drain a terminal error after the stream ends.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, req Request) (*Response, error)
	Stream(ctx context.Context, model string, req Request) (<-chan Chunk, <-chan error)
}

// MockProvider is a lightweight in-memory Provider useful for tests and
// examples. It can serve canned responses, fail a configurable number of
// times, and records every call.
type MockProvider struct {
	name string

	mu        sync.Mutex
	responses map[string]string
	failures  int
	failErr   error
	calls     int
}

// NewMockProvider constructs a MockProvider with the given vendor name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, responses: make(map[string]string)}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return m.name }

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailTimes makes the next n calls return err before recovering.
func (m *MockProvider) FailTimes(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failErr = err
}

// Calls reports how many Complete/Stream invocations the provider served.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) respond(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return "", m.failErr
	}
	var prompt string
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	full := m.responses[prompt]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", prompt)
	}
	return full, nil
}

// Complete implements Provider.
func (m *MockProvider) Complete(_ context.Context, model string, req Request) (*Response, error) {
	content, err := m.respond(req)
	if err != nil {
		return nil, err
	}
	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(msg.Content) / 4
	}
	completionTokens := len(content) / 4
	return &Response{
		Content:  content,
		Provider: m.name,
		Model:    model,
		Usage:    Usage{PromptTokens: promptTokens, CompletionTokens: completionTokens, TotalTokens: promptTokens + completionTokens},
	}, nil
}

// Stream implements Provider; emits word-sized chunks then a final Done chunk.
func (m *MockProvider) Stream(ctx context.Context, _ string, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		content, err := m.respond(req)
		if err != nil {
			errCh <- err
			return
		}
		for _, r := range content {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{Content: string(r)}:
			}
		}
		out <- Chunk{Done: true}
	}()
	return out, errCh
}
