package mocks

import (
	"context"
	"strings"
	"sync"

	"illustrator/pkg/backend"
)

// MockLLMClient implements backend.LLMClient for testing.
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockLLMClient struct {
	// CompleteFunc is called when Complete is invoked. Override to customize behavior.
	CompleteFunc func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error)

	// StreamFunc is called when Stream is invoked. Override to customize behavior.
	StreamFunc func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error)

	// CompleteCalls tracks all calls to Complete for verification.
	CompleteCalls []backend.CompletionRequest

	// StreamCalls tracks all calls to Stream for verification.
	StreamCalls []backend.CompletionRequest

	modelName string

	// mu protects call tracking slices
	mu sync.Mutex
}

// NewMockLLMClient creates a mock that answers every call with an empty JSON object.
func NewMockLLMClient() *MockLLMClient {
	m := &MockLLMClient{modelName: "mock-model"}
	m.RespondWith("{}")
	m.StreamFunc = func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
		return backend.StreamFromComplete(ctx, m, req), nil
	}
	return m
}

// Complete implements backend.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	fn := m.CompleteFunc
	m.mu.Unlock()
	return fn(ctx, req)
}

// Stream implements backend.LLMClient.
func (m *MockLLMClient) Stream(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, req)
	fn := m.StreamFunc
	m.mu.Unlock()
	return fn(ctx, req)
}

// GetModelName implements backend.LLMClient.
func (m *MockLLMClient) GetModelName() string {
	return m.modelName
}

// --- Configuration methods ---

// SetModelName sets the model name returned by GetModelName.
func (m *MockLLMClient) SetModelName(name string) {
	m.modelName = name
}

// OnComplete sets a custom handler for Complete calls.
func (m *MockLLMClient) OnComplete(fn func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = fn
}

// --- Error simulation helpers ---

// FailCompleteWith configures Complete to return err.
func (m *MockLLMClient) FailCompleteWith(err error) {
	m.OnComplete(func(_ context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
		return backend.CompletionResponse{}, err
	})
}

// --- Response helpers ---

// RespondWith configures Complete to return content.
func (m *MockLLMClient) RespondWith(content string) {
	m.OnComplete(func(_ context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
		return backend.CompletionResponse{Content: content, StopReason: "end_turn"}, nil
	})
}

// RespondWithSequence returns each content in turn, repeating the last one.
func (m *MockLLMClient) RespondWithSequence(contents ...string) {
	var mu sync.Mutex
	callIndex := 0
	m.OnComplete(func(_ context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		content := contents[min(callIndex, len(contents)-1)]
		callIndex++
		return backend.CompletionResponse{Content: content, StopReason: "end_turn"}, nil
	})
}

// --- Verification helpers ---

// Reset clears all recorded calls.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = nil
	m.StreamCalls = nil
}

// GetCompleteCallCount returns the number of times Complete was called.
func (m *MockLLMClient) GetCompleteCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CompleteCalls)
}

// LastCompleteCall returns the most recent Complete request, or nil if none.
func (m *MockLLMClient) LastCompleteCall() *backend.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CompleteCalls) == 0 {
		return nil
	}
	return &m.CompleteCalls[len(m.CompleteCalls)-1]
}

// AssertCompleteCalledWith reports whether any Complete message contained substr.
func (m *MockLLMClient) AssertCompleteCalledWith(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.CompleteCalls {
		for _, msg := range call.Messages {
			if strings.Contains(msg.Content, substr) {
				return true
			}
		}
	}
	return false
}
