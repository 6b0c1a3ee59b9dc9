package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	CompleteFunc  func(ctx context.Context, req chat.CompletionRequest) (*chat.CompletionResponse, error)

	// Chunks, when set, are streamed to onChunk before the response is returned
	Chunks []string

	// Track calls for testing
	InitModelCalls []string
	CompleteCalls  []chat.CompletionRequest

	mu sync.Mutex // protects all fields above
}

var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls: make([]string, 0),
		CompleteCalls:  make([]chat.CompletionRequest, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Complete mocks a completion. Without CompleteFunc it answers "LOOK".
func (m *MockLLMAPI) Complete(ctx context.Context, req chat.CompletionRequest, onChunk chat.ChunkFunc) (*chat.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	fn := m.CompleteFunc
	chunks := append([]string(nil), m.Chunks...)
	m.mu.Unlock()

	if onChunk != nil {
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			onChunk(c)
		}
	}

	if fn != nil {
		return fn(ctx, req)
	}
	return &chat.CompletionResponse{Text: "LOOK"}, nil
}

// SetResponses makes successive Complete calls return texts in order,
// repeating the last one once they run out.
func (m *MockLLMAPI) SetResponses(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var i int
	var calls sync.Mutex
	m.CompleteFunc = func(ctx context.Context, req chat.CompletionRequest) (*chat.CompletionResponse, error) {
		calls.Lock()
		defer calls.Unlock()
		if len(texts) == 0 {
			return &chat.CompletionResponse{}, nil
		}
		text := texts[min(i, len(texts)-1)]
		i++
		return &chat.CompletionResponse{Text: text}, nil
	}
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLMAPI) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// SetCompleteError sets up the mock to return an error on Complete
func (m *MockLLMAPI) SetCompleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = func(ctx context.Context, req chat.CompletionRequest) (*chat.CompletionResponse, error) {
		return nil, err
	}
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.CompleteCalls = make([]chat.CompletionRequest, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]string, []chat.CompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	completeCalls := make([]chat.CompletionRequest, len(m.CompleteCalls))
	copy(completeCalls, m.CompleteCalls)

	return initCalls, completeCalls
}
