package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
)

func TestOpenAIService_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Nil(t, req.StreamOptions)
		assert.Equal(t, 30, req.MaxTokens)

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Try the window."},"finish_reason":"stop"}],"usage":{"prompt_tokens":80,"completion_tokens":4}}`)
	}))
	defer server.Close()

	service := NewOpenAIService(server.URL+"/v1/", "sk-test", "local-model", discardLogger())
	resp, err := service.Complete(context.Background(), chat.CompletionRequest{
		Messages:  []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Behind House"}},
		MaxTokens: 30,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Try the window.", resp.Text)
	assert.Equal(t, chat.Usage{InputTokens: 80, OutputTokens: 4}, resp.Usage)
}

func TestOpenAIService_CompleteStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"EXAMINE\"}}]}\n\n")
		_, _ = io.WriteString(w, ": keepalive\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" LEAFLET\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":2}}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	service := NewOpenAIService(server.URL, "", "local-model", discardLogger())
	var chunks []string
	resp, err := service.Complete(context.Background(), chat.CompletionRequest{
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "West of House"}},
	}, func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.Equal(t, "EXAMINE LEAFLET", resp.Text)
	assert.Equal(t, []string{"EXAMINE", " LEAFLET"}, chunks)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestOpenAIService_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	service := NewOpenAIService(server.URL, "", "local-model", discardLogger())
	_, err := service.Complete(context.Background(), chat.CompletionRequest{
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "hi"}},
	}, nil)
	assert.Error(t, err)
}

func TestNewLLMService(t *testing.T) {
	svc, err := NewLLMService(context.Background(), ProviderOptions{Provider: ProviderOllama, OllamaURL: "http://localhost:11434", ModelName: "m"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &OllamaService{}, svc)

	svc, err = NewLLMService(context.Background(), ProviderOptions{Provider: ProviderOpenAI, ModelName: "m"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIService{}, svc)

	svc, err = NewLLMService(context.Background(), ProviderOptions{Provider: ProviderAnthropic, AnthropicKey: "k", ModelName: "m"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &AnthropicService{}, svc)

	_, err = NewLLMService(context.Background(), ProviderOptions{Provider: ProviderGemini}, discardLogger())
	assert.Error(t, err)

	_, err = NewLLMService(context.Background(), ProviderOptions{Provider: "venice"}, discardLogger())
	assert.Error(t, err)
}
