package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
)

// LLMService defines the interface for interacting with a completion provider
type LLMService interface {
	// InitModel prepares the model on startup (pulling it if the provider supports that)
	InitModel(ctx context.Context, modelName string) error

	// Complete runs one completion. When onChunk is non-nil and the provider can
	// stream, incremental text is delivered to it before Complete returns.
	Complete(ctx context.Context, req chat.CompletionRequest, onChunk chat.ChunkFunc) (*chat.CompletionResponse, error)
}

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ProviderOptions carries what NewLLMService needs for any provider.
type ProviderOptions struct {
	Provider     string
	ModelName    string
	OllamaURL    string
	OpenAIURL    string
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
}

// NewLLMService builds the provider named in opts.
func NewLLMService(ctx context.Context, opts ProviderOptions, logger *slog.Logger) (LLMService, error) {
	switch opts.Provider {
	case ProviderOllama, "":
		return NewOllamaService(opts.OllamaURL, opts.ModelName, logger), nil
	case ProviderOpenAI:
		return NewOpenAIService(opts.OpenAIURL, opts.OpenAIKey, opts.ModelName, logger), nil
	case ProviderAnthropic:
		return NewAnthropicService(opts.AnthropicKey, opts.ModelName, logger), nil
	case ProviderGemini:
		return NewGeminiService(ctx, opts.GeminiKey, opts.ModelName, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
	}
}
