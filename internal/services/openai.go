package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIService implements LLMService for any OpenAI-compatible chat completions
// endpoint: OpenAI itself, llama.cpp server, LM Studio, vLLM.
type OpenAIService struct {
	baseURL    string
	apiKey     string
	modelName  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ LLMService = (*OpenAIService)(nil)

type openAIChatRequest struct {
	Model         string             `json:"model"`
	Messages      []chat.ChatMessage `json:"messages"`
	Temperature   float64            `json:"temperature"`
	MaxTokens     int                `json:"max_tokens,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates a client. An empty baseURL selects api.openai.com.
func NewOpenAIService(baseURL, apiKey, modelName string, logger *slog.Logger) *OpenAIService {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		modelName:  modelName,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// InitModel is a no-op; compatible servers load their model at startup
func (c *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// Complete runs a chat completion, reading SSE deltas when onChunk is set
func (c *OpenAIService) Complete(ctx context.Context, req chat.CompletionRequest, onChunk chat.ChunkFunc) (*chat.CompletionResponse, error) {
	body := openAIChatRequest{
		Model:       c.modelName,
		Messages:    req.WithSystem(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      onChunk != nil,
	}
	if body.Stream {
		body.StreamOptions = &struct {
			IncludeUsage bool `json:"include_usage"`
		}{IncludeUsage: true}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	if !body.Stream {
		var out openAIChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if out.Error != nil {
			return nil, fmt.Errorf("API error: %s", out.Error.Message)
		}
		if len(out.Choices) == 0 {
			return nil, fmt.Errorf("no choices returned from API")
		}
		if refusal := out.Choices[0].Message.Refusal; refusal != "" {
			return nil, fmt.Errorf("model refused to respond: %s", refusal)
		}
		result := &chat.CompletionResponse{Text: out.Choices[0].Message.Content}
		if out.Usage != nil {
			result.Usage = chat.Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens}
		}
		return result, nil
	}

	var text strings.Builder
	result := &chat.CompletionResponse{}
	err = readSSE(resp.Body, func(_, data string) error {
		if data == "[DONE]" {
			return errStopStream
		}
		var chunk openAIChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("API error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			result.Usage = chat.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			text.WriteString(chunk.Choices[0].Delta.Content)
			onChunk(chunk.Choices[0].Delta.Content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Text = text.String()

	c.logger.Debug("OpenAI-compatible completion finished",
		"model", c.modelName,
		"output_tokens", result.Usage.OutputTokens)
	return result, nil
}
