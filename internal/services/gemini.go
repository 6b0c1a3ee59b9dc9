package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
)

// GeminiService implements LLMService on the Google generative AI client
type GeminiService struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

var _ LLMService = (*GeminiService)(nil)

// NewGeminiService creates the underlying client; Close releases it.
func NewGeminiService(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiService{client: client, modelName: modelName, logger: logger}, nil
}

func (g *GeminiService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// Close releases resources held by the client.
func (g *GeminiService) Close() error {
	return g.client.Close()
}

// geminiHistory converts chat messages into Gemini contents. Gemini calls the
// assistant role "model".
func geminiHistory(messages []chat.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == chat.ChatRoleAgent {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return contents
}

func geminiText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String()
}

// Complete sends the last message on a chat session seeded with the rest as history
func (g *GeminiService) Complete(ctx context.Context, req chat.CompletionRequest, onChunk chat.ChunkFunc) (*chat.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	history := geminiHistory(req.Messages)
	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	last := history[len(history)-1].Parts

	result := &chat.CompletionResponse{}
	if onChunk == nil {
		resp, err := cs.SendMessage(ctx, last...)
		if err != nil {
			return nil, fmt.Errorf("gemini request failed: %w", err)
		}
		result.Text = geminiText(resp)
		if resp.UsageMetadata != nil {
			result.Usage = chat.Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}
		return result, nil
	}

	var text strings.Builder
	iter := cs.SendMessageStream(ctx, last...)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini stream failed: %w", err)
		}
		if chunk := geminiText(resp); chunk != "" {
			text.WriteString(chunk)
			onChunk(chunk)
		}
		if resp.UsageMetadata != nil {
			result.Usage = chat.Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}
	}
	result.Text = text.String()
	g.logger.Debug("Gemini completion finished", "model", g.modelName, "output_tokens", result.Usage.OutputTokens)
	return result, nil
}
