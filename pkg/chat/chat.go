package chat

import (
	"fmt"
)

const (
	ChatRoleUser   = "user"      // Game text and instructions
	ChatRoleAgent  = "assistant" // Model output
	ChatRoleSystem = "system"
)

// ChatMessage represents a single chat message in the conversation.
// The shape follows Ollama's API and is sent to providers as-is where they accept it.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CompletionRequest is one call to a text-completion provider.
type CompletionRequest struct {
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionResponse is the full text of a completion.
type CompletionResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// ChunkFunc receives incremental text while a completion streams.
type ChunkFunc func(chunk string)

func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case ChatRoleUser, ChatRoleAgent:
		default:
			return fmt.Errorf("message %d has unsupported role %q", i, m.Role)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	return nil
}

// WithSystem returns the messages with the system prompt prepended as a system message,
// for providers that take the system prompt inline.
func (r *CompletionRequest) WithSystem() []ChatMessage {
	out := make([]ChatMessage, 0, len(r.Messages)+1)
	if r.System != "" {
		out = append(out, ChatMessage{Role: ChatRoleSystem, Content: r.System})
	}
	return append(out, r.Messages...)
}
