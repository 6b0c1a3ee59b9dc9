package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

// Builder assembles the primary decision prompt using a fluent interface.
type Builder struct {
	summary      string
	memoryBlock  string
	gameOutput   string
	excerptChars int
	candidates   []state.Candidate
	advice       string
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		excerptChars: DefaultExcerptChars,
	}
}

// WithSummary sets the rolling progress summary. Empty summaries are skipped.
func (b *Builder) WithSummary(summary string) *Builder {
	b.summary = strings.TrimSpace(summary)
	return b
}

// WithMemory sets the rendered world-memory block.
func (b *Builder) WithMemory(block string) *Builder {
	b.memoryBlock = block
	return b
}

// WithGameOutput sets the latest raw game text.
func (b *Builder) WithGameOutput(text string) *Builder {
	b.gameOutput = text
	return b
}

// WithExcerptLength sets how much game output is quoted.
func (b *Builder) WithExcerptLength(n int) *Builder {
	b.excerptChars = n
	return b
}

// WithCandidates sets the ranked command suggestions.
func (b *Builder) WithCandidates(candidates []state.Candidate) *Builder {
	b.candidates = candidates
	return b
}

// WithAdvice sets the advisory tip. Trivial acknowledgments are dropped.
func (b *Builder) WithAdvice(advice string) *Builder {
	if IsTrivialAdvice(advice) {
		b.advice = ""
		return b
	}
	b.advice = strings.TrimSpace(advice)
	return b
}

// Build returns the completion request for the decision call.
func (b *Builder) Build() (chat.CompletionRequest, error) {
	if b.memoryBlock == "" && strings.TrimSpace(b.gameOutput) == "" {
		return chat.CompletionRequest{}, fmt.Errorf("memory or game output is required")
	}

	var sb strings.Builder
	if b.summary != "" {
		sb.WriteString("PROGRESS SO FAR: " + b.summary + "\n\n")
	}

	if b.memoryBlock != "" {
		sb.WriteString("// -- BEGIN MEMORY --\n")
		sb.WriteString(strings.TrimRight(b.memoryBlock, "\n"))
		sb.WriteString("\n// -- END MEMORY --\n\n")
	}

	sb.WriteString("LATEST GAME OUTPUT:\n")
	sb.WriteString(Excerpt(b.gameOutput, b.excerptChars))
	sb.WriteString("\n\n")

	if len(b.candidates) > 0 {
		sb.WriteString("SUGGESTED COMMANDS:\n")
		sb.WriteString(policy.FormatCandidates(b.candidates))
		sb.WriteString("\n\n")
	}

	if b.advice != "" {
		sb.WriteString("HINT: " + b.advice + "\n\n")
	}

	sb.WriteString("Your next command:")

	return chat.CompletionRequest{
		System:   ActorSystemPrompt,
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: sb.String()}},
	}, nil
}
