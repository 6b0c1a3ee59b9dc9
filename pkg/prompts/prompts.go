package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

// ActorSystemPrompt drives the primary decision call.
const ActorSystemPrompt = `You are playing a classic parser text adventure. Your goal is to explore, collect treasures and solve puzzles.

### How to answer
- Reply with exactly ONE game command on a single line and nothing else.
- Commands are short: a direction (N, S, E, W, U, D) or a verb and a noun (OPEN MAILBOX, TAKE LAMP, READ LEAFLET).
- Never explain your reasoning. Never use quotes, numbering or labels.
- Never send a command listed under DO NOT USE.

### How to play
- Prefer commands from the suggested list; they are ranked by how likely they are to make progress.
- Examine new objects, take anything portable, open anything closed.
- Try exits you have not tried yet before going back the way you came.
- If a loop warning is shown, do something different from your recent commands.`

// AdvisorSystemPrompt drives the short advisory call.
const AdvisorSystemPrompt = `You are coaching someone playing a parser text adventure. Read their situation and give ONE short, concrete tip of at most 15 words about what to try next. Name a specific command if you can. If they are doing fine, reply with "good".`

// SummarySystemPrompt drives the rolling progress summary.
const SummarySystemPrompt = `You keep notes for someone playing a parser text adventure. Summarize their progress so far in 2 to 3 short sentences: where they have been, what they carry, and what they are trying to do. Mention anything that failed repeatedly. Do not suggest commands.`

const DefaultExcerptChars = 600

// Excerpt shortens game output to at most n characters, marking the cut.
func Excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// IsTrivialAdvice reports whether an advisory reply carries no information
// ("good", "ok", "looks good").
func IsTrivialAdvice(advice string) bool {
	words := strings.Fields(strings.ToLower(strings.Trim(strings.TrimSpace(advice), `."'!`)))
	if len(words) == 0 {
		return true
	}
	if len(words) > 3 {
		return false
	}
	switch strings.Trim(words[len(words)-1], ".!,") {
	case "good", "ok", "okay", "fine", "great":
		return true
	}
	return false
}

// AdvisorRequest builds the advisory completion request.
func AdvisorRequest(memoryBlock string, loop state.LoopStatus, gameOutput string, excerptChars int) chat.CompletionRequest {
	var sb strings.Builder
	sb.WriteString(memoryBlock)
	if loop.Looping {
		fmt.Fprintf(&sb, "\n\nThey are stuck in a %s loop.", loop.Pattern)
	}
	sb.WriteString("\n\nLATEST GAME OUTPUT:\n")
	sb.WriteString(Excerpt(gameOutput, excerptChars))
	sb.WriteString("\n\nWhat should they try next?")

	return chat.CompletionRequest{
		System:   AdvisorSystemPrompt,
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: sb.String()}},
	}
}

// SummaryRequest builds the summarization request from recent outcomes and a stats line.
func SummaryRequest(previous string, outcomes []state.CommandOutcome, stats string) chat.CompletionRequest {
	var sb strings.Builder
	if previous != "" {
		sb.WriteString("PREVIOUS SUMMARY: " + previous + "\n\n")
	}
	sb.WriteString("RECENT COMMANDS:\n")
	if len(outcomes) == 0 {
		sb.WriteString("  none\n")
	}
	for _, o := range outcomes {
		fmt.Fprintf(&sb, "  turn %d: %s -> %s\n", o.Turn, o.Command, o.Result)
	}
	sb.WriteString("\nEXPLORATION: " + stats)

	return chat.CompletionRequest{
		System:   SummarySystemPrompt,
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: sb.String()}},
	}
}
