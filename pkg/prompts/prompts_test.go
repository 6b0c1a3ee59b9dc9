package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short text unchanged", "Taken.", 600, "Taken."},
		{"trimmed", "  Taken.\n", 600, "Taken."},
		{"cut and marked", "West of House is here", 7, "West of..."},
		{"zero keeps all", "West of House", 0, "West of House"},
		{"multibyte safe", "café au lait", 4, "café..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.text, tt.n))
		})
	}
}

func TestIsTrivialAdvice(t *testing.T) {
	tests := []struct {
		advice string
		want   bool
	}{
		{"good", true},
		{"Good.", true},
		{`"good"`, true},
		{"Looks good!", true},
		{"ok", true},
		{"", true},
		{"Open the window behind the house.", false},
		{"good idea to read the leaflet now", false},
		{"TAKE LAMP", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTrivialAdvice(tt.advice), tt.advice)
	}
}

func TestAdvisorRequest(t *testing.T) {
	req := AdvisorRequest("CURRENT ROOM: Kitchen (visits: 2)", state.LoopStatus{Looping: true, Pattern: state.LoopRepeat}, "You can't go that way.", 600)

	assert.Equal(t, AdvisorSystemPrompt, req.System)
	assert.Len(t, req.Messages, 1)
	assert.Equal(t, chat.ChatRoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "CURRENT ROOM: Kitchen")
	assert.Contains(t, req.Messages[0].Content, "stuck in a repeat loop")
	assert.Contains(t, req.Messages[0].Content, "You can't go that way.")
}

func TestSummaryRequest(t *testing.T) {
	outcomes := []state.CommandOutcome{
		{Command: "N", Result: state.OutcomeProgress, Turn: 1},
		{Command: "OPEN DOOR", Result: state.OutcomeFailure, Turn: 2},
	}
	req := SummaryRequest("Started west of a house.", outcomes, "3 rooms explored, 1 lead open")

	content := req.Messages[0].Content
	assert.Equal(t, SummarySystemPrompt, req.System)
	assert.Contains(t, content, "PREVIOUS SUMMARY: Started west of a house.")
	assert.Contains(t, content, "turn 1: N -> progress")
	assert.Contains(t, content, "turn 2: OPEN DOOR -> failure")
	assert.Contains(t, content, "EXPLORATION: 3 rooms explored, 1 lead open")

	empty := SummaryRequest("", nil, "1 rooms explored")
	assert.Contains(t, empty.Messages[0].Content, "RECENT COMMANDS:\n  none")
	assert.NotContains(t, empty.Messages[0].Content, "PREVIOUS SUMMARY")
}
