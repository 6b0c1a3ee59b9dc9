package autoplay

import (
	"context"
	"time"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

// EntryKind tags a log entry for presentation.
type EntryKind string

const (
	EntryGameText    EntryKind = "game-text"
	EntryCommandSent EntryKind = "command-sent"
	EntryThinking    EntryKind = "thinking"
	EntryStream      EntryKind = "stream"
	EntryError       EntryKind = "error"
)

// LogEntry is one event in the play transcript.
type LogEntry struct {
	Kind      EntryKind `json:"kind"`
	Turn      int       `json:"turn"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives transcript entries. Emit is called from the turn goroutine and
// should not block for long.
type Sink interface {
	Emit(entry LogEntry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(entry LogEntry)

func (f SinkFunc) Emit(entry LogEntry) { f(entry) }

// MultiSink fans an entry out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(entry LogEntry) {
	for _, s := range m {
		if s != nil {
			s.Emit(entry)
		}
	}
}

// TurnResult describes one completed turn.
type TurnResult struct {
	Turn        int               `json:"turn"`
	Room        string            `json:"room"`
	Previous    state.Outcome     `json:"previous_outcome,omitempty"`
	Loop        state.LoopStatus  `json:"loop"`
	Candidates  []state.Candidate `json:"candidates"`
	Advice      string            `json:"advice,omitempty"`
	RawDecision string            `json:"raw_decision"`
	Validation  state.Validation  `json:"validation"`
	Command     string            `json:"command"`
	Output      string            `json:"output"`
	Usage       chat.Usage        `json:"usage"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Recorder persists turn results. Failures are logged, never fatal.
type Recorder interface {
	RecordTurn(ctx context.Context, result TurnResult) error
}
