// Package storage defines persistence for played turns.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

// TurnRecord is one persisted turn of a session.
type TurnRecord struct {
	SessionID    uuid.UUID     `json:"session_id"`
	Turn         int           `json:"turn"`
	Room         string        `json:"room"`
	Previous     state.Outcome `json:"previous_outcome,omitempty"`
	Advice       string        `json:"advice,omitempty"`
	RawDecision  string        `json:"raw_decision"`
	Command      string        `json:"command"`
	Adjusted     bool          `json:"adjusted"`
	Reason       string        `json:"reason,omitempty"`
	Output       string        `json:"output"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NewTurnRecord flattens an orchestrator turn for storage.
func NewTurnRecord(sessionID uuid.UUID, r autoplay.TurnResult) TurnRecord {
	created := r.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	return TurnRecord{
		SessionID:    sessionID,
		Turn:         r.Turn,
		Room:         r.Room,
		Previous:     r.Previous,
		Advice:       r.Advice,
		RawDecision:  r.RawDecision,
		Command:      r.Command,
		Adjusted:     !r.Validation.Valid,
		Reason:       r.Validation.Reason,
		Output:       r.Output,
		InputTokens:  r.Usage.InputTokens,
		OutputTokens: r.Usage.OutputTokens,
		CreatedAt:    created.UTC(),
	}
}

// TurnLog persists turn history across restarts.
type TurnLog interface {
	Ping(ctx context.Context) error
	Close() error

	SaveTurn(ctx context.Context, rec TurnRecord) error
	// ListTurns returns up to limit turns in turn order; limit <= 0 means all.
	ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]TurnRecord, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// SessionRecorder binds a TurnLog to one session so it can serve as an
// autoplay.Recorder.
type SessionRecorder struct {
	Log       TurnLog
	SessionID uuid.UUID
}

var _ autoplay.Recorder = SessionRecorder{}

func (s SessionRecorder) RecordTurn(ctx context.Context, result autoplay.TurnResult) error {
	return s.Log.SaveTurn(ctx, NewTurnRecord(s.SessionID, result))
}
