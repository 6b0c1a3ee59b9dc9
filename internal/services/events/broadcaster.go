package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeGameText      EventType = "game-text"
	EventTypeCommandSent   EventType = "command-sent"
	EventTypeThinking      EventType = "thinking"
	EventTypeStream        EventType = "stream"
	EventTypeError         EventType = "error"
	EventTypeTurnCompleted EventType = "turn.completed"
	EventTypeStatus        EventType = "status"
)

// DefaultHistoryLimit caps the replay list kept per session.
const DefaultHistoryLimit = 500

// Event is the envelope published for every session event
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Turn      int            `json:"turn"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution and keeps
// a capped per-session list so late subscribers can replay what they missed.
// Stream events are published but not kept in the list.
type Broadcaster struct {
	redisClient  *redis.Client
	logger       *slog.Logger
	historyLimit int64
	historyTTL   time.Duration
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient:  redisClient,
		logger:       logger,
		historyLimit: DefaultHistoryLimit,
		historyTTL:   24 * time.Hour,
	}
}

// Channel is the pub/sub channel for a session.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// HistoryKey is the list holding a session's replayable events.
func HistoryKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-history:%s", sessionID.String())
}

// Publish stamps the event with the session and time, appends it to the
// replay list and publishes it.
func (b *Broadcaster) Publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	event.SessionID = sessionID.String()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := Channel(sessionID)
	pipe := b.redisClient.Pipeline()
	if event.Type != EventTypeStream {
		key := HistoryKey(sessionID)
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -b.historyLimit, -1)
		pipe.Expire(ctx, key, b.historyTTL)
	}
	pipe.Publish(ctx, channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"turn", event.Turn,
	)
	return nil
}

// PublishStatus publishes an orchestrator status change. lastErr is omitted when empty.
func (b *Broadcaster) PublishStatus(ctx context.Context, sessionID uuid.UUID, turn int, status string, autoplaying bool, lastErr string) error {
	data := map[string]any{
		"status":      status,
		"autoplaying": autoplaying,
	}
	if lastErr != "" {
		data["error"] = lastErr
	}
	return b.Publish(ctx, sessionID, Event{
		Type: EventTypeStatus,
		Turn: turn,
		Data: data,
	})
}

// PublishTurnCompleted publishes the outcome of a finished turn
func (b *Broadcaster) PublishTurnCompleted(ctx context.Context, sessionID uuid.UUID, turn int, command, room string, adjusted bool) error {
	return b.Publish(ctx, sessionID, Event{
		Type: EventTypeTurnCompleted,
		Turn: turn,
		Data: map[string]any{
			"command":  command,
			"room":     room,
			"adjusted": adjusted,
		},
	})
}

// Replay returns the retained events for a session, oldest first.
func (b *Broadcaster) Replay(ctx context.Context, sessionID uuid.UUID) ([]Event, error) {
	raw, err := b.redisClient.LRange(ctx, HistoryKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event history: %w", err)
	}

	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			b.logger.Warn("Skipping unreadable history entry", "error", err)
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// Clear drops the replay list for a session.
func (b *Broadcaster) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := b.redisClient.Del(ctx, HistoryKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear event history: %w", err)
	}
	return nil
}
