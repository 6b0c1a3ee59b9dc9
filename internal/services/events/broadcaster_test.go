package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil))), client
}

func TestBroadcaster_PublishDeliversToSubscribers(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()
	sessionID := uuid.New()

	sub := client.Subscribe(ctx, Channel(sessionID))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, sessionID, Event{
		Type: EventTypeCommandSent,
		Turn: 3,
		Data: map[string]any{"text": "OPEN MAILBOX"},
	}))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, EventTypeCommandSent, got.Type)
	assert.Equal(t, sessionID.String(), got.SessionID)
	assert.Equal(t, 3, got.Turn)
	assert.Equal(t, "OPEN MAILBOX", got.Data["text"])
	assert.False(t, got.Timestamp.IsZero())
}

func TestBroadcaster_Replay(t *testing.T) {
	b, _ := setupBroadcaster(t)
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, b.Publish(ctx, sessionID, Event{Type: EventTypeGameText, Turn: 1, Data: map[string]any{"text": "West of House"}}))
	require.NoError(t, b.Publish(ctx, sessionID, Event{Type: EventTypeStream, Turn: 1, Data: map[string]any{"text": "OP"}}))
	require.NoError(t, b.PublishTurnCompleted(ctx, sessionID, 1, "N", "West of House", false))
	require.NoError(t, b.PublishStatus(ctx, sessionID, 1, "awaiting-command", false, ""))

	history, err := b.Replay(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, EventTypeGameText, history[0].Type)
	assert.Equal(t, EventTypeTurnCompleted, history[1].Type)
	assert.Equal(t, "N", history[1].Data["command"])
	assert.Equal(t, EventTypeStatus, history[2].Type)

	other, err := b.Replay(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBroadcaster_HistoryIsCapped(t *testing.T) {
	b, _ := setupBroadcaster(t)
	b.historyLimit = 3
	ctx := context.Background()
	sessionID := uuid.New()

	for turn := 1; turn <= 5; turn++ {
		require.NoError(t, b.Publish(ctx, sessionID, Event{Type: EventTypeGameText, Turn: turn}))
	}

	history, err := b.Replay(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Turn)
	assert.Equal(t, 5, history[2].Turn)
}

func TestBroadcaster_Clear(t *testing.T) {
	b, _ := setupBroadcaster(t)
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, b.Publish(ctx, sessionID, Event{Type: EventTypeGameText, Turn: 1}))
	require.NoError(t, b.Clear(ctx, sessionID))

	history, err := b.Replay(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
