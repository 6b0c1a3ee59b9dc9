package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/internal/services"
	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
	"github.com/jwebster45206/adventure-agent/pkg/game"
	"github.com/jwebster45206/adventure-agent/pkg/storage"
)

func TestPlay_ScriptedGame(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	llm := services.NewMockLLMAPI()
	turnLog := storage.NewMockTurnLog()
	id := uuid.New()

	var out bytes.Buffer
	opts := autoplay.DefaultOptions()
	played, err := play(context.Background(), llm, game.NewScripted(log), opts, "builtin:house", 3,
		newPrinter(&out, 0, false), storage.SessionRecorder{Log: turnLog, SessionID: id}, log)
	require.NoError(t, err)
	assert.Equal(t, 3, played)

	transcript := out.String()
	assert.True(t, strings.HasPrefix(transcript, "West of House"), transcript)
	assert.Contains(t, transcript, "[1] > ")
	assert.Contains(t, transcript, "[3] > ")

	turns, err := turnLog.ListTurns(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 3)
}

func TestPlay_CancelledIsNotAnError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	played, err := play(ctx, services.NewMockLLMAPI(), game.NewScripted(log), autoplay.DefaultOptions(),
		"builtin:house", 0, newPrinter(io.Discard, 0, false), nil, log)
	assert.NoError(t, err)
	assert.Zero(t, played)
}

func TestPlay_UnknownGame(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := play(context.Background(), services.NewMockLLMAPI(), game.NewScripted(log), autoplay.DefaultOptions(),
		"builtin:atlantis", 1, newPrinter(io.Discard, 0, false), nil, log)
	assert.ErrorIs(t, err, game.ErrUnknownGame)
}
