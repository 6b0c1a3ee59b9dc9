package game

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollect(t *testing.T) {
	t.Run("stops at prompt", func(t *testing.T) {
		out := make(chan string, 3)
		out <- "West of House\r\nYou are standing"
		out <- " in an open field.\r\n\r\n"
		out <- ">"
		text, prompted, err := collect(context.Background(), out, time.Second)
		require.NoError(t, err)
		assert.True(t, prompted)
		assert.Equal(t, "West of House\nYou are standing in an open field.", text)
	})

	t.Run("settle timeout returns partial output", func(t *testing.T) {
		out := make(chan string, 1)
		out <- "The lamp flickers"
		text, prompted, err := collect(context.Background(), out, 20*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, prompted)
		assert.Equal(t, "The lamp flickers", text)
	})

	t.Run("closed stream", func(t *testing.T) {
		out := make(chan string, 1)
		out <- "Goodbye."
		close(out)
		text, _, err := collect(context.Background(), out, time.Second)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "Goodbye.", text)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := collect(ctx, make(chan string), time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHasPrompt(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{">", true},
		{"Taken.\n>", true},
		{"Taken.\n> ", true},
		{"Taken.\r\n>\r", true},
		{"Taken.", false},
		{"a > b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasPrompt(tt.text), tt.text)
	}
}

func TestFrotz_Subprocess(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	f := NewFrotz("sh", time.Second, discardLogger())
	f.args = []string{"-c", `printf 'Test Room\nA plain room.\n>'; while read line; do printf 'You said %s.\n>' "$line"; done`}

	text, err := f.Initialize(context.Background(), "story.z5")
	require.NoError(t, err)
	assert.Equal(t, "Test Room\nA plain room.", text)
	assert.Equal(t, State{WaitingForInput: true, Running: true}, f.State())

	text, err = f.SendCommand(context.Background(), "LOOK")
	require.NoError(t, err)
	assert.Equal(t, "You said LOOK.", text)
	assert.Equal(t, 1, f.State().TurnCount)

	require.NoError(t, f.Reset(context.Background()))
	assert.False(t, f.State().Running)

	_, err = f.SendCommand(context.Background(), "LOOK")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestFrotz_MissingInterpreter(t *testing.T) {
	f := NewFrotz("definitely-not-an-interpreter", time.Second, discardLogger())
	_, err := f.Initialize(context.Background(), "zork1.z5")
	assert.Error(t, err)
}
