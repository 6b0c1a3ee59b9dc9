package game

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/pkg/extract"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

func startHouse(t *testing.T) (*Scripted, string) {
	t.Helper()
	s := NewScripted(discardLogger())
	text, err := s.Initialize(context.Background(), "builtin:house")
	require.NoError(t, err)
	return s, text
}

func send(t *testing.T, s *Scripted, command string) string {
	t.Helper()
	out, err := s.SendCommand(context.Background(), command)
	require.NoError(t, err)
	return out
}

func TestScripted_BootTextExtracts(t *testing.T) {
	_, text := startHouse(t)

	snap := extract.NewHeuristic().Extract(text, nil)
	assert.Equal(t, "West of House", snap.Room)
	assert.Equal(t, []state.Direction{state.DirWest, state.DirNorth, state.DirSouth}, snap.Exits)
	assert.Contains(t, snap.Objects, "MAILBOX")
}

func TestScripted_Walkthrough(t *testing.T) {
	s, _ := startHouse(t)

	steps := []struct {
		command  string
		contains string
	}{
		{"OPEN MAILBOX", "Opening the small mailbox reveals a leaflet."},
		{"TAKE LEAFLET", "Taken."},
		{"READ LEAFLET", "WELCOME TO THE WHITE HOUSE"},
		{"N", "North of House"},
		{"E", "Behind House"},
		{"W", "The small window is closed."},
		{"OPEN WINDOW", "Opened."},
		{"GO WEST", "Kitchen"},
		{"UP", "Attic"},
		{"TAKE KEY", "Taken."},
		{"D", "Kitchen"},
		{"W", "Living Room"},
		{"TAKE LAMP", "Taken."},
		{"DOWN", "You can't go that way."},
		{"MOVE RUG", "revealing the dusty cover of a closed trapdoor"},
		{"D", "The trapdoor is closed."},
		{"OPEN TRAPDOOR", "Opened."},
		{"D", "It is pitch black."},
		{"TURN ON LAMP", "The brass lantern is now on."},
		{"LOOK", "Cellar"},
		{"OPEN CHEST", "The wooden chest is locked."},
		{"UNLOCK CHEST WITH KEY", "Unlocked."},
		{"OPEN CHEST", "reveals a sapphire jewel"},
		{"TAKE JEWEL", "Taken."},
		{"SCORE", "Your score is 15 (total of 25 points)"},
	}
	for _, step := range steps {
		out := send(t, s, step.command)
		assert.Contains(t, out, step.contains, "after %s", step.command)
	}

	inv := send(t, s, "I")
	assert.Equal(t, "You are carrying:\n  A leaflet\n  A brass key\n  A brass lantern\n  A sapphire jewel", inv)
	assert.Equal(t, len(steps)+1, s.State().TurnCount)
}

func TestScripted_Refusals(t *testing.T) {
	s, _ := startHouse(t)

	tests := []struct {
		command string
		want    string
	}{
		{"", "I beg your pardon?"},
		{"XYZZY", `I don't know the word "xyzzy".`},
		{"TAKE SWORD", "You can't see any sword here."},
		{"TAKE MAILBOX", "You can't take the small mailbox."},
		{"DROP MAILBOX", "You don't have that."},
		{"READ MAILBOX", "There is nothing written on the small mailbox."},
		{"EAST", "You can't go that way."},
		{"OPEN", "What do you want to open?"},
		{"UNLOCK MAILBOX", "The small mailbox isn't locked."},
		{"TURN ON MAILBOX", "You can't turn that on."},
		{"PUSH MAILBOX", "Moving the small mailbox reveals nothing."},
		{"INVENTORY", "You are empty-handed."},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			out := send(t, s, tt.command)
			assert.Equal(t, tt.want, out)
			if strings.HasPrefix(tt.want, "You can't") || strings.Contains(tt.want, "don't") {
				assert.True(t, extract.IsFailure(out))
			}
		})
	}
}

func TestScripted_DropLeavesItemInRoom(t *testing.T) {
	s, _ := startHouse(t)
	send(t, s, "OPEN MAILBOX")
	send(t, s, "TAKE LEAFLET")
	send(t, s, "N")
	assert.Equal(t, "Dropped.", send(t, s, "DROP LEAFLET"))

	look := send(t, s, "LOOK")
	assert.Contains(t, look, "There is a leaflet here.")
	assert.Contains(t, extract.NewHeuristic().Extract(look, nil).Objects, "LEAFLET")
}

func TestScripted_NotRunning(t *testing.T) {
	s := NewScripted(discardLogger())
	_, err := s.SendCommand(context.Background(), "LOOK")
	assert.ErrorIs(t, err, ErrNotRunning)

	s, _ = startHouse(t)
	require.NoError(t, s.Reset(context.Background()))
	_, err = s.SendCommand(context.Background(), "LOOK")
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, State{}, s.State())
}

func TestLoadWorld(t *testing.T) {
	_, err := LoadWorld("builtin:nowhere")
	assert.ErrorIs(t, err, ErrUnknownGame)

	dir := t.TempDir()
	good := filepath.Join(dir, "tiny.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
title: Tiny
start: hall
rooms:
  hall:
    name: Hall
    description: A bare hall. A door to the north stands open.
    items: [coin]
    exits:
      north: {to: yard}
  yard:
    name: Yard
    description: An empty yard. The hall lies to the south.
    exits:
      south: {to: hall}
items:
  coin:
    name: gold coin
    nouns: [coin]
    description: Shiny.
`), 0o644))
	w, err := LoadWorld(good)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", w.Title)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
start: hall
rooms:
  hall:
    name: Hall
    exits:
      north: {to: cellar}
`), 0o644))
	_, err = LoadWorld(bad)
	assert.ErrorContains(t, err, "unknown room")
}

func TestIsScripted(t *testing.T) {
	assert.True(t, IsScripted("builtin:house"))
	assert.True(t, IsScripted("/tmp/worlds/tiny.YAML"))
	assert.False(t, IsScripted("/games/zork1.z5"))
}
