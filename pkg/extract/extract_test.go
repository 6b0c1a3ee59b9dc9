package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/pkg/state"
)

func TestExtractRoom(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		prev     *state.Snapshot
		expected string
	}{
		{
			name:     "first line is room",
			raw:      "Kitchen\nYou are in the kitchen of the white house.",
			expected: "Kitchen",
		},
		{
			name:     "failure carries over",
			raw:      "You can't go that way.",
			prev:     &state.Snapshot{Room: "Kitchen"},
			expected: "Kitchen",
		},
		{
			name:     "confirmation carries over",
			raw:      "Taken.",
			prev:     &state.Snapshot{Room: "Attic"},
			expected: "Attic",
		},
		{
			name:     "lowercase start carries over",
			raw:      "with great effort, you open the window",
			prev:     &state.Snapshot{Room: "Behind House"},
			expected: "Behind House",
		},
		{
			name:     "long first line",
			raw:      "You are standing at the edge of a vast and echoing underground cavern",
			expected: state.UnknownRoom,
		},
		{
			name:     "prompt marker",
			raw:      ">look",
			expected: state.UnknownRoom,
		},
		{
			name:     "empty",
			raw:      "   \n\n",
			expected: state.UnknownRoom,
		},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, h.Extract(tt.raw, tt.prev).Room)
		})
	}
}

func TestExtractExits(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []state.Direction
	}{
		{
			name:     "paths",
			raw:      "Forest\nA path leads north. A trail heads east.",
			expected: []state.Direction{state.DirNorth, state.DirEast},
		},
		{
			name:     "to the",
			raw:      "Clearing\nThe forest thins to the west and to the south.",
			expected: []state.Direction{state.DirWest, state.DirSouth},
		},
		{
			name:     "stairs and doors",
			raw:      "Living Room\nA dark staircase leads down. There is a doorway to the east.",
			expected: []state.Direction{state.DirEast, state.DirDown},
		},
		{
			name:     "dedup",
			raw:      "Hall\nA corridor runs north. Light spills in from a door to the north.",
			expected: []state.Direction{state.DirNorth},
		},
		{
			name:     "fallback to cardinals",
			raw:      "Cellar\nIt is damp down here.",
			expected: []state.Direction{state.DirNorth, state.DirSouth, state.DirEast, state.DirWest},
		},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, h.Extract(tt.raw, nil).Exits)
		})
	}
}

func TestExtractObjects(t *testing.T) {
	h := NewHeuristic()

	snap := h.Extract("West of House\nThere is a small mailbox here.", nil)
	assert.Equal(t, []string{"MAILBOX"}, snap.Objects)

	snap = h.Extract("Attic\nOn the floor lies a nasty knife. You see a coil of rope.", nil)
	assert.Equal(t, []string{"COIL", "KNIFE", "ROPE"}, snap.Objects)

	snap = h.Extract("Nothing here.", nil)
	assert.Empty(t, snap.Objects)
}

func TestExtractClues(t *testing.T) {
	h := NewHeuristic()
	snap := h.Extract("Gallery\nThe case is locked. It is pitch dark beyond, and a grue lurks. An engraved jewel glitters.", nil)
	assert.Equal(t, []string{
		"Something here is locked",
		"It is dark; a light source may be needed",
		"Danger: something here could kill you",
		"A treasure or valuable is mentioned",
		"There is writing or an inscription to read",
	}, snap.Clues)
}

func TestExtractScoreAndMoves(t *testing.T) {
	h := NewHeuristic()

	snap := h.Extract("Your score is 35 (total of 350 points), in 12 moves.", nil)
	require.NotNil(t, snap.Score)
	require.NotNil(t, snap.Moves)
	assert.Equal(t, 35, *snap.Score)
	assert.Equal(t, 12, *snap.Moves)

	snap = h.Extract("Score: 10   Moves: 4", nil)
	assert.Equal(t, 10, *snap.Score)
	assert.Equal(t, 4, *snap.Moves)

	snap = h.Extract("Kitchen", nil)
	assert.Nil(t, snap.Score)
	assert.Nil(t, snap.Moves)
}

func TestExtractInventory(t *testing.T) {
	h := NewHeuristic()
	prev := &state.Snapshot{Room: "Kitchen", Inventory: []string{"SWORD"}}

	snap := h.Extract("You are carrying:\n  A brass lantern (providing light)\n  A leaflet", prev)
	assert.True(t, snap.InventoryListed)
	assert.Equal(t, []string{"LANTERN", "LEAFLET"}, snap.Inventory)
	assert.Equal(t, "Kitchen", snap.Room)

	snap = h.Extract("You are empty-handed.", prev)
	assert.True(t, snap.InventoryListed)
	assert.Empty(t, snap.Inventory)

	snap = h.Extract("Taken.", prev)
	assert.False(t, snap.InventoryListed)
	assert.Equal(t, []string{"SWORD"}, snap.Inventory)
}

func TestIsFailure(t *testing.T) {
	assert.True(t, IsFailure("I don't know the word \"xyzzy\"."))
	assert.True(t, IsFailure("You can't go that way."))
	assert.True(t, IsFailure("It is already open."))
	assert.True(t, IsFailure("I beg your pardon?"))
	assert.False(t, IsFailure("Taken."))
	assert.False(t, IsFailure("West of House"))
}
