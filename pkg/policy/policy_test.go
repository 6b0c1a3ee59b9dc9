package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

const westOfHouse = `West of House
There is a small mailbox here.
A path leads north. Another path leads south.`

const northOfHouse = `North of House
To the north a narrow path winds through the trees.`

func setup(boot string) (*memory.Memory, *Policy) {
	mem := memory.New(nil, nil)
	mem.Observe(boot)
	return mem, New(mem)
}

func step(mem *memory.Memory, command, output string) {
	mem.UpdateAfterCommand(command, output, mem.Current())
}

func commands(candidates []state.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Command
	}
	return out
}

func find(candidates []state.Candidate, command string) (state.Candidate, bool) {
	for _, c := range candidates {
		if c.Command == command {
			return c, true
		}
	}
	return state.Candidate{}, false
}

func TestNewRoomCandidates(t *testing.T) {
	_, p := setup(westOfHouse)
	candidates := p.GenerateCandidates()

	for _, cmd := range []string{"EXAMINE MAILBOX", "TAKE MAILBOX", "N", "S"} {
		c, ok := find(candidates, cmd)
		require.True(t, ok, cmd)
		assert.Equal(t, 2, c.Score, cmd)
	}
	assert.Equal(t, []string{"EXAMINE MAILBOX", "TAKE MAILBOX", "N", "S", "LOOK", "INVENTORY"}, commands(candidates))
}

func TestCandidateOrdering(t *testing.T) {
	_, p := setup("Cellar\nThe gate is locked. There is a rusty key here. You see a wooden chest.\nA passage leads east.")

	all := p.GenerateCandidates()
	assert.Equal(t, []string{
		"OPEN DOOR",
		"EXAMINE KEY", "TAKE KEY", "EXAMINE CHEST", "TAKE CHEST",
		"E",
		"LOOK", "INVENTORY",
	}, commands(all))
	assert.Equal(t, 3, all[0].Score)
	assert.Equal(t, "The gate is locked.", all[0].Reason)
	assert.Equal(t, state.SourceLead, all[0].Source)
	assert.Equal(t, 2, all[5].Score)

	top := p.TopCandidates(5)
	assert.Equal(t, commands(all[:5]), commands(top))
	assert.Len(t, p.TopCandidates(0), DefaultTopN)
}

func TestForbiddenNeverOffered(t *testing.T) {
	mem, p := setup(westOfHouse)
	mem.ForbidCommand("N", 6)
	mem.ForbidCommand("LOOK", 6)

	candidates := p.GenerateCandidates()
	assert.NotContains(t, commands(candidates), "N")
	assert.NotContains(t, commands(candidates), "LOOK")
	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Score, 0)
	}
}

func TestTriedExitFallback(t *testing.T) {
	mem, p := setup(westOfHouse)
	step(mem, "N", northOfHouse)
	step(mem, "S", westOfHouse)

	candidates := p.GenerateCandidates()
	last := candidates[len(candidates)-1]
	assert.Equal(t, "N", last.Command)
	assert.Equal(t, ScoreFallback, last.Score)
	assert.Equal(t, state.SourceFallback, last.Source)

	s, ok := find(candidates, "S")
	require.True(t, ok)
	assert.Equal(t, ScoreExit, s.Score)
}

func TestLoopBoost(t *testing.T) {
	mem, p := setup(westOfHouse)
	step(mem, "LOOK", westOfHouse)
	step(mem, "LOOK", westOfHouse)
	require.True(t, mem.DetectLoops().Looping)

	candidates := p.GenerateCandidates()
	assert.Equal(t, []string{"N", "S", "LOOK", "INVENTORY", "EXAMINE MAILBOX", "TAKE MAILBOX"}, commands(candidates))
	for _, c := range candidates[:4] {
		assert.Equal(t, 3, c.Score, c.Command)
	}
}

func TestHazardLead(t *testing.T) {
	mem, p := setup("Dark Place\nIt is pitch black. You are likely to be eaten by a grue.")
	step(mem, "TAKE LANTERN", "Taken.")

	candidates := p.GenerateCandidates()
	require.GreaterOrEqual(t, len(candidates), 2)
	assert.Equal(t, "LOOK", candidates[0].Command)
	assert.Equal(t, "TURN ON LANTERN", candidates[1].Command)
	assert.Equal(t, ScoreLead, candidates[1].Score)
}

func TestContainerLead(t *testing.T) {
	_, p := setup("West of House\nThere is a small mailbox here. The mailbox is closed.")
	candidates := p.GenerateCandidates()
	assert.Equal(t, []string{"OPEN MAILBOX", "EXAMINE MAILBOX"}, commands(candidates[:2]))
	assert.Equal(t, ScoreLead, candidates[1].Score)
}

func TestBestAction(t *testing.T) {
	_, p := setup(westOfHouse)
	best, ok := p.BestAction()
	require.True(t, ok)
	assert.Equal(t, "EXAMINE MAILBOX", best.Command)
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		valid    bool
		adjusted string
	}{
		{name: "bare direction", command: "n", valid: true, adjusted: "N"},
		{name: "normalized", command: "  take   leaflet ", valid: true, adjusted: "TAKE LEAFLET"},
		{name: "go direction", command: "GO WEST", adjusted: "EXAMINE MAILBOX"},
		{name: "look direction", command: "look north", adjusted: "EXAMINE MAILBOX"},
		{name: "too many words", command: "I WANT TO OPEN THE SMALL MAILBOX", adjusted: "EXAMINE MAILBOX"},
		{name: "too long", command: "EXAMINE THEGREATUNDERGROUNDEMPIREOFZORKANDITSMANYWONDERS", adjusted: "EXAMINE MAILBOX"},
		{name: "empty", command: "  ", adjusted: "EXAMINE MAILBOX"},
		{name: "forbidden", command: "open mailbox", adjusted: "EXAMINE MAILBOX"},
	}

	mem, p := setup(westOfHouse)
	mem.ForbidCommand("OPEN MAILBOX", 6)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.ValidateCommand(tt.command)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.adjusted, v.Adjusted)
			if !tt.valid {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func TestValidateFallsBackToLook(t *testing.T) {
	mem := memory.New(nil, nil)
	p := New(mem)
	mem.ForbidCommand("LOOK", 6)
	mem.ForbidCommand("INVENTORY", 6)

	v := p.ValidateCommand("GO NORTH")
	assert.False(t, v.Valid)
	assert.Equal(t, FallbackCommand, v.Adjusted)
}

func TestFormatCandidates(t *testing.T) {
	out := FormatCandidates([]state.Candidate{
		{Command: "N", Score: 2, Reason: "untried exit"},
		{Command: "LOOK", Score: 1, Reason: "gather information"},
	})
	assert.Equal(t, "1. N (score 2): untried exit\n2. LOOK (score 1): gather information", out)
}
