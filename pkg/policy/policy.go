// Package policy scores candidate next commands from world memory and checks
// proposed commands before they reach the game.
package policy

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

const (
	ScoreLead     = 3
	ScoreObject   = 2
	ScoreExit     = 2
	ScoreInfo     = 1
	ScoreFallback = 0

	forbiddenPenalty = -5
	loopInfoBoost    = 2
	loopExitBoost    = 1

	DefaultTopN     = 5
	MaxCommandChars = 50
	MaxCommandWords = 6
	FallbackCommand = "LOOK"
)

var (
	malformedPattern = regexp.MustCompile(`^(?:LOOK|GO|MOVE|WALK) (?:NORTH|SOUTH|EAST|WEST|UP|DOWN|NORTHEAST|NORTHWEST|SOUTHEAST|SOUTHWEST|N|S|E|W|U|D|NE|NW|SE|SW)$`)
	lightPattern     = regexp.MustCompile(`LAMP|LANTERN|TORCH|CANDLE|LIGHT|MATCH`)
)

// Policy reads memory and never writes to it.
type Policy struct {
	mem *memory.Memory
}

func New(mem *memory.Memory) *Policy {
	return &Policy{mem: mem}
}

type generator struct {
	view       memory.View
	seen       map[string]bool
	candidates []state.Candidate
}

// add appends a candidate unless it is forbidden or already offered.
func (g *generator) add(command string, score int, reason string, source state.CandidateSource) {
	command = state.NormalizeCommand(command)
	if command == "" || g.view.Forbidden[command] > 0 || g.seen[command] {
		return
	}
	g.seen[command] = true
	g.candidates = append(g.candidates, state.Candidate{Command: command, Score: score, Reason: reason, Source: source})
}

// GenerateCandidates returns every scored candidate, best first. Ties keep
// generation order: leads, objects, exits, information, then tried exits.
func (p *Policy) GenerateCandidates() []state.Candidate {
	g := &generator{view: p.mem.View(), seen: make(map[string]bool)}
	room := g.view.Room
	if room == nil {
		room = state.NewRoomRecord(state.UnknownRoom)
	}
	visible := room.VisibleObjects()

	for _, lead := range g.view.Leads {
		p.leadCandidates(g, lead, visible)
	}

	for _, obj := range room.Objects {
		if !slices.Contains(room.Examined, obj) {
			g.add(state.Act(state.VerbExamine, obj).Raw, ScoreObject, "unexamined object "+obj, state.SourceObject)
		}
		if !slices.Contains(room.Taken, obj) {
			g.add(state.Act(state.VerbTake, obj).Raw, ScoreObject, "untaken object "+obj, state.SourceObject)
		}
	}

	for _, d := range room.UntriedExits() {
		g.add(string(d), ScoreExit, "untried exit", state.SourceExit)
	}

	g.add("LOOK", ScoreInfo, "gather information", state.SourceInfo)
	g.add("INVENTORY", ScoreInfo, "check inventory", state.SourceInfo)

	for _, d := range room.TriedExits {
		g.add(string(d), ScoreFallback, "previously tried exit", state.SourceFallback)
	}

	untried := make(map[string]bool)
	for _, d := range room.UntriedExits() {
		untried[string(d)] = true
	}
	for i := range g.candidates {
		c := &g.candidates[i]
		if g.view.Forbidden[c.Command] > 0 {
			c.Score += forbiddenPenalty
		}
		if !g.view.Loop.Looping {
			continue
		}
		switch {
		case c.Command == "LOOK" || c.Command == "INVENTORY":
			c.Score += loopInfoBoost
		case untried[c.Command]:
			c.Score += loopExitBoost
		}
	}

	sort.SliceStable(g.candidates, func(i, j int) bool {
		return g.candidates[i].Score > g.candidates[j].Score
	})
	return g.candidates
}

func (p *Policy) leadCandidates(g *generator, lead state.Lead, visible []string) {
	reason := lead.Description
	switch lead.Type {
	case state.LeadLocked:
		for _, item := range g.view.Inventory {
			if strings.Contains(item, "KEY") {
				g.add("UNLOCK DOOR WITH "+item, ScoreLead, reason, state.SourceLead)
			}
		}
		g.add("OPEN DOOR", ScoreLead, reason, state.SourceLead)
	case state.LeadContainer:
		for _, obj := range visible {
			if memory.IsContainer(obj) {
				g.add(state.Act(state.VerbOpen, obj).Raw, ScoreLead, reason, state.SourceLead)
				g.add(state.Act(state.VerbExamine, obj).Raw, ScoreLead, reason, state.SourceLead)
			}
		}
	case state.LeadPuzzle:
		for _, obj := range visible {
			for _, v := range []state.Verb{state.VerbExamine, state.VerbPush, state.VerbPull, state.VerbMove} {
				g.add(state.Act(v, obj).Raw, ScoreLead, reason, state.SourceLead)
			}
		}
	case state.LeadHazard:
		g.add("LOOK", ScoreLead, reason, state.SourceLead)
		for _, item := range g.view.Inventory {
			if lightPattern.MatchString(item) {
				g.add(state.Act(state.VerbTurnOn, item).Raw, ScoreLead, reason, state.SourceLead)
			}
		}
	case state.LeadNotable:
		for _, obj := range visible {
			g.add(state.Act(state.VerbExamine, obj).Raw, ScoreLead, reason, state.SourceLead)
			g.add(state.Act(state.VerbRead, obj).Raw, ScoreLead, reason, state.SourceLead)
		}
	}
}

// BestAction returns the top candidate. ok is false when there are none.
func (p *Policy) BestAction() (state.Candidate, bool) {
	candidates := p.GenerateCandidates()
	if len(candidates) == 0 {
		return state.Candidate{}, false
	}
	return candidates[0], true
}

// TopCandidates returns at most n candidates (DefaultTopN when n <= 0).
func (p *Policy) TopCandidates(n int) []state.Candidate {
	if n <= 0 {
		n = DefaultTopN
	}
	candidates := p.GenerateCandidates()
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// ValidateCommand accepts a well-formed, permitted command or proposes the
// best candidate in its place.
func (p *Policy) ValidateCommand(command string) state.Validation {
	cmd := state.NormalizeCommand(command)

	var reason string
	switch {
	case cmd == "":
		reason = "empty command"
	case p.mem.IsForbidden(cmd):
		reason = fmt.Sprintf("%s is forbidden after recent failures", cmd)
	case malformedPattern.MatchString(cmd):
		reason = fmt.Sprintf("%s is not understood by the parser; use the bare direction", cmd)
	case len(cmd) > MaxCommandChars:
		reason = "command is too long"
	case len(strings.Fields(cmd)) > MaxCommandWords:
		reason = "command has too many words"
	default:
		return state.Validation{Valid: true, Adjusted: cmd}
	}

	adjusted := FallbackCommand
	if best, ok := p.BestAction(); ok {
		adjusted = best.Command
	}
	return state.Validation{Valid: false, Adjusted: adjusted, Reason: reason}
}

// FormatCandidates renders candidates as a numbered list for prompts.
func FormatCandidates(candidates []state.Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (score %d): %s\n", i+1, c.Command, c.Score, c.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
