// Package extract turns raw parser-game output into a structured snapshot.
//
// The game only ever emits prose, so everything here is heuristic: good enough
// to drive exploration decisions, never ground truth.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jwebster45206/adventure-agent/pkg/state"
)

// Extractor reads one turn of game output. prev supplies carry-over fields
// (room, inventory) and may be nil.
type Extractor interface {
	Extract(raw string, prev *state.Snapshot) *state.Snapshot
}

const maxRoomNameLength = 50

var failurePattern = regexp.MustCompile(`(?i)\b(?:don't know|do not know|can't|cannot|impossible|already|nothing|don't have|do not have|not here|no such|beg your pardon|isn't|aren't|won't|unable|there is no|you don't see|what do you want to|doesn't|don't understand|not open)`)

// IsFailure reports whether the text reads like a parser or world refusal.
func IsFailure(text string) bool {
	return failurePattern.MatchString(text)
}

var exitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:to|towards?)\s+the\s+(north|south|east|west)\b`),
	regexp.MustCompile(`\b(?:path|passage|trail|road|stairs|staircase|stairway|tunnel|corridor|hallway|steps|ladder|chimney)\s+(?:\w+\s+){0,2}?(?:leads?|goes|heads?|runs?|winds?|continues|descends|ascends)\s+(?:\w+\s+)?(north|south|east|west|up|down)\b`),
	regexp.MustCompile(`\b(?:door|doorway|opening|window|archway|gate|entrance)\s+(?:\w+\s+){0,3}?(?:to|on)\s+the\s+(north|south|east|west)\b`),
	regexp.MustCompile(`\bexits?\s+(?:\w+\s+){0,2}?(north|south|east|west|up|down)\b`),
	regexp.MustCompile(`\b(?:go|climb|head)\s+(north|south|east|west|up|down)\b`),
}

var objectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:there is|there are|you see|you can see|here is)\s+(?:a|an|the|some)\s+([a-z]+(?:\s+[a-z]+){0,2})`),
	regexp.MustCompile(`\b(?:a|an|the|some)\s+(?:[a-z]+\s+){0,2}?(` + strings.Join(Vocabulary, "|") + `)\b`),
}

// Vocabulary is the curated list of nouns that are recognized wherever an article precedes them.
var Vocabulary = []string{
	"mailbox", "leaflet", "lamp", "lantern", "sword", "knife", "key", "keys",
	"door", "trapdoor", "window", "grating", "box", "chest", "case", "coffin",
	"trophy", "egg", "bag", "sack", "bottle", "rope", "torch", "candles",
	"book", "table", "rug", "painting", "jewel", "jewels", "coins", "diamond",
	"matchbook", "screwdriver", "wrench", "shovel", "boat", "basket", "bell",
	"chalice", "sceptre", "skull", "bracelet", "garlic", "lunch", "water",
}

// words that end an object phrase
var phraseStops = map[string]bool{
	"here": true, "lying": true, "on": true, "in": true, "sitting": true, "which": true,
	"that": true, "and": true, "with": true, "of": true, "nearby": true, "resting": true,
}

var clueChecks = []struct {
	pattern *regexp.Regexp
	clue    string
}{
	{regexp.MustCompile(`\blocked\b`), "Something here is locked"},
	{regexp.MustCompile(`\bclosed\b`), "Something here is closed"},
	{regexp.MustCompile(`\bdark(?:ness)?\b`), "It is dark; a light source may be needed"},
	{regexp.MustCompile(`\b(?:dangerous|grue|eaten)\b`), "Danger: something here could kill you"},
	{regexp.MustCompile(`\b(?:treasure|valuable|jewel)\w*`), "A treasure or valuable is mentioned"},
	{regexp.MustCompile(`\b(?:inscription|writing|carved|engraved)\b`), "There is writing or an inscription to read"},
}

var (
	scorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bscore(?:\s+is)?\s*:?\s*(-?\d+)`),
		regexp.MustCompile(`(-?\d+)\s+points?\b`),
	}
	movePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bmoves\s*:?\s*(\d+)`),
		regexp.MustCompile(`\b(\d+)\s+moves?\b`),
	}
	inventoryHeader = regexp.MustCompile(`^you are carrying:?$|^you have:$`)
	inventoryItem   = regexp.MustCompile(`^(?:a|an|the|some)\s+([a-z][a-z\s-]*)`)
	sentenceEnd     = regexp.MustCompile(`[.!?:]$`)
)

// Heuristic is the default regex-and-keyword extractor.
type Heuristic struct{}

var _ Extractor = (*Heuristic)(nil)

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Extract parses raw game output into a fresh snapshot.
func (h *Heuristic) Extract(raw string, prev *state.Snapshot) *state.Snapshot {
	lines := splitLines(raw)
	lower := strings.ToLower(raw)

	snap := &state.Snapshot{
		Room:      state.UnknownRoom,
		Exits:     make([]state.Direction, 0),
		Objects:   make([]string, 0),
		Inventory: make([]string, 0),
		Clues:     make([]string, 0),
	}
	if prev != nil {
		if prev.Room != "" {
			snap.Room = prev.Room
		}
		snap.Inventory = append(snap.Inventory, prev.Inventory...)
	}

	rest := lower
	if len(lines) > 0 && isRoomName(lines[0]) {
		snap.Room = lines[0]
		rest = strings.ToLower(strings.Join(lines[1:], "\n"))
	}

	snap.Exits = extractExits(rest)
	snap.Objects = extractObjects(lower)
	snap.Clues = extractClues(lower)
	snap.Score = firstInt(scorePatterns, lower)
	snap.Moves = firstInt(movePatterns, lower)

	if items, ok := extractInventory(lines); ok {
		snap.Inventory = items
		snap.InventoryListed = true
	}
	return snap
}

func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func isRoomName(line string) bool {
	if len(line) >= maxRoomNameLength {
		return false
	}
	if strings.HasPrefix(line, ">") || IsFailure(line) {
		return false
	}
	if sentenceEnd.MatchString(line) {
		return false
	}
	r := []rune(line)[0]
	return unicode.IsUpper(r)
}

func extractExits(text string) []state.Direction {
	exits := make([]state.Direction, 0)
	for _, re := range exitPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d := state.Direction(strings.ToUpper(m[1][:1]))
			exits = state.AppendUnique(exits, d)
		}
	}
	if len(exits) == 0 {
		return append(exits, state.CardinalDirections...)
	}
	return exits
}

func extractObjects(text string) []string {
	objects := make([]string, 0)
	for _, m := range objectPatterns[0].FindAllStringSubmatch(text, -1) {
		if noun := headOfPhrase(m[1]); noun != "" {
			objects = state.AppendUnique(objects, strings.ToUpper(noun))
		}
	}
	for _, m := range objectPatterns[1].FindAllStringSubmatch(text, -1) {
		objects = state.AppendUnique(objects, strings.ToUpper(m[1]))
	}
	return objects
}

// headOfPhrase cuts the phrase at the first stop word and returns its last word.
func headOfPhrase(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		if phraseStops[w] {
			words = words[:i]
			break
		}
	}
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

func extractClues(text string) []string {
	clues := make([]string, 0)
	for _, c := range clueChecks {
		if c.pattern.MatchString(text) {
			clues = append(clues, c.clue)
		}
	}
	return clues
}

func firstInt(patterns []*regexp.Regexp, text string) *int {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	return nil
}

// extractInventory reads a "You are carrying:" block. ok is false when the
// output does not list the inventory at all.
func extractInventory(lines []string) ([]string, bool) {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "empty-handed") || strings.Contains(lower, "empty handed") {
			return make([]string, 0), true
		}
		if !inventoryHeader.MatchString(lower) {
			continue
		}
		items := make([]string, 0)
		for _, itemLine := range lines[i+1:] {
			m := inventoryItem.FindStringSubmatch(strings.ToLower(itemLine))
			if m == nil {
				break
			}
			if noun := headOfPhrase(m[1]); noun != "" {
				items = state.AppendUnique(items, strings.ToUpper(noun))
			}
		}
		return items, true
	}
	return nil, false
}
