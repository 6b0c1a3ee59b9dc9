package memory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jwebster45206/adventure-agent/pkg/state"
)

var containerWords = `mailbox|box|chest|case|coffin|trapdoor|bag|sack|bottle|cabinet|drawer|cupboard|container|basket|jar|crate|trunk|lid`

var leadPatterns = []struct {
	pattern *regexp.Regexp
	kind    state.LeadType
}{
	{regexp.MustCompile(`(?i)\blocked\b`), state.LeadLocked},
	{regexp.MustCompile(`(?i)\bclosed\s+(?:[a-z]+\s+)?(?:` + containerWords + `)\b|\b(?:` + containerWords + `)\s+is\s+closed\b`), state.LeadContainer},
	{regexp.MustCompile(`(?i)\b(?:puzzle|mechanism|lever|button|switch)\w*`), state.LeadPuzzle},
	{regexp.MustCompile(`(?i)\b(?:grue|dangerous|darkness)\b`), state.LeadHazard},
	{regexp.MustCompile(`(?i)\b(?:inscription|engraved|carved|writing)\b`), state.LeadNotable},
}

var containerPattern = regexp.MustCompile(`^(?:` + containerWords + `)$`)

// IsContainer reports whether an object name looks like something that opens.
func IsContainer(object string) bool {
	return containerPattern.MatchString(strings.ToLower(state.HeadNoun(object)))
}

// detectLeads records one lead per (room, type) signalled in the output.
func (m *Memory) detectLeads(room, output string) {
	for _, lp := range leadPatterns {
		loc := lp.pattern.FindStringIndex(output)
		if loc == nil {
			continue
		}
		m.addLead(state.Lead{Room: room, Type: lp.kind, Description: sentenceAt(output, loc[0])})
	}
}

func (m *Memory) addLead(lead state.Lead) bool {
	for _, l := range m.leads {
		if l.Room == lead.Room && l.Type == lead.Type {
			return false
		}
	}
	m.leads = append(m.leads, lead)
	m.logger.Debug("Lead added", "room", lead.Room, "type", lead.Type, "description", lead.Description)
	return true
}

// AddLead records a lead unless one of the same room and type already exists.
func (m *Memory) AddLead(lead state.Lead) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLead(lead)
}

// ResolveLead removes the lead for (room, type). It reports whether one was removed.
func (m *Memory) ResolveLead(room string, kind state.LeadType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.leads {
		if l.Room == room && l.Type == kind {
			m.leads = append(m.leads[:i], m.leads[i+1:]...)
			return true
		}
	}
	return false
}

// sentenceAt returns the sentence of text containing byte offset i.
func sentenceAt(text string, i int) string {
	start := strings.LastIndexAny(text[:i], ".!?\n") + 1
	end := strings.IndexAny(text[i:], ".!?\n")
	if end < 0 {
		end = len(text)
	} else {
		end += i + 1
	}
	return strings.TrimSpace(text[start:end])
}

func (m *Memory) currentRecord() *state.RoomRecord {
	if m.current == nil {
		return nil
	}
	return m.rooms[m.current.Room]
}

// CurrentRoom returns a copy of the current room's record, or nil before the first observation.
func (m *Memory) CurrentRoom() *state.RoomRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.currentRecord(); rec != nil {
		return rec.Clone()
	}
	return nil
}

func (m *Memory) UntriedExits() []state.Direction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.currentRecord(); rec != nil {
		return rec.UntriedExits()
	}
	return make([]state.Direction, 0)
}

func (m *Memory) UnexaminedObjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.currentRecord(); rec != nil {
		return rec.UnexaminedObjects()
	}
	return make([]string, 0)
}

func (m *Memory) VisibleObjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.currentRecord(); rec != nil {
		return rec.VisibleObjects()
	}
	return make([]string, 0)
}

func (m *Memory) currentRoomLeads() []state.Lead {
	out := make([]state.Lead, 0)
	if m.current == nil {
		return out
	}
	for _, l := range m.leads {
		if l.Room == m.current.Room {
			out = append(out, l)
		}
	}
	return out
}

func (m *Memory) CurrentRoomLeads() []state.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentRoomLeads()
}

func (m *Memory) nearestRoomWithUntriedExits() (string, bool) {
	for _, name := range m.roomOrder {
		if m.current != nil && name == m.current.Room {
			continue
		}
		if len(m.rooms[name].UntriedExits()) > 0 {
			return name, true
		}
	}
	return "", false
}

// NearestRoomWithUntriedExits returns the first room in discovery order, other
// than the current one, that still has an untried exit. Discovery order stands
// in for distance; no path search is done.
func (m *Memory) NearestRoomWithUntriedExits() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nearestRoomWithUntriedExits()
}

// DetectLoops checks the outcome window for a repeat, then an A/B alternation,
// then a sustained no-change streak.
func (m *Memory) DetectLoops() state.LoopStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.detectLoops()
}

func (m *Memory) detectLoops() state.LoopStatus {
	recent := m.outcomes
	if len(recent) > loopWindow {
		recent = recent[len(recent)-loopWindow:]
	}

	for i := len(recent) - 1; i > 0; i-- {
		if recent[i].Command == recent[i-1].Command {
			cmd := recent[i].Command
			return state.LoopStatus{
				Looping:    true,
				Pattern:    state.LoopRepeat,
				Suggestion: fmt.Sprintf("You repeated %s. Do something different. %s", cmd, m.escapeHint()),
				Commands:   []string{cmd},
			}
		}
	}

	if n := len(recent); n >= 4 {
		a, b, c, d := recent[n-4].Command, recent[n-3].Command, recent[n-2].Command, recent[n-1].Command
		if a == c && b == d && a != b {
			return state.LoopStatus{
				Looping:    true,
				Pattern:    state.LoopAlternation,
				Suggestion: fmt.Sprintf("You keep alternating %s and %s. %s", a, b, m.escapeHint()),
				Commands:   []string{a, b},
			}
		}
	}

	if m.noChangeStreak >= StuckStreak {
		return state.LoopStatus{
			Looping:    true,
			Pattern:    state.LoopStuck,
			Suggestion: fmt.Sprintf("Nothing has changed for %d turns. %s", m.noChangeStreak, m.escapeHint()),
		}
	}
	return state.LoopStatus{}
}

// escapeHint suggests the cheapest way out of the current room's rut.
func (m *Memory) escapeHint() string {
	if rec := m.currentRecord(); rec != nil {
		if untried := rec.UntriedExits(); len(untried) > 0 {
			return "Try an unexplored exit: " + joinDirections(untried) + "."
		}
		if unexamined := rec.UnexaminedObjects(); len(unexamined) > 0 {
			return "Try EXAMINE " + unexamined[0] + "."
		}
	}
	if room, ok := m.nearestRoomWithUntriedExits(); ok {
		return "Head back toward " + room + ", which has unexplored exits."
	}
	return "Try LOOK or INVENTORY."
}

func joinDirections(dirs []state.Direction) string {
	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// View is a consistent read of the state the policy scores against.
type View struct {
	Room      *state.RoomRecord
	Leads     []state.Lead
	Inventory []string
	Forbidden map[string]int
	Loop      state.LoopStatus
}

// View returns a copy of the current room, its leads, the inventory,
// the forbidden countdowns and the loop status under one lock.
func (m *Memory) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := View{
		Leads:     m.currentRoomLeads(),
		Inventory: append(make([]string, 0, len(m.inventory)), m.inventory...),
		Forbidden: make(map[string]int, len(m.forbidden)),
		Loop:      m.detectLoops(),
	}
	if rec := m.currentRecord(); rec != nil {
		v.Room = rec.Clone()
	}
	for k, n := range m.forbidden {
		v.Forbidden[k] = n
	}
	return v
}

// ToPromptFormat renders memory as the state block handed to the model.
func (m *Memory) ToPromptFormat() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	rec := m.currentRecord()
	if rec == nil {
		b.WriteString("CURRENT ROOM: Unknown\n")
	} else {
		fmt.Fprintf(&b, "CURRENT ROOM: %s (visits: %d)\n", rec.Name, rec.Visits)
		fmt.Fprintf(&b, "EXITS: %s\n", orNone(joinDirections(rec.Exits)))
		fmt.Fprintf(&b, "UNTRIED EXITS: %s\n", orNone(joinDirections(rec.UntriedExits())))
		fmt.Fprintf(&b, "OBJECTS HERE: %s\n", listOrNone(rec.VisibleObjects()))
		fmt.Fprintf(&b, "NOT YET EXAMINED: %s\n", listOrNone(rec.UnexaminedObjects()))
	}
	fmt.Fprintf(&b, "INVENTORY: %s\n", listOrNone(m.inventory))

	if m.current != nil {
		if len(m.current.Clues) > 0 {
			fmt.Fprintf(&b, "CLUES: %s\n", strings.Join(m.current.Clues, "; "))
		}
		if m.current.Score != nil {
			fmt.Fprintf(&b, "SCORE: %d\n", *m.current.Score)
		}
	}

	if len(m.outcomes) > 0 {
		b.WriteString("RECENT COMMANDS:\n")
		for _, o := range m.outcomes {
			fmt.Fprintf(&b, "  [%s] %s\n", o.Result.Marker(), o.Command)
		}
	}

	if len(m.forbidden) > 0 {
		keys := m.sortedForbidden()
		fmt.Fprintf(&b, "DO NOT USE: %s\n", strings.Join(keys, ", "))
	}

	if loop := m.detectLoops(); loop.Looping {
		fmt.Fprintf(&b, "WARNING - LOOP DETECTED (%s): %s\n", loop.Pattern, loop.Suggestion)
	}

	if leads := m.currentRoomLeads(); len(leads) > 0 {
		b.WriteString("LEADS HERE:\n")
		for _, l := range leads {
			fmt.Fprintf(&b, "  - %s: %s\n", l.Type, l.Description)
		}
	}

	fmt.Fprintf(&b, "ROOMS EXPLORED: %d", len(m.roomOrder))
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Stats is a compact summary of exploration progress.
type Stats struct {
	Turn           int    `json:"turn"`
	Room           string `json:"room"`
	RoomsExplored  int    `json:"rooms_explored"`
	Leads          int    `json:"leads"`
	Inventory      int    `json:"inventory"`
	Forbidden      int    `json:"forbidden"`
	StuckCount     int    `json:"stuck_count"`
	NoChangeStreak int    `json:"no_change_streak"`
	Score          *int   `json:"score,omitempty"`
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		Turn:           m.turn,
		Room:           state.UnknownRoom,
		RoomsExplored:  len(m.roomOrder),
		Leads:          len(m.leads),
		Inventory:      len(m.inventory),
		Forbidden:      len(m.forbidden),
		StuckCount:     m.stuckCount,
		NoChangeStreak: m.noChangeStreak,
	}
	if m.current != nil {
		s.Room = m.current.Room
		if m.current.Score != nil {
			v := *m.current.Score
			s.Score = &v
		}
	}
	return s
}
