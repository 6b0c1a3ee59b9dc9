// Package memory holds everything the agent remembers about one play session:
// a short-term window of recent outcomes with its counters, and the long-term
// room graph, leads and inventory.
package memory

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jwebster45206/adventure-agent/pkg/extract"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

const (
	OutcomeWindow        = 10
	FailureForbidTurns   = 10
	DefaultForbidTurns   = 6
	DefaultSummaryPeriod = 5
	StuckStreak          = 3
	loopWindow           = 6
	maxDescription       = 400
)

var (
	takeConfirm = regexp.MustCompile(`(?i)\btaken\b|\byou have\b`)
	openConfirm = regexp.MustCompile(`(?i)\b(?:opens|opened|opening)\b`)
	dropConfirm = regexp.MustCompile(`(?i)\bdropped\b`)
)

// Memory is the per-session world memory. It is safe for concurrent readers,
// but updates are expected to come from a single turn sequence.
type Memory struct {
	mu        sync.RWMutex
	extractor extract.Extractor
	logger    *slog.Logger

	turn            int
	current         *state.Snapshot
	outcomes        []state.CommandOutcome
	noChangeStreak  int
	stuckCount      int
	forbidden       map[string]int
	summary         string
	lastSummaryTurn int
	enteredNewRoom  bool

	rooms     map[string]*state.RoomRecord
	roomOrder []string
	leads     []state.Lead
	inventory []string
}

// New creates an empty memory. A nil extractor selects the heuristic one.
func New(extractor extract.Extractor, logger *slog.Logger) *Memory {
	if extractor == nil {
		extractor = extract.NewHeuristic()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{extractor: extractor, logger: logger}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.turn = 0
	m.current = nil
	m.outcomes = make([]state.CommandOutcome, 0, OutcomeWindow)
	m.noChangeStreak = 0
	m.stuckCount = 0
	m.forbidden = make(map[string]int)
	m.summary = ""
	m.lastSummaryTurn = 0
	m.enteredNewRoom = false
	m.rooms = make(map[string]*state.RoomRecord)
	m.roomOrder = make([]string, 0)
	m.leads = make([]state.Lead, 0)
	m.inventory = make([]string, 0)
}

// Reset clears all short- and long-term state.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	m.logger.Debug("Memory reset")
}

// ExtractState runs the extractor against the current snapshot without changing memory.
func (m *Memory) ExtractState(text string) *state.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extractor.Extract(text, m.current)
}

// Observe records game text that was not produced by a command, such as the
// boot banner. The turn counter is left alone.
func (m *Memory) Observe(text string) *state.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.extractor.Extract(text, m.current)
	m.enteredNewRoom = false
	rec := m.visit(snap)
	rec.Description = description(text)
	if snap.InventoryListed {
		m.inventory = append(make([]string, 0, len(snap.Inventory)), snap.Inventory...)
	}
	m.detectLeads(snap.Room, text)
	m.setCurrent(snap)
	return snap.Clone()
}

// UpdateAfterCommand classifies a command against the text it produced and
// folds the result into memory. prev is the snapshot the command was issued from.
func (m *Memory) UpdateAfterCommand(command, output string, prev *state.Snapshot) state.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turn++
	if prev == nil {
		prev = m.current
	}
	snap := m.extractor.Extract(output, prev)
	cmd := state.ParseCommand(command)
	failed := extract.IsFailure(output)

	prevRoom := state.UnknownRoom
	if prev != nil && prev.Room != "" {
		prevRoom = prev.Room
	}

	result := m.classify(cmd, output, failed, prevRoom != snap.Room)
	m.outcomes = append(m.outcomes, state.CommandOutcome{Command: cmd.Raw, Result: result, Turn: m.turn})
	if len(m.outcomes) > OutcomeWindow {
		m.outcomes = m.outcomes[len(m.outcomes)-OutcomeWindow:]
	}

	if result == state.OutcomeProgress {
		m.noChangeStreak = 0
	} else {
		m.noChangeStreak++
		if m.noChangeStreak == StuckStreak {
			m.stuckCount++
		}
	}

	m.decayForbidden()
	if result == state.OutcomeFailure && cmd.Raw != "" {
		m.forbidden[cmd.Raw] = FailureForbidTurns
	}

	m.enteredNewRoom = false
	rec := m.visit(snap)
	if !failed && (prevRoom != snap.Room || cmd.Verb == state.VerbLook) {
		rec.Description = description(output)
	}
	m.recordCommandFacts(prevRoom, cmd)

	switch {
	case snap.InventoryListed:
		m.inventory = append(make([]string, 0, len(snap.Inventory)), snap.Inventory...)
	case cmd.Verb == state.VerbTake && !failed && takeConfirm.MatchString(output):
		m.inventory = state.AppendUnique(m.inventory, state.HeadNoun(cmd.Object))
	case cmd.Verb == state.VerbDrop && !failed && dropConfirm.MatchString(output):
		m.inventory = removeString(m.inventory, state.HeadNoun(cmd.Object))
	}

	m.detectLeads(snap.Room, output)
	m.setCurrent(snap)

	m.logger.Debug("Memory updated",
		"turn", m.turn,
		"command", cmd.Raw,
		"result", result,
		"room", snap.Room,
		"streak", m.noChangeStreak)
	return result
}

func (m *Memory) classify(cmd state.Command, output string, failed, roomChanged bool) state.Outcome {
	switch {
	case failed:
		return state.OutcomeFailure
	case roomChanged:
		return state.OutcomeProgress
	case cmd.Verb == state.VerbTake && takeConfirm.MatchString(output):
		return state.OutcomeProgress
	case cmd.Verb == state.VerbOpen && openConfirm.MatchString(output):
		return state.OutcomeProgress
	case cmd.IsInformational():
		return state.OutcomeProgress
	default:
		return state.OutcomeNoChange
	}
}

// decayForbidden ticks every countdown and evicts the expired ones.
func (m *Memory) decayForbidden() {
	for cmd, left := range m.forbidden {
		if left-1 <= 0 {
			delete(m.forbidden, cmd)
			continue
		}
		m.forbidden[cmd] = left - 1
	}
}

// visit merges a snapshot into its room record, creating it on first sight.
func (m *Memory) visit(snap *state.Snapshot) *state.RoomRecord {
	rec := m.room(snap.Room)
	rec.Visits++
	for _, d := range snap.Exits {
		rec.Exits = state.AppendUnique(rec.Exits, d)
	}
	for _, o := range snap.Objects {
		rec.Objects = state.AppendUnique(rec.Objects, o)
	}
	return rec
}

// room returns the record for name, creating it if needed.
func (m *Memory) room(name string) *state.RoomRecord {
	if rec, ok := m.rooms[name]; ok {
		return rec
	}
	rec := state.NewRoomRecord(name)
	m.rooms[name] = rec
	m.roomOrder = append(m.roomOrder, name)
	m.enteredNewRoom = true
	m.logger.Info("New room discovered", "room", name, "rooms", len(m.roomOrder))
	return rec
}

// recordCommandFacts marks what the command did against the room it was issued from.
func (m *Memory) recordCommandFacts(origin string, cmd state.Command) {
	switch {
	case cmd.IsMovement():
		rec := m.existingOrNew(origin)
		rec.TriedExits = state.AppendUnique(rec.TriedExits, cmd.Direction)
	case cmd.Verb == state.VerbExamine && cmd.Object != "":
		rec := m.existingOrNew(origin)
		rec.Examined = state.AppendUnique(rec.Examined, state.HeadNoun(cmd.Object))
	case cmd.Verb == state.VerbTake && cmd.Object != "":
		rec := m.existingOrNew(origin)
		rec.Taken = state.AppendUnique(rec.Taken, state.HeadNoun(cmd.Object))
	}
}

// existingOrNew is room without the new-room signal; the origin room was
// already current when the command was issued.
func (m *Memory) existingOrNew(name string) *state.RoomRecord {
	entered := m.enteredNewRoom
	rec := m.room(name)
	m.enteredNewRoom = entered
	return rec
}

func (m *Memory) setCurrent(snap *state.Snapshot) {
	snap.Inventory = append(make([]string, 0, len(m.inventory)), m.inventory...)
	m.current = snap
}

// IsForbidden reports whether command is currently forbidden.
func (m *Memory) IsForbidden(command string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forbidden[state.NormalizeCommand(command)] > 0
}

// ForbidCommand forbids command for the given number of turns (DefaultForbidTurns when turns <= 0).
func (m *Memory) ForbidCommand(command string, turns int) {
	if turns <= 0 {
		turns = DefaultForbidTurns
	}
	cmd := state.NormalizeCommand(command)
	if cmd == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if turns > m.forbidden[cmd] {
		m.forbidden[cmd] = turns
	}
}

// Forbidden returns a copy of the forbidden-command countdowns.
func (m *Memory) Forbidden() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.forbidden))
	for k, v := range m.forbidden {
		out[k] = v
	}
	return out
}

func (m *Memory) sortedForbidden() []string {
	keys := make([]string, 0, len(m.forbidden))
	for k := range m.forbidden {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NeedsSummaryRefresh reports whether interval turns have passed since the last summary.
func (m *Memory) NeedsSummaryRefresh(interval int) bool {
	if interval <= 0 {
		interval = DefaultSummaryPeriod
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.turn-m.lastSummaryTurn >= interval
}

// SetSummary stores a freshly generated progress summary.
func (m *Memory) SetSummary(summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = strings.TrimSpace(summary)
	m.lastSummaryTurn = m.turn
}

func (m *Memory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

func (m *Memory) Turn() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.turn
}

func (m *Memory) StuckCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stuckCount
}

func (m *Memory) NoChangeStreak() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.noChangeStreak
}

// EnteredNewRoom reports whether the latest update created a room record.
func (m *Memory) EnteredNewRoom() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enteredNewRoom
}

// Current returns a copy of the latest snapshot, or nil before the first observation.
func (m *Memory) Current() *state.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

func (m *Memory) RecentOutcomes() []state.CommandOutcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]state.CommandOutcome(nil), m.outcomes...)
}

func (m *Memory) Inventory() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(make([]string, 0, len(m.inventory)), m.inventory...)
}

// Rooms returns copies of every room record in discovery order.
func (m *Memory) Rooms() []*state.RoomRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*state.RoomRecord, 0, len(m.roomOrder))
	for _, name := range m.roomOrder {
		out = append(out, m.rooms[name].Clone())
	}
	return out
}

// Leads returns every unresolved lead.
func (m *Memory) Leads() []state.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]state.Lead(nil), m.leads...)
}

func description(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	desc := strings.TrimSpace(strings.Join(lines, " "))
	if utf8.RuneCountInString(desc) > maxDescription {
		desc = string([]rune(desc)[:maxDescription])
	}
	return desc
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
