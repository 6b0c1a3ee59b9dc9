package game

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jwebster45206/adventure-agent/pkg/state"
)

const (
	holderInventory = "inventory"
	roomPrefix      = "room:"
	itemPrefix      = "item:"
)

type itemState struct {
	open     bool
	locked   bool
	lit      bool
	scored   bool
	revealed bool
}

// Scripted plays a World in-process. It speaks the same terse dialect as the
// classic parser games so the extractor sees realistic text.
type Scripted struct {
	logger *slog.Logger

	mu       sync.Mutex
	world    *World
	room     string
	where    map[string]string   // item id -> holder
	holdings map[string][]string // holder -> item ids in display order
	items    map[string]*itemState
	score    int
	moves    int
	running  bool
}

var _ Engine = (*Scripted)(nil)

func NewScripted(logger *slog.Logger) *Scripted {
	return &Scripted{logger: logger}
}

// Initialize loads the world and returns the opening room description
// followed by the world's introduction.
func (s *Scripted) Initialize(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w, err := LoadWorld(locator)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.world = w
	s.room = w.Start
	s.where = make(map[string]string)
	s.holdings = make(map[string][]string)
	s.items = make(map[string]*itemState, len(w.Items))
	s.score, s.moves = 0, 0
	for id, item := range w.Items {
		s.items[id] = &itemState{locked: item.Locked}
	}
	for _, roomID := range sortedKeys(w.Rooms) {
		for _, id := range w.Rooms[roomID].Items {
			s.place(id, roomPrefix+roomID)
		}
	}
	for _, id := range sortedKeys(w.Items) {
		for _, content := range w.Items[id].Contents {
			s.place(content, itemPrefix+id)
		}
	}
	s.running = true

	s.logger.Info("Scripted game loaded", "title", w.Title, "rooms", len(w.Rooms), "items", len(w.Items))

	text := s.describeRoom()
	if intro := strings.TrimSpace(w.Intro); intro != "" {
		text += "\n\n" + intro
	}
	return text, nil
}

// SendCommand runs one command against the world.
func (s *Scripted) SendCommand(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return "", ErrNotRunning
	}
	return s.execute(command), nil
}

func (s *Scripted) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{WaitingForInput: s.running, Running: s.running, TurnCount: s.moves}
}

func (s *Scripted) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = nil
	s.running = false
	s.score, s.moves = 0, 0
	return nil
}

func (s *Scripted) execute(command string) string {
	cmd := state.ParseCommand(command)
	if cmd.Raw == "" {
		return "I beg your pardon?"
	}
	s.moves++

	switch cmd.Verb {
	case state.VerbGo:
		return s.move(cmd.Direction)
	case state.VerbLook:
		return s.describeRoom()
	case state.VerbInventory:
		return s.inventory()
	case state.VerbOther:
		return s.other(cmd)
	}

	verb := strings.ToLower(strings.Fields(cmd.Raw)[0])
	if cmd.Verb == state.VerbTurnOn {
		verb = "turn on"
	}
	if cmd.Object == "" {
		return fmt.Sprintf("What do you want to %s?", verb)
	}
	id, ok := s.find(cmd.Object)
	if !ok {
		return fmt.Sprintf("You can't see any %s here.", strings.ToLower(cmd.Object))
	}

	switch cmd.Verb {
	case state.VerbExamine:
		return s.examine(id)
	case state.VerbTake:
		return s.take(id)
	case state.VerbDrop:
		return s.drop(id)
	case state.VerbOpen:
		return s.open(id)
	case state.VerbRead:
		return s.read(id)
	case state.VerbUnlock:
		return s.unlock(id)
	case state.VerbTurnOn:
		return s.turnOn(id)
	default: // push, pull, move
		return s.shift(id)
	}
}

func (s *Scripted) other(cmd state.Command) string {
	words := strings.Fields(cmd.Raw)
	switch words[0] {
	case "GO", "WALK", "RUN":
		if d, ok := state.ParseDirection(cmd.Object); ok {
			return s.move(d)
		}
		return "I don't know which way that is."
	case "CLOSE":
		if cmd.Object == "" {
			return "What do you want to close?"
		}
		id, ok := s.find(cmd.Object)
		if !ok {
			return fmt.Sprintf("You can't see any %s here.", strings.ToLower(cmd.Object))
		}
		return s.close(id)
	case "SCORE":
		return fmt.Sprintf("Your score is %d (total of %d points), in %d moves.", s.score, s.world.MaxScore, s.moves)
	case "WAIT", "Z":
		return "Time passes..."
	}
	return fmt.Sprintf("I don't know the word \"%s\".", strings.ToLower(words[0]))
}

func (s *Scripted) move(d state.Direction) string {
	room := s.world.Rooms[s.room]
	for key, exit := range room.Exits {
		if dir, _ := state.ParseDirection(key); dir != d {
			continue
		}
		if exit.Blocked != "" {
			return exit.Blocked
		}
		if exit.Via != "" {
			if s.where[exit.Via] == "" {
				break
			}
			if !s.items[exit.Via].open {
				return fmt.Sprintf("The %s is closed.", s.world.Items[exit.Via].Name)
			}
		}
		s.room = exit.To
		return s.describeRoom()
	}
	return "You can't go that way."
}

func (s *Scripted) describeRoom() string {
	room := s.world.Rooms[s.room]
	if room.Dark && !s.lit() {
		return "It is pitch black. You are likely to be eaten by a grue."
	}

	lines := []string{room.Name, strings.TrimSpace(room.Description)}
	for _, id := range s.holdings[roomPrefix+s.room] {
		item := s.world.Items[id]
		// fixed items are part of the authored description unless they were revealed later
		if !item.Fixed || !slices.Contains(room.Items, id) {
			lines = append(lines, fmt.Sprintf("There is %s here.", withArticle(item.Name)))
		}
		if contents := s.holdings[itemPrefix+id]; len(contents) > 0 && s.items[id].open {
			lines = append(lines, fmt.Sprintf("The %s contains %s.", item.Name, s.list(contents)))
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Scripted) inventory() string {
	carried := s.holdings[holderInventory]
	if len(carried) == 0 {
		return "You are empty-handed."
	}
	lines := []string{"You are carrying:"}
	for _, id := range carried {
		name := withArticle(s.world.Items[id].Name)
		lines = append(lines, "  "+strings.ToUpper(name[:1])+name[1:])
	}
	return strings.Join(lines, "\n")
}

func (s *Scripted) examine(id string) string {
	item, st := s.world.Items[id], s.items[id]
	lines := []string{item.Description}
	if item.Openable {
		switch {
		case st.locked:
			lines = append(lines, fmt.Sprintf("The %s is locked.", item.Name))
		case !st.open:
			lines = append(lines, fmt.Sprintf("The %s is closed.", item.Name))
		case len(s.holdings[itemPrefix+id]) > 0:
			lines = append(lines, fmt.Sprintf("The %s contains %s.", item.Name, s.list(s.holdings[itemPrefix+id])))
		default:
			lines = append(lines, fmt.Sprintf("The %s is open and empty.", item.Name))
		}
	}
	if item.Light {
		onOff := "off"
		if st.lit {
			onOff = "on"
		}
		lines = append(lines, fmt.Sprintf("The %s is turned %s.", item.Name, onOff))
	}
	return strings.Join(lines, " ")
}

func (s *Scripted) take(id string) string {
	item, st := s.world.Items[id], s.items[id]
	if s.where[id] == holderInventory {
		return "You already have that."
	}
	if item.Fixed {
		return fmt.Sprintf("You can't take the %s.", item.Name)
	}
	s.place(id, holderInventory)
	if item.Points > 0 && !st.scored {
		st.scored = true
		s.score += item.Points
	}
	return "Taken."
}

func (s *Scripted) drop(id string) string {
	if s.where[id] != holderInventory {
		return "You don't have that."
	}
	s.place(id, roomPrefix+s.room)
	return "Dropped."
}

func (s *Scripted) open(id string) string {
	item, st := s.world.Items[id], s.items[id]
	switch {
	case !item.Openable:
		return fmt.Sprintf("You can't open the %s.", item.Name)
	case st.locked:
		return fmt.Sprintf("The %s is locked.", item.Name)
	case st.open:
		return "It is already open."
	}
	st.open = true
	if contents := s.holdings[itemPrefix+id]; len(contents) > 0 {
		return fmt.Sprintf("Opening the %s reveals %s.", item.Name, s.list(contents))
	}
	return "Opened."
}

func (s *Scripted) close(id string) string {
	item, st := s.world.Items[id], s.items[id]
	if !item.Openable {
		return fmt.Sprintf("You can't close the %s.", item.Name)
	}
	if !st.open {
		return "It is already closed."
	}
	st.open = false
	return "Closed."
}

func (s *Scripted) read(id string) string {
	item := s.world.Items[id]
	if item.Text == "" {
		return fmt.Sprintf("There is nothing written on the %s.", item.Name)
	}
	return strings.TrimSpace(item.Text)
}

func (s *Scripted) unlock(id string) string {
	item, st := s.world.Items[id], s.items[id]
	if !st.locked {
		return fmt.Sprintf("The %s isn't locked.", item.Name)
	}
	if item.Key == "" || s.where[item.Key] != holderInventory {
		return "You don't have anything to unlock it with."
	}
	st.locked = false
	return "Unlocked."
}

func (s *Scripted) turnOn(id string) string {
	item, st := s.world.Items[id], s.items[id]
	if !item.Light {
		return "You can't turn that on."
	}
	if st.lit {
		return "It is already on."
	}
	st.lit = true
	return fmt.Sprintf("The %s is now on.", item.Name)
}

func (s *Scripted) shift(id string) string {
	item, st := s.world.Items[id], s.items[id]
	if item.Reveals == "" || st.revealed {
		return fmt.Sprintf("Moving the %s reveals nothing.", item.Name)
	}
	st.revealed = true
	s.place(item.Reveals, roomPrefix+s.room)
	return strings.TrimSpace(item.RevealText)
}

// find resolves a noun phrase against everything the player can see.
func (s *Scripted) find(object string) (string, bool) {
	head := strings.ToLower(state.HeadNoun(object))
	full := strings.ToLower(object)
	for _, id := range s.visible() {
		item := s.world.Items[id]
		if strings.EqualFold(item.Name, full) || slices.Contains(item.Nouns, head) {
			return id, true
		}
	}
	return "", false
}

// visible lists carried items, then room items when the room is lit, each
// followed by the contents of open containers.
func (s *Scripted) visible() []string {
	var ids []string
	holders := []string{holderInventory}
	if !s.world.Rooms[s.room].Dark || s.lit() {
		holders = append(holders, roomPrefix+s.room)
	}
	for _, holder := range holders {
		for _, id := range s.holdings[holder] {
			ids = append(ids, id)
			if s.items[id].open {
				ids = append(ids, s.holdings[itemPrefix+id]...)
			}
		}
	}
	return ids
}

func (s *Scripted) lit() bool {
	for _, holder := range []string{holderInventory, roomPrefix + s.room} {
		for _, id := range s.holdings[holder] {
			if s.world.Items[id].Light && s.items[id].lit {
				return true
			}
		}
	}
	return false
}

func (s *Scripted) place(id, holder string) {
	if prev, ok := s.where[id]; ok {
		s.holdings[prev] = slices.DeleteFunc(s.holdings[prev], func(other string) bool { return other == id })
	}
	s.where[id] = holder
	s.holdings[holder] = append(s.holdings[holder], id)
}

func (s *Scripted) list(ids []string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = withArticle(s.world.Items[id].Name)
	}
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func withArticle(name string) string {
	if name == "" {
		return name
	}
	if strings.ContainsRune("aeiou", rune(name[0])) {
		return "an " + name
	}
	return "a " + name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
