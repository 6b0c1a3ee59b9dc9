package state

import "slices"

const UnknownRoom = "Unknown"

// Snapshot is the structured reading of one turn's game output.
type Snapshot struct {
	Room      string      `json:"room"`
	Exits     []Direction `json:"exits"`
	Objects   []string    `json:"objects"`
	Inventory []string    `json:"inventory"`
	Score     *int        `json:"score,omitempty"`
	Moves     *int        `json:"moves,omitempty"`
	Clues     []string    `json:"clues"`

	// InventoryListed is set when the output itself listed the inventory.
	InventoryListed bool `json:"-"`
}

// Clone returns a deep copy so callers can hold on to a previous turn's view.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Exits = slices.Clone(s.Exits)
	c.Objects = slices.Clone(s.Objects)
	c.Inventory = slices.Clone(s.Inventory)
	c.Clues = slices.Clone(s.Clues)
	if s.Score != nil {
		v := *s.Score
		c.Score = &v
	}
	if s.Moves != nil {
		v := *s.Moves
		c.Moves = &v
	}
	return &c
}

// RoomRecord is everything remembered about one room, keyed by its name.
type RoomRecord struct {
	Name        string      `json:"name"`
	Exits       []Direction `json:"exits"`
	TriedExits  []Direction `json:"tried_exits"`
	Objects     []string    `json:"objects"`
	Examined    []string    `json:"examined"`
	Taken       []string    `json:"taken"`
	Description string      `json:"description,omitempty"`
	Visits      int         `json:"visits"`
}

// NewRoomRecord creates an empty, unvisited record.
func NewRoomRecord(name string) *RoomRecord {
	return &RoomRecord{
		Name:       name,
		Exits:      make([]Direction, 0),
		TriedExits: make([]Direction, 0),
		Objects:    make([]string, 0),
		Examined:   make([]string, 0),
		Taken:      make([]string, 0),
	}
}

// UntriedExits returns known exits that have not been attempted, in discovery order.
func (r *RoomRecord) UntriedExits() []Direction {
	out := make([]Direction, 0, len(r.Exits))
	for _, e := range r.Exits {
		if !slices.Contains(r.TriedExits, e) {
			out = append(out, e)
		}
	}
	return out
}

// UnexaminedObjects returns objects seen here that have not been examined.
func (r *RoomRecord) UnexaminedObjects() []string {
	out := make([]string, 0, len(r.Objects))
	for _, o := range r.Objects {
		if !slices.Contains(r.Examined, o) {
			out = append(out, o)
		}
	}
	return out
}

// VisibleObjects returns objects seen here that have not been taken.
func (r *RoomRecord) VisibleObjects() []string {
	out := make([]string, 0, len(r.Objects))
	for _, o := range r.Objects {
		if !slices.Contains(r.Taken, o) {
			out = append(out, o)
		}
	}
	return out
}

// Clone returns a deep copy of the record.
func (r *RoomRecord) Clone() *RoomRecord {
	c := *r
	c.Exits = slices.Clone(r.Exits)
	c.TriedExits = slices.Clone(r.TriedExits)
	c.Objects = slices.Clone(r.Objects)
	c.Examined = slices.Clone(r.Examined)
	c.Taken = slices.Clone(r.Taken)
	return &c
}

// AppendUnique appends v unless it is already present.
func AppendUnique[T comparable](list []T, v T) []T {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
