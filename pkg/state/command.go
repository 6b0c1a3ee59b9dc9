package state

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Direction is a movement code. Exits are always recorded as single-letter codes.
type Direction string

const (
	DirNorth     Direction = "N"
	DirSouth     Direction = "S"
	DirEast      Direction = "E"
	DirWest      Direction = "W"
	DirUp        Direction = "U"
	DirDown      Direction = "D"
	DirNorthEast Direction = "NE"
	DirNorthWest Direction = "NW"
	DirSouthEast Direction = "SE"
	DirSouthWest Direction = "SW"
	DirNone      Direction = ""
)

// CardinalDirections is the fallback exit set used when no exits can be read from the text.
var CardinalDirections = []Direction{DirNorth, DirSouth, DirEast, DirWest}

var directionWords = map[string]Direction{
	"N": DirNorth, "NORTH": DirNorth,
	"S": DirSouth, "SOUTH": DirSouth,
	"E": DirEast, "EAST": DirEast,
	"W": DirWest, "WEST": DirWest,
	"U": DirUp, "UP": DirUp,
	"D": DirDown, "DOWN": DirDown,
	"NE": DirNorthEast, "NORTHEAST": DirNorthEast,
	"NW": DirNorthWest, "NORTHWEST": DirNorthWest,
	"SE": DirSouthEast, "SOUTHEAST": DirSouthEast,
	"SW": DirSouthWest, "SOUTHWEST": DirSouthWest,
}

// ParseDirection accepts a direction code or word in any case.
func ParseDirection(s string) (Direction, bool) {
	d, ok := directionWords[strings.ToUpper(strings.TrimSpace(s))]
	return d, ok
}

// Verb identifies what a command does. Free-form nouns travel in Command.Object.
type Verb string

const (
	VerbGo        Verb = "go"
	VerbLook      Verb = "look"
	VerbInventory Verb = "inventory"
	VerbExamine   Verb = "examine"
	VerbTake      Verb = "take"
	VerbDrop      Verb = "drop"
	VerbOpen      Verb = "open"
	VerbRead      Verb = "read"
	VerbPush      Verb = "push"
	VerbPull      Verb = "pull"
	VerbMove      Verb = "move"
	VerbUnlock    Verb = "unlock"
	VerbTurnOn    Verb = "turn-on"
	VerbOther     Verb = "other"
	VerbNone      Verb = ""
)

var verbWords = map[string]Verb{
	"L":         VerbLook,
	"LOOK":      VerbLook,
	"I":         VerbInventory,
	"INV":       VerbInventory,
	"INVENTORY": VerbInventory,
	"X":         VerbExamine,
	"EXAMINE":   VerbExamine,
	"TAKE":      VerbTake,
	"GET":       VerbTake,
	"DROP":      VerbDrop,
	"OPEN":      VerbOpen,
	"READ":      VerbRead,
	"PUSH":      VerbPush,
	"PRESS":     VerbPush,
	"PULL":      VerbPull,
	"MOVE":      VerbMove,
	"UNLOCK":    VerbUnlock,
}

// canonical spellings used when building commands
var verbText = map[Verb]string{
	VerbLook:      "LOOK",
	VerbInventory: "INVENTORY",
	VerbExamine:   "EXAMINE",
	VerbTake:      "TAKE",
	VerbDrop:      "DROP",
	VerbOpen:      "OPEN",
	VerbRead:      "READ",
	VerbPush:      "PUSH",
	VerbPull:      "PULL",
	VerbMove:      "MOVE",
	VerbUnlock:    "UNLOCK",
	VerbTurnOn:    "TURN ON",
}

var articles = map[string]bool{"A": true, "AN": true, "THE": true, "SOME": true}

// Command is a parsed player command.
type Command struct {
	Verb      Verb      `json:"verb"`
	Direction Direction `json:"direction,omitempty"`
	Object    string    `json:"object,omitempty"`
	Raw       string    `json:"raw"`
}

func (c Command) String() string {
	return c.Raw
}

// IsMovement reports whether the command moves the player.
func (c Command) IsMovement() bool {
	return c.Verb == VerbGo
}

// IsInformational reports whether the command only gathers information.
func (c Command) IsInformational() bool {
	switch c.Verb {
	case VerbLook, VerbInventory, VerbExamine:
		return true
	}
	return false
}

// NormalizeCommand upper-cases the command and collapses runs of whitespace.
// Casers are stateful, so one is built per call.
func NormalizeCommand(s string) string {
	return cases.Upper(language.English).String(strings.Join(strings.Fields(s), " "))
}

// ParseCommand recognizes the verb and its argument. Unknown verbs become VerbOther
// with the remainder of the command as the object.
func ParseCommand(input string) Command {
	raw := NormalizeCommand(input)
	cmd := Command{Raw: raw}
	if raw == "" {
		return cmd
	}

	words := strings.Fields(raw)
	if d, ok := directionWords[raw]; ok {
		cmd.Verb = VerbGo
		cmd.Direction = d
		return cmd
	}

	switch {
	case len(words) == 2 && (words[0] == "GO" || words[0] == "WALK" || words[0] == "RUN"):
		if d, ok := directionWords[words[1]]; ok {
			cmd.Verb = VerbGo
			cmd.Direction = d
			return cmd
		}
	case words[0] == "PICK" && len(words) > 1 && words[1] == "UP":
		cmd.Verb = VerbTake
		cmd.Object = objectPhrase(words[2:])
		return cmd
	case words[0] == "TURN" && len(words) > 1 && words[1] == "ON":
		cmd.Verb = VerbTurnOn
		cmd.Object = objectPhrase(words[2:])
		return cmd
	case words[0] == "LOOK" && len(words) > 1 && words[1] == "AT":
		cmd.Verb = VerbExamine
		cmd.Object = objectPhrase(words[2:])
		return cmd
	}

	if v, ok := verbWords[words[0]]; ok {
		cmd.Verb = v
		cmd.Object = objectPhrase(words[1:])
		return cmd
	}

	cmd.Verb = VerbOther
	cmd.Object = objectPhrase(words[1:])
	return cmd
}

// objectPhrase drops leading articles and anything after a preposition
// ("KEY" from "THE KEY", "DOOR" from "DOOR WITH KEY").
func objectPhrase(words []string) string {
	for len(words) > 0 && articles[words[0]] {
		words = words[1:]
	}
	for i, w := range words {
		if w == "WITH" || w == "IN" || w == "ON" || w == "FROM" || w == "TO" {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

// Go builds a movement command.
func Go(d Direction) Command {
	return Command{Verb: VerbGo, Direction: d, Raw: string(d)}
}

// Act builds a verb command against an object. An empty object yields the bare verb.
func Act(v Verb, object string) Command {
	text := verbText[v]
	if object != "" {
		text += " " + NormalizeCommand(object)
	}
	return Command{Verb: v, Object: NormalizeCommand(object), Raw: text}
}

// HeadNoun returns the last word of an object phrase ("LANTERN" from "BRASS LANTERN").
func HeadNoun(object string) string {
	words := strings.Fields(object)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}
