package autoplay

import (
	"regexp"
	"strings"

	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

var (
	labelPattern     = regexp.MustCompile(`(?i)^(?:next\s+)?(?:command|action|answer)\s*:\s*`)
	numberingPattern = regexp.MustCompile(`^(?:\d+[.)]|[-*])\s+`)
	junkPattern      = regexp.MustCompile(`[^A-Z0-9 -]+`)
	wellFormed       = regexp.MustCompile(`^[A-Z0-9 ,'-]+$`)
)

// leading words models like to put in front of a command
var fillerWords = map[string]bool{
	"I": true, "YOU": true, "THE": true, "LETS": true, "LET": true, "OK": true,
	"OKAY": true, "WE": true, "WILL": true, "SHOULD": true, "TRY": true,
	"TO": true, "NOW": true, "SO": true, "PLEASE": true, "THEN": true,
}

// CleanCommand turns a model reply into a candidate command: first non-empty
// line, labels and numbering removed, upper-cased, punctuation stripped and
// leading filler words dropped while more words follow.
func CleanCommand(reply string) string {
	var line string
	for _, l := range strings.Split(reply, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	line = strings.TrimLeft(line, "> ")
	line = strings.Trim(line, "\"'`*")
	line = labelPattern.ReplaceAllString(line, "")
	line = numberingPattern.ReplaceAllString(line, "")

	line = state.NormalizeCommand(line)
	line = strings.ReplaceAll(line, "'", "")
	line = junkPattern.ReplaceAllString(line, " ")

	words := strings.Fields(line)
	for len(words) > 1 && fillerWords[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// WellFormed is the final format check applied after policy validation.
func WellFormed(command string) bool {
	return command != "" &&
		len(command) <= policy.MaxCommandChars &&
		len(strings.Fields(command)) <= policy.MaxCommandWords &&
		wellFormed.MatchString(command)
}
