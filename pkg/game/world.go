package game

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/adventure-agent/pkg/state"
)

//go:embed worlds/*.yaml
var builtinWorlds embed.FS

// World is a small scripted adventure definition.
type World struct {
	Title    string           `yaml:"title"`
	Intro    string           `yaml:"intro"`
	Start    string           `yaml:"start"`
	MaxScore int              `yaml:"max_score"`
	Rooms    map[string]*Room `yaml:"rooms"`
	Items    map[string]*Item `yaml:"items"`
}

type Room struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Dark        bool            `yaml:"dark"`
	Items       []string        `yaml:"items"`
	Exits       map[string]Exit `yaml:"exits"` // keyed by direction word or code
}

// Exit leads to another room. Via names an item that must be open to pass;
// Blocked is printed instead of moving.
type Exit struct {
	To      string `yaml:"to"`
	Via     string `yaml:"via"`
	Blocked string `yaml:"blocked"`
}

type Item struct {
	Name        string   `yaml:"name"`
	Nouns       []string `yaml:"nouns"`
	Description string   `yaml:"description"`
	Text        string   `yaml:"text"`
	Fixed       bool     `yaml:"fixed"`
	Openable    bool     `yaml:"openable"`
	Locked      bool     `yaml:"locked"`
	Key         string   `yaml:"key"`
	Contents    []string `yaml:"contents"`
	Light       bool     `yaml:"light"`
	Points      int      `yaml:"points"`
	Reveals     string   `yaml:"reveals"`
	RevealText  string   `yaml:"reveal_text"`
}

// LoadWorld reads "builtin:<name>" from the embedded worlds and anything else from disk.
func LoadWorld(locator string) (*World, error) {
	var data []byte
	if name, ok := strings.CutPrefix(locator, BuiltinPrefix); ok {
		b, err := builtinWorlds.ReadFile("worlds/" + name + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGame, locator)
		}
		data = b
	} else {
		b, err := os.ReadFile(locator)
		if err != nil {
			return nil, fmt.Errorf("failed to read world file: %w", err)
		}
		data = b
	}

	var w World
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse world %s: %w", locator, err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid world %s: %w", locator, err)
	}
	return &w, nil
}

// Validate checks that every reference in the world resolves.
func (w *World) Validate() error {
	if _, ok := w.Rooms[w.Start]; !ok {
		return fmt.Errorf("start room %q is not defined", w.Start)
	}
	for id, room := range w.Rooms {
		if room.Name == "" {
			return fmt.Errorf("room %s has no name", id)
		}
		for _, item := range room.Items {
			if _, ok := w.Items[item]; !ok {
				return fmt.Errorf("room %s references unknown item %q", id, item)
			}
		}
		for dir, exit := range room.Exits {
			if _, ok := state.ParseDirection(dir); !ok {
				return fmt.Errorf("room %s has unknown exit direction %q", id, dir)
			}
			if exit.To == "" && exit.Blocked == "" {
				return fmt.Errorf("room %s exit %s leads nowhere", id, dir)
			}
			if exit.To != "" {
				if _, ok := w.Rooms[exit.To]; !ok {
					return fmt.Errorf("room %s exit %s leads to unknown room %q", id, dir, exit.To)
				}
			}
			if exit.Via != "" {
				if _, ok := w.Items[exit.Via]; !ok {
					return fmt.Errorf("room %s exit %s requires unknown item %q", id, dir, exit.Via)
				}
			}
		}
	}
	for id, item := range w.Items {
		if len(item.Nouns) == 0 {
			return fmt.Errorf("item %s has no nouns", id)
		}
		refs := append([]string{item.Key, item.Reveals}, item.Contents...)
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if _, ok := w.Items[ref]; !ok {
				return fmt.Errorf("item %s references unknown item %q", id, ref)
			}
		}
	}
	return nil
}
