// Package game holds the interactive-fiction engines the agent plays against.
package game

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotRunning  = errors.New("game is not running")
	ErrUnknownGame = errors.New("unknown game")
)

// State is the engine's view of the session.
type State struct {
	WaitingForInput bool `json:"waiting_for_input"`
	Running         bool `json:"running"`
	TurnCount       int  `json:"turn_count"`
}

// Engine is a turn-based text game: one response per command.
type Engine interface {
	// Initialize loads the game named by locator and returns its boot text
	Initialize(ctx context.Context, locator string) (string, error)

	// SendCommand submits one command and returns the game's response
	SendCommand(ctx context.Context, command string) (string, error)

	State() State

	// Reset stops the game. Initialize must be called again before playing.
	Reset(ctx context.Context) error
}

// Options configures engine selection.
type Options struct {
	Interpreter   string
	SettleTimeout time.Duration
}

// BuiltinPrefix marks locators served by the scripted engine.
const BuiltinPrefix = "builtin:"

// NewEngine picks the engine for a locator: builtin worlds and YAML world files
// run in-process, anything else is handed to the Z-machine interpreter.
func NewEngine(locator string, opts Options, logger *slog.Logger) Engine {
	if IsScripted(locator) {
		return NewScripted(logger)
	}
	return NewFrotz(opts.Interpreter, opts.SettleTimeout, logger)
}

// IsScripted reports whether the locator names a world the scripted engine can load.
func IsScripted(locator string) bool {
	if strings.HasPrefix(locator, BuiltinPrefix) {
		return true
	}
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
