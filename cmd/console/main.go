package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	Game       string
	MaxTurns   int
	ModelLabel string
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    2 * time.Minute,
		Game:       getEnv("GAME_FILE", ""),
		ModelLabel: getEnv("MODEL_NAME", "the agent"),
	}
	if raw := os.Getenv("AUTOPLAY_MAX_TURNS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "Invalid AUTOPLAY_MAX_TURNS: %q\n", raw)
			os.Exit(1)
		}
		cfg.MaxTurns = n
	}
	if len(os.Args) > 1 {
		cfg.Game = os.Args[1]
	}

	// Steps wait on the model, so the request client gets a long timeout.
	// The event stream client has none.
	client := &http.Client{
		Timeout: cfg.Timeout,
	}
	streamClient := &http.Client{}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	created, err := createSession(client, cfg.APIBaseURL, cfg.Game)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := make(chan events.Event, 64)
	go func() {
		defer close(eventChan)
		if err := listenToSSE(ctx, streamClient, cfg.APIBaseURL, created.Session.ID, eventChan); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "event stream ended: %v\n", err)
		}
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, client, created, eventChan),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
