package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-agent/internal/config"
	"github.com/jwebster45206/adventure-agent/internal/logger"
	"github.com/jwebster45206/adventure-agent/internal/services"
	sqlitelog "github.com/jwebster45206/adventure-agent/internal/storage"
	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
	"github.com/jwebster45206/adventure-agent/pkg/game"
	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gameFile := flag.String("game", cfg.GameFile, "story file or builtin:<name> locator")
	turns := flag.Int("turns", 50, "turns to play; 0 plays until interrupted")
	thinking := flag.Bool("thinking", false, "print reasoning and streamed tokens")
	width := flag.Int("width", 80, "wrap game text at this width; 0 disables wrapping")
	dbPath := flag.String("db", cfg.TurnLogDB, "record turns to this SQLite file")
	flag.Parse()

	if *turns < 0 {
		fmt.Fprintln(os.Stderr, "usage: agent [-game builtin:house] [-turns 50] [-thinking] [-db turns.db]")
		os.Exit(2)
	}

	// Logs go to stderr so the transcript on stdout stays clean.
	log, logCloser, err := logger.SetupWithWriter(cfg, os.Stderr)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logCloser.Close() }()

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmService, err := services.NewLLMService(ctx, cfg.ProviderOptions(), log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}
	if closer, ok := llmService.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	if err := llmService.InitModel(ctx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	var recorder autoplay.Recorder
	if *dbPath != "" {
		turnLog, err := sqlitelog.NewSQLiteTurnLog(ctx, *dbPath, log)
		if err != nil {
			log.Error("Failed to open turn log", "error", err, "path", *dbPath)
			os.Exit(1)
		}
		defer func() { _ = turnLog.Close() }()
		id := uuid.New()
		recorder = storage.SessionRecorder{Log: turnLog, SessionID: id}
		log.Info("Recording turns", "path", *dbPath, "session_id", id.String())
	}

	engine := game.NewEngine(*gameFile, cfg.GameOptions(), log)
	played, err := play(ctx, llmService, engine, cfg.Agent, *gameFile, *turns,
		newPrinter(os.Stdout, *width, *thinking), recorder, log)
	if err != nil {
		log.Error("Autoplay ended with an error", "error", err, "turns_played", played)
		os.Exit(1)
	}
}

// play boots the game and runs up to turns turns. Interrupts stop the loop
// cleanly; only a halted session is reported as an error.
func play(ctx context.Context, llm autoplay.Completer, engine game.Engine, opts autoplay.Options, locator string, turns int, sink autoplay.Sink, recorder autoplay.Recorder, log *slog.Logger) (int, error) {
	mem := memory.New(nil, log)
	orch := autoplay.New(llm, engine, mem, policy.New(mem), opts, log).WithSink(sink)
	if recorder != nil {
		orch.WithRecorder(recorder)
	}
	defer func() {
		if err := orch.Reset(context.Background()); err != nil {
			log.Warn("Game shutdown reported an error", "error", err)
		}
	}()

	if _, err := orch.Start(ctx, locator); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil
		}
		return 0, err
	}

	played, err := orch.Run(ctx, turns)
	stats := mem.Stats()
	log.Info("Autoplay finished",
		"turns_played", played,
		"rooms_explored", stats.RoomsExplored,
		"inventory", stats.Inventory,
		"stuck_count", stats.StuckCount)

	if errors.Is(err, context.Canceled) || errors.Is(err, autoplay.ErrStopped) {
		return played, nil
	}
	return played, err
}
