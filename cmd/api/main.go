package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/adventure-agent/internal/config"
	"github.com/jwebster45206/adventure-agent/internal/handlers"
	"github.com/jwebster45206/adventure-agent/internal/logger"
	"github.com/jwebster45206/adventure-agent/internal/middleware"
	"github.com/jwebster45206/adventure-agent/internal/services"
	"github.com/jwebster45206/adventure-agent/internal/services/events"
	"github.com/jwebster45206/adventure-agent/internal/session"
	sqlitelog "github.com/jwebster45206/adventure-agent/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log, logCloser, err := logger.Setup(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logCloser.Close() }()

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("Starting Adventure Agent API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"default_game", cfg.GameFile)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	llmService, err := services.NewLLMService(ctx, cfg.ProviderOptions(), log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}
	if closer, ok := llmService.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	// Initialize the model on startup
	if err := llmService.InitModel(ctx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	redisService := services.NewRedisService(cfg.RedisURL, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := redisService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	broadcaster := events.NewBroadcaster(redisService.GetClient(), log)

	manager := session.NewManager(llmService, session.Options{
		Agent:       cfg.Agent,
		Game:        cfg.GameOptions(),
		DefaultGame: cfg.GameFile,
	}, log).WithPublisher(broadcaster)

	components := map[string]handlers.Pinger{"redis": redisService}

	var turnLog *sqlitelog.SQLiteTurnLog
	if cfg.TurnLogDB != "" {
		turnLog, err = sqlitelog.NewSQLiteTurnLog(storageCtx, cfg.TurnLogDB, log)
		if err != nil {
			log.Error("Failed to open turn log", "error", err, "path", cfg.TurnLogDB)
			os.Exit(1)
		}
		manager.WithTurnLog(turnLog)
		components["turn_log"] = turnLog
		log.Info("Turn log enabled", "path", cfg.TurnLogDB)
	}

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(components, func() int { return len(manager.List()) }, log)
	mux.Handle("/health", healthHandler)

	sessionsHandler := handlers.NewSessionsHandler(manager, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	eventsHandler := handlers.NewEventsHandler(redisService.GetClient(), broadcaster, manager.Exists, log)
	mux.Handle("GET /v1/sessions/{id}/events", eventsHandler)

	handler := middleware.Logger(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: steps wait on the model and the event stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	manager.Shutdown(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if turnLog != nil {
		if err := turnLog.Close(); err != nil {
			log.Error("Error closing turn log", "error", err)
		}
	}
	if err := redisService.Close(); err != nil {
		log.Error("Error closing redis connection", "error", err)
	}

	log.Info("Server exited")
}
