package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/jwebster45206/adventure-agent/internal/config"
)

// Setup configures the global slog logger based on environment. When
// cfg.LogFile is set, records are also appended there as JSON. The returned
// closer releases the file.
func Setup(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter is Setup with the console output redirected. A nil console
// logs only to the file, which is what terminal UIs need.
func SetupWithWriter(cfg *config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handlers []slog.Handler
	if console != nil {
		if cfg.Environment == "production" {
			// JSON format for production
			handlers = append(handlers, slog.NewJSONHandler(console, opts))
		} else {
			// Text format for development
			handlers = append(handlers, slog.NewTextHandler(console, opts))
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closer = f
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(io.Discard, opts))
	}

	logger := slog.New(slogmulti.Fanout(handlers...))

	// Set as default logger
	slog.SetDefault(logger)

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// WithRequestID adds request ID to logger context
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithSessionID adds the play session to logger context
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}
