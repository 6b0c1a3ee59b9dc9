// Package storage implements the turn log on SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/adventure-agent/pkg/state"
	"github.com/jwebster45206/adventure-agent/pkg/storage"
)

// SQLiteTurnLog implements storage.TurnLog on a local SQLite file
type SQLiteTurnLog struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.TurnLog = (*SQLiteTurnLog)(nil)

// NewSQLiteTurnLog opens the database at path (":memory:" works for tests),
// verifies the connection and creates the schema.
func NewSQLiteTurnLog(ctx context.Context, path string, logger *slog.Logger) (*SQLiteTurnLog, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open turn log: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping turn log: %w", err)
	}

	l := &SQLiteTurnLog{db: db, logger: logger}
	if err := l.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("Turn log opened", "path", path)
	return l, nil
}

// InitSchema creates the tables if they don't exist.
func (l *SQLiteTurnLog) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			room TEXT NOT NULL DEFAULT '',
			previous_outcome TEXT NOT NULL DEFAULT '',
			advice TEXT NOT NULL DEFAULT '',
			raw_decision TEXT NOT NULL DEFAULT '',
			command TEXT NOT NULL,
			adjusted INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			output TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, turn)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (l *SQLiteTurnLog) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("turn log ping failed: %w", err)
	}
	return nil
}

func (l *SQLiteTurnLog) Close() error {
	return l.db.Close()
}

// SaveTurn inserts a turn. A replayed turn number (after a reset) overwrites
// the earlier row.
func (l *SQLiteTurnLog) SaveTurn(ctx context.Context, rec storage.TurnRecord) error {
	query := `
		INSERT OR REPLACE INTO turns (
			session_id, turn, room, previous_outcome, advice, raw_decision,
			command, adjusted, reason, output, input_tokens, output_tokens, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	adjusted := 0
	if rec.Adjusted {
		adjusted = 1
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := l.db.ExecContext(ctx, query,
		rec.SessionID.String(), rec.Turn, rec.Room, string(rec.Previous), rec.Advice, rec.RawDecision,
		rec.Command, adjusted, rec.Reason, rec.Output, rec.InputTokens, rec.OutputTokens,
		created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		l.logger.Error("Failed to save turn", "session_id", rec.SessionID, "turn", rec.Turn, "error", err)
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// ListTurns returns the latest limit turns of a session in turn order.
func (l *SQLiteTurnLog) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]storage.TurnRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT turn, room, previous_outcome, advice, raw_decision, command,
			adjusted, reason, output, input_tokens, output_tokens, created_at
		FROM (
			SELECT * FROM turns WHERE session_id = ? ORDER BY turn DESC LIMIT ?
		)
		ORDER BY turn
	`
	rows, err := l.db.QueryContext(ctx, query, sessionID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []storage.TurnRecord
	for rows.Next() {
		rec := storage.TurnRecord{SessionID: sessionID}
		var previous, created string
		var adjusted int
		if err := rows.Scan(&rec.Turn, &rec.Room, &previous, &rec.Advice, &rec.RawDecision, &rec.Command,
			&adjusted, &rec.Reason, &rec.Output, &rec.InputTokens, &rec.OutputTokens, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		rec.Previous = state.Outcome(previous)
		rec.Adjusted = adjusted != 0
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	return turns, nil
}

func (l *SQLiteTurnLog) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID.String()); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}
