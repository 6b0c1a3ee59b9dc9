// Package session owns the play sessions served by the API: one game engine,
// memory, policy and orchestrator per session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
	"github.com/jwebster45206/adventure-agent/pkg/game"
	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/storage"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAutoplayRunning = errors.New("autoplay is already running")
)

// Publisher fans session events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, event events.Event) error
	PublishStatus(ctx context.Context, sessionID uuid.UUID, turn int, status string, autoplaying bool, lastErr string) error
	PublishTurnCompleted(ctx context.Context, sessionID uuid.UUID, turn int, command, room string, adjusted bool) error
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

var _ Publisher = (*events.Broadcaster)(nil)

// Options configures every session the manager creates.
type Options struct {
	Agent       autoplay.Options
	Game        game.Options
	DefaultGame string
}

// Info is a point-in-time view of a session.
type Info struct {
	ID           uuid.UUID       `json:"id"`
	Game         string          `json:"game"`
	Status       autoplay.Status `json:"status"`
	Turn         int             `json:"turn"`
	Autoplaying  bool            `json:"autoplaying"`
	LatestOutput string          `json:"latest_output"`
	Summary      string          `json:"summary,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	Stats        memory.Stats    `json:"stats"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Session is one play-through.
type Session struct {
	ID        uuid.UUID
	Game      string
	CreatedAt time.Time

	orch *autoplay.Orchestrator

	mu     sync.Mutex // guards autoplay below
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Session) Orchestrator() *autoplay.Orchestrator { return s.orch }

func (s *Session) autoplaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// halt stops the orchestrator and waits for a running autoplay goroutine to exit.
func (s *Session) halt() {
	s.orch.Stop()
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Manager owns every live session. Sessions share the completion provider and
// nothing else.
type Manager struct {
	llm       autoplay.Completer
	opts      Options
	publisher Publisher
	turnLog   storage.TurnLog
	logger    *slog.Logger

	newEngine func(locator string) game.Engine

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(llm autoplay.Completer, opts Options, logger *slog.Logger) *Manager {
	m := &Manager{
		llm:      llm,
		opts:     opts,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
	m.newEngine = func(locator string) game.Engine {
		return game.NewEngine(locator, opts.Game, logger)
	}
	return m
}

// WithPublisher sends session events to p.
func (m *Manager) WithPublisher(p Publisher) *Manager {
	m.publisher = p
	return m
}

// WithTurnLog persists every completed turn to l.
func (m *Manager) WithTurnLog(l storage.TurnLog) *Manager {
	m.turnLog = l
	return m
}

// Create boots a new session on locator (the default game when empty) and
// returns it with the game's opening text.
func (m *Manager) Create(ctx context.Context, locator string) (*Session, string, error) {
	if locator == "" {
		locator = m.opts.DefaultGame
	}
	id := uuid.New()
	logger := m.logger.With("session_id", id.String())

	mem := memory.New(nil, logger)
	orch := autoplay.New(m.llm, m.newEngine(locator), mem, policy.New(mem), m.opts.Agent, logger).
		WithSink(autoplay.SinkFunc(func(entry autoplay.LogEntry) { m.publishEntry(id, entry) })).
		WithRecorder(&turnRecorder{m: m, id: id})

	s := &Session{ID: id, Game: locator, CreatedAt: time.Now(), orch: orch}

	// registered first so the boot text reaches subscribers that connect early
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	boot, err := orch.Start(ctx, locator)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, "", fmt.Errorf("failed to start session: %w", err)
	}
	m.publishStatus(s)
	logger.Info("Session created", "game", locator)
	return s, boot, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Exists reports whether id names a live session.
func (m *Manager) Exists(id uuid.UUID) bool {
	_, err := m.Get(id)
	return err == nil
}

// Info describes one session.
func (m *Manager) Info(id uuid.UUID) (Info, error) {
	s, err := m.Get(id)
	if err != nil {
		return Info{}, err
	}
	return describe(s), nil
}

// List describes every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, describe(s))
	}
	return out
}

func describe(s *Session) Info {
	o := s.orch
	info := Info{
		ID:           s.ID,
		Game:         s.Game,
		Status:       o.Status(),
		Turn:         o.Turn(),
		Autoplaying:  s.autoplaying(),
		LatestOutput: o.LatestOutput(),
		Summary:      o.Memory().Summary(),
		Stats:        o.Memory().Stats(),
		CreatedAt:    s.CreatedAt,
	}
	if err := o.LastError(); err != nil {
		info.LastError = err.Error()
	}
	return info
}

// Step plays one turn. A stopped session resumes first.
func (m *Manager) Step(ctx context.Context, id uuid.UUID) (*autoplay.TurnResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if s.autoplaying() {
		return nil, ErrAutoplayRunning
	}
	if err := s.orch.Resume(); err != nil {
		return nil, err
	}
	result, err := s.orch.Step(ctx)
	m.publishStatus(s)
	return result, err
}

// Autoplay plays up to maxTurns turns (0 means until stopped) in the
// background and returns immediately.
func (m *Manager) Autoplay(id uuid.UUID, maxTurns int) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAutoplayRunning
	}
	if err := s.orch.Resume(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	logger := m.logger.With("session_id", id.String())
	go func() {
		defer close(done)
		defer cancel()

		played, err := s.orch.Run(ctx, maxTurns)
		switch {
		case err == nil, errors.Is(err, autoplay.ErrStopped), errors.Is(err, context.Canceled):
			logger.Info("Autoplay finished", "turns_played", played, "turn", s.orch.Turn())
		default:
			logger.Error("Autoplay halted", "turns_played", played, "error", err)
		}

		s.mu.Lock()
		s.cancel, s.done = nil, nil
		s.mu.Unlock()
		m.publishStatus(s)
	}()

	logger.Info("Autoplay started", "max_turns", maxTurns)
	m.publishStatus(s)
	return nil
}

// Stop halts autoplay, interrupting a turn in progress, and waits for it to wind down.
func (m *Manager) Stop(id uuid.UUID) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.halt()
	m.publishStatus(s)
	return nil
}

// Reset restarts the session's game from the beginning with empty memory
// and returns the new opening text.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) (string, error) {
	s, err := m.Get(id)
	if err != nil {
		return "", err
	}
	s.halt()

	if err := s.orch.Reset(ctx); err != nil {
		m.logger.Warn("Game reset reported an error", "session_id", id.String(), "error", err)
	}
	m.forget(ctx, id)

	boot, err := s.orch.Start(ctx, s.Game)
	if err != nil {
		return "", fmt.Errorf("failed to restart session: %w", err)
	}
	m.publishStatus(s)
	return boot, nil
}

// Delete stops the session and releases its game.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.halt()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := s.orch.Reset(ctx); err != nil {
		m.logger.Warn("Game shutdown reported an error", "session_id", id.String(), "error", err)
	}
	m.forget(ctx, id)
	m.logger.Info("Session deleted", "session_id", id.String())
	return nil
}

// History returns the latest limit persisted turns of a session.
func (m *Manager) History(ctx context.Context, id uuid.UUID, limit int) ([]storage.TurnRecord, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	if m.turnLog == nil {
		return []storage.TurnRecord{}, nil
	}
	return m.turnLog.ListTurns(ctx, id, limit)
}

// Shutdown stops every session and releases its game. Persisted turns are
// kept.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.halt()
		if err := s.orch.Reset(ctx); err != nil {
			m.logger.Warn("Game shutdown reported an error", "session_id", s.ID.String(), "error", err)
		}
	}
	m.logger.Info("Sessions closed", "count", len(all))
}

// forget drops the replay log and stored turns of a session.
func (m *Manager) forget(ctx context.Context, id uuid.UUID) {
	if m.publisher != nil {
		if err := m.publisher.Clear(ctx, id); err != nil {
			m.logger.Warn("Failed to clear event history", "session_id", id.String(), "error", err)
		}
	}
	if m.turnLog != nil {
		if err := m.turnLog.DeleteSession(ctx, id); err != nil {
			m.logger.Warn("Failed to delete turn history", "session_id", id.String(), "error", err)
		}
	}
}

func (m *Manager) publishEntry(id uuid.UUID, entry autoplay.LogEntry) {
	if m.publisher == nil {
		return
	}
	event := events.Event{
		Type:      events.EventType(entry.Kind),
		Turn:      entry.Turn,
		Timestamp: entry.Timestamp,
		Data:      map[string]any{"text": entry.Text},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.publisher.Publish(ctx, id, event); err != nil {
		m.logger.Warn("Failed to publish session event", "session_id", id.String(), "error", err)
	}
}

func (m *Manager) publishStatus(s *Session) {
	if m.publisher == nil {
		return
	}
	var lastErr string
	if err := s.orch.LastError(); err != nil {
		lastErr = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.publisher.PublishStatus(ctx, s.ID, s.orch.Turn(), string(s.orch.Status()), s.autoplaying(), lastErr); err != nil {
		m.logger.Warn("Failed to publish status", "session_id", s.ID.String(), "error", err)
	}
}

// turnRecorder announces and persists each completed turn of one session.
type turnRecorder struct {
	m  *Manager
	id uuid.UUID
}

func (r *turnRecorder) RecordTurn(ctx context.Context, result autoplay.TurnResult) error {
	if p := r.m.publisher; p != nil {
		if err := p.PublishTurnCompleted(ctx, r.id, result.Turn, result.Command, result.Room, !result.Validation.Valid); err != nil {
			r.m.logger.Warn("Failed to publish turn", "session_id", r.id.String(), "error", err)
		}
	}
	if r.m.turnLog == nil {
		return nil
	}
	return storage.SessionRecorder{Log: r.m.turnLog, SessionID: r.id}.RecordTurn(ctx, result)
}
