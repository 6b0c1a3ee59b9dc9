package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockTurnLog is an in-memory TurnLog for testing
type MockTurnLog struct {
	mu        sync.RWMutex
	turns     map[uuid.UUID][]TurnRecord
	pingError error
	saveError error
}

var _ TurnLog = (*MockTurnLog)(nil)

func NewMockTurnLog() *MockTurnLog {
	return &MockTurnLog{turns: make(map[uuid.UUID][]TurnRecord)}
}

// SetPingError configures the mock to fail on ping
func (m *MockTurnLog) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on SaveTurn
func (m *MockTurnLog) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockTurnLog) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockTurnLog) Close() error {
	return nil
}

func (m *MockTurnLog) SaveTurn(ctx context.Context, rec TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.turns[rec.SessionID] = append(m.turns[rec.SessionID], rec)
	return nil
}

func (m *MockTurnLog) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]TurnRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]TurnRecord(nil), turns...), nil
}

func (m *MockTurnLog) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}
