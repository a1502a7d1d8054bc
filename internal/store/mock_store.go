// ABOUTME: In-memory mock implementation of the Store interface for tests
// ABOUTME: Thread-safe map-backed store with optional injected errors

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for tests
type MockStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	// Err, when set, is returned by every method
	Err error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

// GetSession retrieves a session by wa_id
func (m *MockStore) GetSession(_ context.Context, waID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	session, ok := m.sessions[waID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// CreateSession stores a new session
func (m *MockStore) CreateSession(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	if _, exists := m.sessions[session.WaID]; exists {
		return ErrDuplicateSession
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	copied := *session
	m.sessions[session.WaID] = &copied
	return nil
}

// ListSessions returns stored sessions, newest first
func (m *MockStore) ListSessions(_ context.Context, limit int) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		copied := *s
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// SessionCount returns the number of stored sessions
func (m *MockStore) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close is a no-op for the mock
func (m *MockStore) Close() error {
	return nil
}
