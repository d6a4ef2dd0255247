package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/genie-gateway/internal/domain"
)

// MemoryStore is an in-memory SessionStore for tests and ephemeral
// deployments. Sessions do not survive a process restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemory creates an empty in-memory session store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// Load retrieves a copy of the session for a client.
func (m *MemoryStore) Load(_ context.Context, clientID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[clientID]
	if session == nil {
		return nil, nil
	}
	return copySession(session), nil
}

// Save stores a copy of the full session document.
func (m *MemoryStore) Save(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ClientID] = copySession(session)
	return nil
}

// CleanupExpired removes sessions not updated within ttl.
func (m *MemoryStore) CleanupExpired(_ context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, session := range m.sessions {
		if session.UpdatedAt.Before(threshold) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close releases nothing for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

func copySession(s *domain.Session) *domain.Session {
	out := *s
	out.History = make([]domain.Turn, len(s.History))
	copy(out.History, s.History)
	return &out
}
