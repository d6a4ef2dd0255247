// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/genie-gateway/internal/domain"
)

// SessionStore persists one conversation session per browser client as a
// single document. Writes always replace the whole document so a crash
// between steps loses at most the latest mutation, never corrupts history.
type SessionStore interface {
	// Load retrieves the session for a client. A missing or unparsable
	// stored session returns (nil, nil); corrupt state degrades to empty,
	// never to a startup error.
	Load(ctx context.Context, clientID string) (*domain.Session, error)

	// Save writes the full session document atomically.
	Save(ctx context.Context, session *domain.Session) error

	// CleanupExpired removes sessions not updated within ttl and returns
	// how many were deleted.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
