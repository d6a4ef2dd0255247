package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/genie-gateway/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed session store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		client_id TEXT PRIMARY KEY,
		conversation_id TEXT,
		history_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load retrieves the session for a client. Unparsable history degrades to an
// absent session rather than an error.
func (s *SQLiteStore) Load(ctx context.Context, clientID string) (*domain.Session, error) {
	query := `
		SELECT client_id, conversation_id, history_json, created_at, updated_at
		FROM sessions WHERE client_id = ?`

	row := s.db.QueryRowContext(ctx, query, clientID)

	var session domain.Session
	var conversationID sql.NullString
	var historyJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&session.ClientID, &conversationID, &historyJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.ConversationID = conversationID.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(historyJSON), &session.History); err != nil {
		slog.Warn("Discarding unparsable session history", "client_id", clientID, "error", err)
		return nil, nil
	}

	return &session, nil
}

// Save writes the full session document, retrying briefly on SQLite
// concurrency conflicts.
func (s *SQLiteStore) Save(ctx context.Context, session *domain.Session) error {
	historyJSON, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("marshal session history: %w", err)
	}

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err = s.saveOnce(ctx, session, string(historyJSON))
		if err == nil {
			return nil
		}
		if isSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Save hit SQLite conflict, retrying",
				"client_id", session.ClientID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		return fmt.Errorf("save session for %s: %w", session.ClientID, err)
	}
	return fmt.Errorf("save session for %s after %d attempts: %w", session.ClientID, maxRetries, err)
}

func (s *SQLiteStore) saveOnce(ctx context.Context, session *domain.Session, historyJSON string) error {
	query := `
	INSERT INTO sessions (client_id, conversation_id, history_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(client_id) DO UPDATE SET
		conversation_id = excluded.conversation_id,
		history_json = excluded.history_json,
		updated_at = excluded.updated_at`

	var conversationID interface{}
	if session.ConversationID != "" {
		conversationID = session.ConversationID
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ClientID, conversationID, historyJSON,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// CleanupExpired removes sessions older than ttl.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
