package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/genie-gateway/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Unix(time.Now().Unix(), 0)
	session := domain.NewSession("client-1", now)
	session.ConversationID = "c1"
	session.AppendTurn(domain.Turn{Role: domain.RoleUser, Content: "who won?", Timestamp: now}, 20)
	session.AppendTurn(domain.Turn{Role: domain.RoleAssistant, Content: "<p>the Celtics</p>", Timestamp: now}, 20)

	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "client-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected a session, got nil")
	}
	if loaded.ConversationID != "c1" {
		t.Errorf("ConversationID: expected c1, got %q", loaded.ConversationID)
	}
	if len(loaded.History) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(loaded.History))
	}
	for i, turn := range session.History {
		if loaded.History[i].Role != turn.Role || loaded.History[i].Content != turn.Content {
			t.Errorf("Turn %d mismatch: %+v vs %+v", i, loaded.History[i], turn)
		}
	}
}

func TestSQLiteLoadMissing(t *testing.T) {
	s := newTestStore(t)

	session, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if session != nil {
		t.Errorf("Expected nil for a missing session, got %+v", session)
	}
}

func TestSQLiteCorruptHistoryDegradesToEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (client_id, conversation_id, history_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		"client-1", "c1", "{not json", time.Now().Unix(), time.Now().Unix())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	session, err := s.Load(ctx, "client-1")
	if err != nil {
		t.Fatalf("Corrupt state must not be a load error, got: %v", err)
	}
	if session != nil {
		t.Errorf("Corrupt state must degrade to an absent session, got %+v", session)
	}
}

func TestSQLiteSaveOverwritesFullDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(time.Now().Unix(), 0)

	session := domain.NewSession("client-1", now)
	session.AppendTurn(domain.Turn{Role: domain.RoleUser, Content: "first", Timestamp: now}, 20)
	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	session.ConversationID = "c1"
	session.AppendTurn(domain.Turn{Role: domain.RoleAssistant, Content: "second", Timestamp: now}, 20)
	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "client-1")
	if err != nil || loaded == nil {
		t.Fatalf("Load failed: %v, %v", loaded, err)
	}
	if loaded.ConversationID != "c1" || len(loaded.History) != 2 {
		t.Errorf("Expected full-document update, got conv=%q turns=%d", loaded.ConversationID, len(loaded.History))
	}
}

func TestSQLiteCleanupExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := domain.NewSession("stale", time.Now().Add(-48*time.Hour))
	stale.UpdatedAt = time.Now().Add(-48 * time.Hour)
	fresh := domain.NewSession("fresh", time.Now())
	fresh.UpdatedAt = time.Now()

	for _, session := range []*domain.Session{stale, fresh} {
		if err := s.Save(ctx, session); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	deleted, err := s.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted session, got %d", deleted)
	}

	if session, _ := s.Load(ctx, "stale"); session != nil {
		t.Error("Stale session should be gone")
	}
	if session, _ := s.Load(ctx, "fresh"); session == nil {
		t.Error("Fresh session should survive")
	}
}
