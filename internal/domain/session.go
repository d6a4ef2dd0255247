// Package domain contains core domain types for the Genie chat gateway.
package domain

import (
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser marks a turn containing the user's question.
	RoleUser Role = "user"
	// RoleAssistant marks a turn containing rendered answer content.
	RoleAssistant Role = "assistant"
)

// Turn is one unit of displayed conversation content. Content is an opaque
// renderable fragment; the gateway never re-parses it after creation. Turns
// are immutable once created; edits are modeled as new turns.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the persisted conversation state for one browser client.
// ConversationID is empty until the first question is submitted and is
// immutable once set for the lifetime of the session.
type Session struct {
	ClientID       string    `json:"client_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	History        []Turn    `json:"history"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSession creates an empty session for a client.
func NewSession(clientID string, now time.Time) *Session {
	return &Session{
		ClientID:  clientID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn adds a turn to the history, discarding the oldest entries so
// that at most limit turns are retained. A limit <= 0 keeps everything.
func (s *Session) AppendTurn(turn Turn, limit int) {
	s.History = append(s.History, turn)
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// PendingQuery is the in-flight unit of work for one submit-poll-resolve
// cycle. It is never persisted; at most one is active per client.
type PendingQuery struct {
	QuestionText string
	MessageID    string
	Attempt      int
	StartedAt    time.Time
}
