package orchestrator

import (
	"github.com/ashureev/genie-gateway/internal/domain"
)

// EventType identifies a presentation-facing event.
type EventType string

const (
	// EventUserTurnAppended fires after the user's question is recorded.
	EventUserTurnAppended EventType = "user-turn-appended"
	// EventTypingStarted fires when the gateway begins waiting on the remote service.
	EventTypingStarted EventType = "typing-started"
	// EventTypingStopped fires when waiting ends, before content or error events.
	EventTypingStopped EventType = "typing-stopped"
	// EventAssistantContentAppended fires once per rendered answer fragment.
	EventAssistantContentAppended EventType = "assistant-content-appended"
	// EventErrorRaised fires when a submission fails, carrying the classified
	// kind, whether a retry could help, and the original question text so the
	// view can offer a retry affordance.
	EventErrorRaised EventType = "error-raised"
)

// Event is one presentation-facing notification.
type Event struct {
	Type         EventType        `json:"type"`
	Content      string           `json:"content,omitempty"`
	ErrorKind    domain.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Retryable    bool             `json:"retryable,omitempty"`
	QuestionText string           `json:"question_text,omitempty"`
}

// EventSink receives presentation-facing events as a submission progresses.
// Emit must not block; a slow or disconnected consumer must not stall the
// polling loop.
type EventSink interface {
	Emit(event Event)
}

// discardSink drops all events. Used when no consumer is attached.
type discardSink struct{}

func (discardSink) Emit(Event) {}
