// Package genie implements the client side of the relay contract for the
// remote conversational query service.
package genie

import (
	"encoding/json"
)

// Action selects which relay operation a request performs.
type Action string

const (
	// ActionStartConversation opens a new conversation thread.
	ActionStartConversation Action = "start-conversation"
	// ActionSendMessage submits a question into an existing conversation.
	ActionSendMessage Action = "send-message"
	// ActionPollResult fetches the current status of a submitted message.
	ActionPollResult Action = "poll-result"
)

// Remote message statuses. The vocabulary may grow; anything not listed here
// is treated as "still working" by callers.
const (
	StatusExecuting          = "EXECUTING"
	StatusFilteringContext   = "FILTERING_CONTEXT"
	StatusQueryResultExpired = "QUERY_RESULT_EXPIRED"
	StatusCompleted          = "COMPLETED"
	StatusFailed             = "FAILED"
)

// TerminalStatus reports whether a remote status ends the polling loop.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// RelayRequest is the single POST body shape the relay accepts.
type RelayRequest struct {
	Action         Action `json:"action"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
	Content        string `json:"content,omitempty"`
}

// Envelope is the uniform relay response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StartConversationData is the payload for a start-conversation response.
type StartConversationData struct {
	ConversationID string `json:"conversation_id"`
	CreatedAt      int64  `json:"created_at"`
}

// SendMessageData is the payload for a send-message response.
type SendMessageData struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// MessageResult is the payload for a poll-result response. Attachment is
// present only once the message reached a terminal status, and any of its
// parts may be absent.
type MessageResult struct {
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Attachment carries the answer content of a completed message. All fields
// are optional; unknown or missing sub-fields degrade to "no data".
type Attachment struct {
	Table          *TableBlock `json:"table,omitempty"`
	Narrative      string      `json:"narrative,omitempty"`
	GeneratedQuery string      `json:"generated_query,omitempty"`
}

// TableBlock is the tabular portion of an attachment. Row cells are decoded
// as interface{} since the remote service mixes strings, numbers, and nulls.
type TableBlock struct {
	Columns   []ColumnSchema  `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
}

// ColumnSchema describes one column of a table block.
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
