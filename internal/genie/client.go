package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/genie-gateway/internal/domain"
)

// maxResponseBodySize bounds how much of a relay response is read (4MB).
const maxResponseBodySize = 4 << 20

// ClassifiedError is a relay call failure tagged with its error kind so the
// orchestrator never has to re-parse error strings.
type ClassifiedError struct {
	Kind   domain.ErrorKind
	Detail string
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("relay call failed (%s): %s", e.Kind, e.Detail)
}

// KindOf extracts the error kind from a client error, falling back to unknown.
func KindOf(err error) domain.ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return domain.ErrUnknown
}

// Client calls the relay endpoint. It holds no credentials; attaching the
// remote service token is solely the relay's job.
type Client struct {
	relayURL   string
	httpClient *http.Client
}

// NewClient creates a relay client for the given endpoint URL.
func NewClient(relayURL string) *Client {
	return &Client{
		relayURL: relayURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartConversation opens a new conversation and returns its identifier.
func (c *Client) StartConversation(ctx context.Context) (string, error) {
	data, err := c.do(ctx, RelayRequest{Action: ActionStartConversation})
	if err != nil {
		return "", err
	}

	var payload StartConversationData
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &ClassifiedError{Kind: domain.ErrNetwork, Detail: fmt.Sprintf("decode start-conversation payload: %v", err)}
	}
	if payload.ConversationID == "" {
		return "", &ClassifiedError{Kind: domain.ErrServerError, Detail: "start-conversation returned no conversation id"}
	}
	return payload.ConversationID, nil
}

// SendMessage submits a question into a conversation and returns the message
// identifier plus its initial status.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (string, string, error) {
	data, err := c.do(ctx, RelayRequest{
		Action:         ActionSendMessage,
		ConversationID: conversationID,
		Content:        content,
	})
	if err != nil {
		return "", "", err
	}

	var payload SendMessageData
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", "", &ClassifiedError{Kind: domain.ErrNetwork, Detail: fmt.Sprintf("decode send-message payload: %v", err)}
	}
	if payload.MessageID == "" {
		return "", "", &ClassifiedError{Kind: domain.ErrServerError, Detail: "send-message returned no message id"}
	}
	return payload.MessageID, payload.Status, nil
}

// PollResult fetches the current status of a message. The attachment is
// present only once the message is terminal.
func (c *Client) PollResult(ctx context.Context, conversationID, messageID string) (*MessageResult, error) {
	data, err := c.do(ctx, RelayRequest{
		Action:         ActionPollResult,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	if err != nil {
		return nil, err
	}

	var payload MessageResult
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ClassifiedError{Kind: domain.ErrNetwork, Detail: fmt.Sprintf("decode poll-result payload: %v", err)}
	}
	return &payload, nil
}

// do performs one relay POST and unwraps the uniform envelope. Failures are
// returned as *ClassifiedError keyed by the taxonomy in the domain package.
func (c *Client) do(ctx context.Context, req RelayRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal relay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Preserve cancellation so the caller can tell "consumer gone"
		// apart from "relay unreachable".
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ClassifiedError{Kind: domain.ErrNetwork, Detail: fmt.Sprintf("relay unreachable: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &ClassifiedError{Kind: domain.ErrNetwork, Detail: fmt.Sprintf("read relay response: %v", err)}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Non-JSON bodies are typically infrastructure error pages.
		return nil, &ClassifiedError{Kind: domain.ErrNetwork, Detail: fmt.Sprintf("relay returned non-JSON (status %d)", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		detail := env.Error
		if detail == "" {
			detail = fmt.Sprintf("relay returned status %d", resp.StatusCode)
		}
		return nil, &ClassifiedError{Kind: kindForStatus(resp.StatusCode), Detail: detail}
	}

	return env.Data, nil
}

// kindForStatus maps a relay HTTP status to an error kind.
func kindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuth
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status >= 500:
		return domain.ErrServerError
	default:
		return domain.ErrUnknown
	}
}
