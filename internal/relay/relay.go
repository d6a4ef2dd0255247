// Package relay implements the stateless credentialed forwarding endpoint
// between the chat widget's orchestrator and the remote Genie query service.
// It attaches the service token, translates one call, and returns a uniform
// envelope. No retries, no state, no business logic.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/genie-gateway/internal/genie"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxRequestBodySize bounds relay request bodies (64KB is plenty for a question).
const maxRequestBodySize = 64 << 10

// Handler forwards relay requests to the remote query service.
type Handler struct {
	apiURL     string
	token      string
	spaceID    string
	httpClient *http.Client
}

// NewHandler creates a relay handler. The token never leaves this package.
func NewHandler(apiURL, token, spaceID string) *Handler {
	return &Handler{
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		spaceID: spaceID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RegisterRoutes mounts the relay endpoint on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/relay", h.handleLiveness)
	r.Post("/relay", h.handleForward)
}

// handleLiveness is a static acknowledgement; it is not part of the
// conversation protocol.
func (h *Handler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, genie.Envelope{
		Success: true,
		Data:    json.RawMessage(`{"status":"ok"}`),
	})
}

func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req genie.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, genie.Envelope{Success: false, Error: "invalid request body"})
		return
	}

	method, path, body, err := h.upstreamCall(req)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, genie.Envelope{Success: false, Error: err.Error()})
		return
	}

	slog.Info("Relaying request",
		"request_id", requestID,
		"action", req.Action,
		"conversation_id", req.ConversationID)

	upstreamReq, err := http.NewRequestWithContext(r.Context(), method, h.apiURL+path, body)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, genie.Envelope{Success: false, Error: "failed to build upstream request"})
		return
	}
	upstreamReq.Header.Set("Authorization", "Bearer "+h.token)
	if body != nil {
		upstreamReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(upstreamReq)
	if err != nil {
		slog.Error("Upstream call failed", "request_id", requestID, "action", req.Action, "error", err)
		writeEnvelope(w, http.StatusBadGateway, genie.Envelope{Success: false, Error: "query service unreachable"})
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		writeEnvelope(w, http.StatusBadGateway, genie.Envelope{Success: false, Error: "failed to read query service response"})
		return
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Upstream returned error",
			"request_id", requestID,
			"action", req.Action,
			"status", resp.StatusCode)
		// The status passes through unchanged so the client can classify it.
		writeEnvelope(w, resp.StatusCode, genie.Envelope{
			Success: false,
			Error:   upstreamErrorText(payload, resp.StatusCode),
		})
		return
	}

	if !json.Valid(payload) {
		writeEnvelope(w, http.StatusBadGateway, genie.Envelope{Success: false, Error: "query service returned non-JSON"})
		return
	}
	writeEnvelope(w, http.StatusOK, genie.Envelope{Success: true, Data: payload})
}

// upstreamCall maps a relay action to the remote service's REST surface.
func (h *Handler) upstreamCall(req genie.RelayRequest) (method, path string, body io.Reader, err error) {
	base := "/spaces/" + h.spaceID
	switch req.Action {
	case genie.ActionStartConversation:
		return http.MethodPost, base + "/conversations", bytes.NewReader([]byte(`{}`)), nil
	case genie.ActionSendMessage:
		if req.ConversationID == "" || req.Content == "" {
			return "", "", nil, fmt.Errorf("send-message requires conversationId and content")
		}
		payload, merr := json.Marshal(map[string]string{"content": req.Content})
		if merr != nil {
			return "", "", nil, fmt.Errorf("marshal send-message body: %w", merr)
		}
		return http.MethodPost, base + "/conversations/" + req.ConversationID + "/messages", bytes.NewReader(payload), nil
	case genie.ActionPollResult:
		if req.ConversationID == "" || req.MessageID == "" {
			return "", "", nil, fmt.Errorf("poll-result requires conversationId and messageId")
		}
		return http.MethodGet, base + "/conversations/" + req.ConversationID + "/messages/" + req.MessageID, nil, nil
	default:
		return "", "", nil, fmt.Errorf("unknown action %q", req.Action)
	}
}

// upstreamErrorText extracts a usable error message from an upstream failure
// body, falling back to the status code.
func upstreamErrorText(payload []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("query service returned status %d", status)
}

func writeEnvelope(w http.ResponseWriter, status int, env genie.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Debug("Failed to encode relay envelope", "error", err)
	}
}
