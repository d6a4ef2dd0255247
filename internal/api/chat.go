package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/genie-gateway/internal/domain"
	"github.com/ashureev/genie-gateway/internal/orchestrator"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize is the maximum allowed request body size (64KB).
const maxRequestBodySize = 64 << 10

// QuestionSubmitter is the orchestrator surface the chat handler needs.
type QuestionSubmitter interface {
	SubmitQuestion(ctx context.Context, clientID, text string, sink orchestrator.EventSink) (*domain.QueryOutcome, error)
	History(ctx context.Context, clientID string) ([]domain.Turn, error)
}

// ChatHandler serves the widget's question and history endpoints.
type ChatHandler struct {
	orc QuestionSubmitter
	hub *Hub
}

// NewChatHandler creates a chat handler. hub may be nil when no live event
// stream is mounted.
func NewChatHandler(orc QuestionSubmitter, hub *Hub) *ChatHandler {
	return &ChatHandler{orc: orc, hub: hub}
}

// RegisterRoutes mounts the chat endpoints on the router.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/ask", h.handleAsk)
		r.Get("/history", h.handleHistory)
	})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	ClientID string               `json:"client_id"`
	Outcome  *domain.QueryOutcome `json:"outcome"`
	History  []domain.Turn        `json:"history"`
}

func (h *ChatHandler) handleAsk(w http.ResponseWriter, r *http.Request) {
	clientID, issued := clientIDFrom(r)
	if issued {
		w.Header().Set(ClientIDHeader, clientID)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var sink orchestrator.EventSink
	if h.hub != nil {
		sink = h.hub.SinkFor(clientID)
	}

	outcome, err := h.orc.SubmitQuestion(r.Context(), clientID, req.Question, sink)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			Error(w, http.StatusConflict, "a question is already being answered")
			return
		}
		if r.Context().Err() != nil {
			// Client went away mid-answer; nothing left to write.
			return
		}
		slog.Error("Submit failed", "client_id", clientID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if outcome.ErrorKind == domain.ErrInvalidInput {
		status = http.StatusBadRequest
	}

	history, err := h.orc.History(r.Context(), clientID)
	if err != nil {
		slog.Warn("History lookup failed after submit", "client_id", clientID, "error", err)
	}

	JSON(w, status, askResponse{
		ClientID: clientID,
		Outcome:  outcome,
		History:  history,
	})
}

type historyResponse struct {
	ClientID string        `json:"client_id"`
	History  []domain.Turn `json:"history"`
}

func (h *ChatHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	clientID, issued := clientIDFrom(r)
	if issued {
		w.Header().Set(ClientIDHeader, clientID)
	}

	history, err := h.orc.History(r.Context(), clientID)
	if err != nil {
		slog.Error("History lookup failed", "client_id", clientID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, historyResponse{ClientID: clientID, History: history})
}
