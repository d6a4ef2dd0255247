package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/genie-gateway/internal/orchestrator"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// defaultEmitWriteTimeout bounds one event write so a page that stopped
// reading its socket cannot stall the submission that is emitting.
const defaultEmitWriteTimeout = 5 * time.Second

// Hub tracks one live websocket per client and bridges orchestrator events
// onto it. A client with no open socket simply gets no live events; the ask
// response still carries the final outcome.
type Hub struct {
	mu           sync.Mutex
	conns        map[string]*websocket.Conn
	writeTimeout time.Duration
}

// NewHub creates an empty websocket hub.
func NewHub() *Hub {
	return &Hub{
		conns:        make(map[string]*websocket.Conn),
		writeTimeout: defaultEmitWriteTimeout,
	}
}

// SinkFor returns an EventSink that forwards events to the client's socket.
func (h *Hub) SinkFor(clientID string) orchestrator.EventSink {
	return &hubSink{hub: h, clientID: clientID}
}

type hubSink struct {
	hub      *Hub
	clientID string
}

// Emit writes one event to the client's socket, if any. Emit is called
// synchronously from the polling loop, so each write is bounded by the hub's
// write timeout; a socket that times out or fails is dropped on the spot so
// later emits return immediately.
func (s *hubSink) Emit(event orchestrator.Event) {
	s.hub.mu.Lock()
	conn := s.hub.conns[s.clientID]
	s.hub.mu.Unlock()
	if conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Debug("Failed to marshal event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.hub.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		slog.Debug("WebSocket event write failed, dropping socket", "client_id", s.clientID, "error", err)
		s.hub.unregister(s.clientID, conn)
		_ = conn.Close(websocket.StatusPolicyViolation, "consumer not reading")
	}
}

func (h *Hub) register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old := h.conns[clientID]; old != nil {
		// Newest socket wins; the page reloaded or opened a second tab.
		_ = old.Close(websocket.StatusNormalClosure, "replaced")
	}
	h.conns[clientID] = conn
}

func (h *Hub) unregister(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[clientID] == conn {
		delete(h.conns, clientID)
	}
}

// connFor reports the registered socket for a client, if any.
func (h *Hub) connFor(clientID string) *websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[clientID]
}

// WSHandler upgrades /ws/chat requests and keeps the socket registered until
// the page closes it.
type WSHandler struct {
	hub *Hub
}

// NewWSHandler creates a websocket handler backed by the hub.
func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID, issued := clientIDFrom(r)
	if issued {
		// Browsers cannot set headers on websocket dials, so the identity
		// arrives as a query parameter. Same rule as the header: UUIDs only,
		// anything else could never match an API-issued identity.
		clientID = r.URL.Query().Get("client_id")
		if _, err := uuid.Parse(clientID); err != nil {
			http.Error(w, "valid client id required", http.StatusBadRequest)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client_id", clientID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "client_id", clientID)
		}
	}()

	h.hub.register(clientID, conn)
	defer h.hub.unregister(clientID, conn)
	slog.Info("WebSocket connected", "client_id", clientID)

	// The page never sends meaningful frames; read until the socket closes
	// so pings are answered and disconnects are noticed.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			slog.Debug("WebSocket closed", "client_id", clientID, "error", err)
			return
		}
	}
}
