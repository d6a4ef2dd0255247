// Package api provides HTTP handlers for the chat widget surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// ClientIDHeader carries the browser client's identity. The page stores the
// issued value and sends it back on every request.
const ClientIDHeader = "X-Client-ID"

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// clientIDFrom returns the caller's client identity, minting a fresh one when
// the header is absent or not a UUID. The second return reports whether a new
// identity was issued.
func clientIDFrom(r *http.Request) (string, bool) {
	id := r.Header.Get(ClientIDHeader)
	if id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id, false
		}
	}
	return uuid.NewString(), true
}
