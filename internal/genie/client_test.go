package genie

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/genie-gateway/internal/domain"
)

func relayServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func envelopeOK(t *testing.T, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	out, err := json.Marshal(Envelope{Success: true, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func TestStartConversation(t *testing.T) {
	client := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req RelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Action != ActionStartConversation {
			t.Errorf("Expected start-conversation action, got %q", req.Action)
		}
		w.Write(envelopeOK(t, StartConversationData{ConversationID: "c1", CreatedAt: 1700000000}))
	})

	conversationID, err := client.StartConversation(context.Background())
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	if conversationID != "c1" {
		t.Errorf("Expected c1, got %q", conversationID)
	}
}

func TestSendMessage(t *testing.T) {
	client := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req RelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Action != ActionSendMessage || req.ConversationID != "c1" || req.Content != "who won?" {
			t.Errorf("Unexpected request: %+v", req)
		}
		w.Write(envelopeOK(t, SendMessageData{MessageID: "m1", Status: StatusExecuting}))
	})

	messageID, status, err := client.SendMessage(context.Background(), "c1", "who won?")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if messageID != "m1" || status != StatusExecuting {
		t.Errorf("Expected m1/EXECUTING, got %q/%q", messageID, status)
	}
}

func TestPollResult(t *testing.T) {
	client := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeOK(t, MessageResult{
			Status: StatusCompleted,
			Attachment: &Attachment{
				Narrative: "done",
			},
		}))
	})

	result, err := client.PollResult(context.Background(), "c1", "m1")
	if err != nil {
		t.Fatalf("PollResult failed: %v", err)
	}
	if result.Status != StatusCompleted || result.Attachment == nil || result.Attachment.Narrative != "done" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   domain.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuth},
		{"forbidden", http.StatusForbidden, domain.ErrAuth},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, domain.ErrServerError},
		{"bad gateway", http.StatusBadGateway, domain.ErrServerError},
		{"teapot", http.StatusTeapot, domain.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(Envelope{Success: false, Error: "nope"})
			})

			_, err := client.StartConversation(context.Background())
			if err == nil {
				t.Fatal("Expected an error")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("Expected kind %s, got %s", tt.want, got)
			}
			var ce *ClassifiedError
			if !errors.As(err, &ce) || ce.Detail != "nope" {
				t.Errorf("Expected relay error detail to carry through, got %v", err)
			}
		})
	}
}

func TestNonJSONResponseIsNetworkError(t *testing.T) {
	client := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>infrastructure error page</html>"))
	})

	_, err := client.StartConversation(context.Background())
	if got := KindOf(err); got != domain.ErrNetwork {
		t.Errorf("Non-JSON body must classify as network, got %s", got)
	}
}

func TestUnreachableRelayIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url)
	_, err := client.StartConversation(context.Background())
	if got := KindOf(err); got != domain.ErrNetwork {
		t.Errorf("Unreachable relay must classify as network, got %s", got)
	}
}

func TestCancelledContextPropagates(t *testing.T) {
	client := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeOK(t, StartConversationData{ConversationID: "c1"}))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.StartConversation(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
