// Package orchestrator owns the conversation lifecycle: it turns one user
// question into a durable conversation handle, a submitted message, a bounded
// polling loop, and a normalized display-ready outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ashureev/genie-gateway/internal/domain"
	"github.com/ashureev/genie-gateway/internal/genie"
	"github.com/ashureev/genie-gateway/internal/store"
)

// Question length bounds, in characters, after trimming.
const (
	minQuestionLen = 5
	maxQuestionLen = 1000
)

// ErrBusy is returned when a submission arrives while another question is
// still in flight for the same client. The second submission is rejected,
// never queued.
var ErrBusy = errors.New("a question is already being answered")

// GenieClient is the relay surface the orchestrator needs. It carries no
// credential parameter by design; the relay owns the secret.
type GenieClient interface {
	StartConversation(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, conversationID, content string) (messageID, initialStatus string, err error)
	PollResult(ctx context.Context, conversationID, messageID string) (*genie.MessageResult, error)
}

// Options tune the orchestrator's budgets.
type Options struct {
	// HistoryLimit bounds how many turns a session retains.
	HistoryLimit int
	// MaxPollAttempts caps the polling loop.
	MaxPollAttempts int
	// SubmitBudget is the wall-clock budget from the first send.
	SubmitBudget time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit == 0 {
		o.HistoryLimit = 20
	}
	if o.MaxPollAttempts == 0 {
		o.MaxPollAttempts = 30
	}
	if o.SubmitBudget == 0 {
		o.SubmitBudget = 60 * time.Second
	}
	return o
}

// Orchestrator coordinates sessions, the relay client, and the polling state
// machine. One instance serves all clients; each client has at most one
// in-flight question.
type Orchestrator struct {
	sessions store.SessionStore
	client   GenieClient
	opts     Options

	// Injectable for tests so backoff can be asserted without waiting.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	pending map[string]*domain.PendingQuery
}

// New creates an orchestrator backed by the given session store and relay client.
func New(sessions store.SessionStore, client GenieClient, opts Options) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		client:   client,
		opts:     opts.withDefaults(),
		now:      time.Now,
		sleep:    sleepContext,
		pending:  make(map[string]*domain.PendingQuery),
	}
}

// SubmitQuestion runs one full submit-poll-resolve cycle for a client.
//
// It validates the question locally, appends and persists the user turn
// before any network call, lazily starts the conversation, sends the message,
// polls until a terminal status or the budget runs out, and appends the
// normalized assistant content. Events are emitted to sink as the cycle
// progresses. The returned outcome always has a defined status; the error
// return is reserved for ErrBusy, storage failures, and caller cancellation.
func (o *Orchestrator) SubmitQuestion(ctx context.Context, clientID, text string, sink EventSink) (*domain.QueryOutcome, error) {
	if sink == nil {
		sink = discardSink{}
	}

	question := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(question); n < minQuestionLen || n > maxQuestionLen {
		outcome := &domain.QueryOutcome{
			Status:      domain.OutcomeFailed,
			ErrorKind:   domain.ErrInvalidInput,
			ErrorDetail: fmt.Sprintf("question length %d outside [%d,%d]", n, minQuestionLen, maxQuestionLen),
		}
		o.emitError(sink, domain.ErrInvalidInput, question)
		return outcome, nil
	}

	if !o.beginPending(clientID, question) {
		return nil, ErrBusy
	}
	defer o.clearPending(clientID)

	session, err := o.sessions.Load(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		session = domain.NewSession(clientID, o.now())
	}

	// The user turn is recorded and persisted before any network call so a
	// failure never loses the question from history.
	session.AppendTurn(domain.Turn{
		Role:      domain.RoleUser,
		Content:   html.EscapeString(question),
		Timestamp: o.now(),
	}, o.opts.HistoryLimit)
	if err := o.persist(ctx, session); err != nil {
		return nil, err
	}
	sink.Emit(Event{Type: EventUserTurnAppended, Content: html.EscapeString(question)})
	sink.Emit(Event{Type: EventTypingStarted})

	outcome, fragments, err := o.resolve(ctx, session, question)
	sink.Emit(Event{Type: EventTypingStopped})
	if err != nil {
		// Caller gone or storage broken; no outcome to render.
		return nil, err
	}

	if !outcome.Completed() {
		slog.Warn("Question failed",
			"client_id", clientID,
			"status", outcome.Status,
			"error_kind", outcome.ErrorKind,
			"detail", outcome.ErrorDetail)
		o.emitError(sink, outcome.ErrorKind, question)
		return outcome, nil
	}

	for _, fragment := range fragments {
		session.AppendTurn(domain.Turn{
			Role:      domain.RoleAssistant,
			Content:   fragment,
			Timestamp: o.now(),
		}, o.opts.HistoryLimit)
		sink.Emit(Event{Type: EventAssistantContentAppended, Content: fragment})
	}
	if err := o.persist(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Question answered",
		"client_id", clientID,
		"status", outcome.Status,
		"rows", len(outcome.Rows))
	return outcome, nil
}

// History returns the persisted conversation history for a client.
func (o *Orchestrator) History(ctx context.Context, clientID string) ([]domain.Turn, error) {
	session, err := o.sessions.Load(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	return session.History, nil
}

// resolve performs the network half of a submission: lazy conversation start,
// message send, and the polling state machine.
func (o *Orchestrator) resolve(ctx context.Context, session *domain.Session, question string) (*domain.QueryOutcome, []string, error) {
	// Lazy conversation start. The identifier is persisted immediately so a
	// later failure still reuses this conversation on retry.
	if session.ConversationID == "" {
		conversationID, err := o.client.StartConversation(ctx)
		if err != nil {
			return o.failureFor(ctx, err)
		}
		session.ConversationID = conversationID
		if err := o.persist(ctx, session); err != nil {
			return nil, nil, err
		}
		slog.Info("Conversation started", "client_id", session.ClientID, "conversation_id", conversationID)
	}

	// Everything from the first send onward shares one wall-clock budget.
	budgetCtx, cancel := context.WithTimeout(ctx, o.opts.SubmitBudget)
	defer cancel()

	messageID, initialStatus, err := o.client.SendMessage(budgetCtx, session.ConversationID, question)
	if err != nil {
		return o.failureFor(ctx, err)
	}
	o.setMessageID(session.ClientID, messageID)
	slog.Debug("Message sent",
		"client_id", session.ClientID,
		"message_id", messageID,
		"status", initialStatus)

	result, err := o.poll(budgetCtx, session, messageID)
	if err != nil {
		return o.failureFor(ctx, err)
	}
	if result == nil {
		return &domain.QueryOutcome{
			Status:      domain.OutcomeTimedOut,
			ErrorKind:   domain.ErrTimeout,
			ErrorDetail: fmt.Sprintf("no terminal status after %d polls", o.opts.MaxPollAttempts),
		}, nil, nil
	}
	if result.Status == genie.StatusFailed {
		return &domain.QueryOutcome{
			Status:      domain.OutcomeFailed,
			ErrorKind:   domain.ErrQueryFailed,
			ErrorDetail: result.Error,
		}, nil, nil
	}

	outcome, fragments := normalizeResult(result)
	return outcome, fragments, nil
}

// poll is the bounded polling state machine. It returns the terminal result,
// or nil when the attempt budget ran out first. EXECUTING, FILTERING_CONTEXT,
// QUERY_RESULT_EXPIRED, and any status outside the known vocabulary all mean
// "still working": the remote service's status set may grow, so unknown
// values are retryable rather than fatal.
func (o *Orchestrator) poll(ctx context.Context, session *domain.Session, messageID string) (*genie.MessageResult, error) {
	for attempt := 0; attempt < o.opts.MaxPollAttempts; attempt++ {
		o.setAttempt(session.ClientID, attempt)
		if err := o.sleep(ctx, pollDelay(attempt)); err != nil {
			return nil, err
		}

		result, err := o.client.PollResult(ctx, session.ConversationID, messageID)
		if err != nil {
			return nil, err
		}
		if genie.TerminalStatus(result.Status) {
			return result, nil
		}
		slog.Debug("Still working",
			"client_id", session.ClientID,
			"message_id", messageID,
			"attempt", attempt,
			"status", result.Status)
	}
	return nil, nil
}

// failureFor turns a relay error into a failed outcome, except when the
// caller itself is gone (no consumer, no outcome) or the send budget elapsed
// (timed-out outcome).
func (o *Orchestrator) failureFor(parent context.Context, err error) (*domain.QueryOutcome, []string, error) {
	if parent.Err() != nil {
		// Page navigated away; stop scheduling work, nothing to render.
		return nil, nil, parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.QueryOutcome{
			Status:      domain.OutcomeTimedOut,
			ErrorKind:   domain.ErrTimeout,
			ErrorDetail: "wall-clock budget exhausted",
		}, nil, nil
	}
	return &domain.QueryOutcome{
		Status:      domain.OutcomeFailed,
		ErrorKind:   genie.KindOf(err),
		ErrorDetail: err.Error(),
	}, nil, nil
}

func (o *Orchestrator) persist(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = o.now()
	if err := o.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (o *Orchestrator) emitError(sink EventSink, kind domain.ErrorKind, question string) {
	sink.Emit(Event{
		Type:         EventErrorRaised,
		ErrorKind:    kind,
		ErrorMessage: kind.Message(),
		Retryable:    kind.Retryable(),
		QuestionText: question,
	})
}

// beginPending atomically claims the single in-flight slot for a client.
func (o *Orchestrator) beginPending(clientID, question string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.pending[clientID]; busy {
		return false
	}
	o.pending[clientID] = &domain.PendingQuery{
		QuestionText: question,
		StartedAt:    o.now(),
	}
	return true
}

func (o *Orchestrator) clearPending(clientID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, clientID)
}

func (o *Orchestrator) setMessageID(clientID, messageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p := o.pending[clientID]; p != nil {
		p.MessageID = messageID
	}
}

func (o *Orchestrator) setAttempt(clientID string, attempt int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p := o.pending[clientID]; p != nil {
		p.Attempt = attempt
	}
}

// PendingFor reports the in-flight query for a client, if any.
func (o *Orchestrator) PendingFor(clientID string) *domain.PendingQuery {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p := o.pending[clientID]; p != nil {
		copy := *p
		return &copy
	}
	return nil
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
