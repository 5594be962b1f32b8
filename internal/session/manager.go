package session

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/scope"
)

// Manager loads, expires, and transitions sessions. All mutation of a chat's
// state must happen between Lock and Unlock for that chat, which serializes
// concurrent updates from the same conversation.
type Manager struct {
	store   database.Store
	timeout time.Duration
	logger  *slog.Logger

	locks sync.Map // chat_id -> *sync.Mutex
}

// NewManager creates a session Manager. timeout is how long a flow may sit
// untouched before lazy expiry resets it to idle; zero disables expiry.
func NewManager(store database.Store, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		store:   store,
		timeout: timeout,
		logger:  logger.With("component", "session"),
	}
}

// Lock acquires the per-chat mutex. Group members share one lock so their
// flow updates apply one at a time.
func (m *Manager) Lock(chatID int64) {
	mu, _ := m.locks.LoadOrStore(chatID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
}

// Unlock releases the per-chat mutex.
func (m *Manager) Unlock(chatID int64) {
	mu, ok := m.locks.Load(chatID)
	if !ok {
		return
	}
	mu.(*sync.Mutex).Unlock()
}

// Get returns the session for a scope, creating an idle one if none exists.
// A session whose flow has sat past the timeout is reset to idle before being
// returned; the reset is persisted so the expiry is observed exactly once.
func (m *Manager) Get(ctx context.Context, sc scope.ChatScope) (*database.Session, error) {
	session, err := m.store.GetSession(ctx, sc.UserID, sc.ChatID)
	if err != nil {
		return nil, err
	}

	if session == nil {
		session = &database.Session{
			UserID:   sc.UserID,
			ChatID:   sql.NullInt64{Int64: sc.ChatID, Valid: true},
			ChatType: sql.NullString{String: string(sc.Kind), Valid: true},
			State:    string(StateIdle),
			Context:  "{}",
		}
		if err := m.store.SaveSession(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create session for %s: %w", sc, err)
		}
		return session, nil
	}

	if !State(session.State).Valid() {
		session.State = string(StateIdle)
		session.Context = "{}"
	}

	if m.expired(session) {
		m.logger.InfoContext(ctx, "Session flow expired, resetting to idle",
			"user_id", sc.UserID, "chat_id", sc.ChatID, "state", session.State)
		session.State = string(StateIdle)
		session.Context = "{}"
		if err := m.store.SaveSession(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to persist session expiry for %s: %w", sc, err)
		}
	}

	return session, nil
}

func (m *Manager) expired(session *database.Session) bool {
	if m.timeout <= 0 {
		return false
	}
	if !State(session.State).InFlow() {
		return false
	}
	return time.Since(session.LastActivityAt) > m.timeout
}

// StartFlow moves an idle session into the first state of a flow. A session
// already mid-flow rejects the start with a ConflictingFlowError; callers
// that are allowed to preempt (an explicit /newtrip, say) cancel first.
func (m *Manager) StartFlow(ctx context.Context, session *database.Session, state State, data *FlowData) error {
	if State(session.State).InFlow() {
		return &errs.ConflictingFlowError{ActiveState: session.State}
	}
	return m.Transition(ctx, session, state, data)
}

// Transition moves a session to a new state with new flow data and persists
// it. Callers must hold the chat lock.
func (m *Manager) Transition(ctx context.Context, session *database.Session, state State, data *FlowData) error {
	if !state.Valid() {
		return fmt.Errorf("invalid session state %q", state)
	}
	encoded, err := data.Encode()
	if err != nil {
		return err
	}

	session.State = string(state)
	session.Context = encoded
	if err := m.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to persist session transition to %s: %w", state, err)
	}

	m.logger.DebugContext(ctx, "Session transitioned",
		"user_id", session.UserID, "chat_id", session.ChatID.Int64, "state", state)
	return nil
}

// Cancel aborts any in-progress flow, returning whether there was one.
func (m *Manager) Cancel(ctx context.Context, session *database.Session) (bool, error) {
	if !State(session.State).InFlow() {
		return false, nil
	}
	if err := m.Transition(ctx, session, StateIdle, nil); err != nil {
		return false, err
	}
	return true, nil
}

// FlowData returns the session's decoded flow context.
func (m *Manager) FlowData(session *database.Session) *FlowData {
	return DecodeFlowData(session.Context)
}

// SetCurrentTrip points a private-chat session at a specific trip. Group
// chats always follow the most recently active trip instead, so pinning a
// trip there is rejected.
func (m *Manager) SetCurrentTrip(ctx context.Context, sc scope.ChatScope, session *database.Session, tripID int64) error {
	if !sc.IsPrivate() {
		return &errs.InvalidScopeError{Reason: "trip switching is only available in private chats"}
	}
	session.CurrentTripID = sql.NullInt64{Int64: tripID, Valid: true}
	if err := m.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to pin trip %d on session: %w", tripID, err)
	}
	return nil
}
