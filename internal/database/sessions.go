package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const sessionColumns = `id, created_at, updated_at, user_id, chat_id, chat_type,
	current_trip_id, state, context, last_activity_at`

// GetSession retrieves the session for a (user, chat) pair.
// Returns nil, nil if not found.
func (s *sqlxStore) GetSession(ctx context.Context, userID, chatID int64) (*Session, error) {
	if userID <= 0 || chatID == 0 {
		return nil, fmt.Errorf("invalid session scope (user %d, chat %d)", userID, chatID)
	}

	var session Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ? AND chat_id = ?`

	err := s.db.GetContext(ctx, &session, query, userID, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get session (user %d, chat %d): %w", userID, chatID, err)
	}
	return &session, nil
}

// SaveSession inserts or updates the session keyed by (user_id, chat_id).
func (s *sqlxStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("cannot save nil session")
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return saveSessionTx(ctx, tx, session)
	})
}

func saveSessionTx(ctx context.Context, tx *sqlx.Tx, session *Session) error {
	if session.UserID <= 0 || !session.ChatID.Valid {
		return fmt.Errorf("invalid session scope (user %d)", session.UserID)
	}

	now := time.Now().UTC()
	session.UpdatedAt = now
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastActivityAt = now
	if session.State == "" {
		session.State = "idle"
	}
	if session.Context == "" {
		session.Context = "{}"
	}

	query := `
        INSERT INTO sessions (user_id, chat_id, chat_type, current_trip_id, state, context,
                              created_at, updated_at, last_activity_at)
        VALUES (:user_id, :chat_id, :chat_type, :current_trip_id, :state, :context,
                :created_at, :updated_at, :last_activity_at)
        ON CONFLICT (user_id, chat_id) DO UPDATE SET
            chat_type = excluded.chat_type,
            current_trip_id = excluded.current_trip_id,
            state = excluded.state,
            context = excluded.context,
            updated_at = excluded.updated_at,
            last_activity_at = excluded.last_activity_at;
    `
	result, err := tx.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("failed to save session (user %d, chat %d): %w",
			session.UserID, session.ChatID.Int64, err)
	}
	if session.ID == 0 {
		if id, err := result.LastInsertId(); err == nil {
			session.ID = id
		}
	}
	return nil
}

// CreateTripActivating inserts a trip and writes the completed session
// (current trip set, state reset) in a single transaction, so a crash can
// never leave a created trip with a session still mid-flow.
func (s *sqlxStore) CreateTripActivating(ctx context.Context, trip *Trip, session *Session) error {
	if trip == nil || session == nil {
		return errors.New("trip and session are both required")
	}

	now := time.Now().UTC()
	trip.CreatedAt = now
	trip.UpdatedAt = now
	if trip.LastActivityAt.IsZero() {
		trip.LastActivityAt = now
	}
	if trip.Status == "" {
		trip.Status = TripStatusActive
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertTripTx(ctx, tx, trip); err != nil {
			return err
		}
		session.CurrentTripID = sql.NullInt64{Int64: trip.ID, Valid: true}
		return saveSessionTx(ctx, tx, session)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Trip created and activated",
		"trip_id", trip.ID, "chat_id", trip.ChatID.Int64, "name", trip.Name)
	return nil
}
