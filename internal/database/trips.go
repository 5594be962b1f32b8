package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const tripColumns = `id, created_at, updated_at, user_id, chat_id, chat_type,
	name, location, participants, status, start_date, end_date, last_activity_at`

// InsertTrip inserts a new trip record and fills in its generated id.
func (s *sqlxStore) InsertTrip(ctx context.Context, trip *Trip) error {
	if trip == nil {
		return errors.New("cannot insert nil trip")
	}
	if !trip.ChatID.Valid {
		return errors.New("trip must have a chat_id")
	}
	if trip.Name == "" {
		return errors.New("trip must have a name")
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

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return insertTripTx(ctx, tx, trip)
	})
}

func insertTripTx(ctx context.Context, tx *sqlx.Tx, trip *Trip) error {
	query := `
        INSERT INTO trips (user_id, chat_id, chat_type, name, location, participants,
                           status, start_date, end_date, created_at, updated_at, last_activity_at)
        VALUES (:user_id, :chat_id, :chat_type, :name, :location, :participants,
                :status, :start_date, :end_date, :created_at, :updated_at, :last_activity_at);
    `
	result, err := tx.NamedExecContext(ctx, query, trip)
	if err != nil {
		return fmt.Errorf("failed to insert trip %q (chat %d): %w", trip.Name, trip.ChatID.Int64, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		trip.ID = id
	}
	return nil
}

// GetTrip retrieves a trip by id. Returns nil, nil if not found.
func (s *sqlxStore) GetTrip(ctx context.Context, tripID int64) (*Trip, error) {
	var trip Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`

	err := s.db.GetContext(ctx, &trip, query, tripID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get trip %d: %w", tripID, err)
	}
	return &trip, nil
}

// GetActiveTrip returns the current trip for a chat: status=active, greatest
// last_activity_at, ties broken by highest id. Returns nil, nil if none.
func (s *sqlxStore) GetActiveTrip(ctx context.Context, chatID int64) (*Trip, error) {
	if chatID == 0 {
		return nil, errors.New("chat_id cannot be zero")
	}

	var trip Trip
	query := `
        SELECT ` + tripColumns + `
        FROM trips
        WHERE chat_id = ? AND status = ?
        ORDER BY last_activity_at DESC, id DESC
        LIMIT 1;
    `

	err := s.db.GetContext(ctx, &trip, query, chatID, TripStatusActive)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to resolve active trip for chat %d: %w", chatID, err)
	}
	return &trip, nil
}

// ListTrips returns all trips for a chat ordered by most recent activity.
func (s *sqlxStore) ListTrips(ctx context.Context, chatID int64) ([]*Trip, error) {
	if chatID == 0 {
		return nil, errors.New("chat_id cannot be zero")
	}

	var trips []*Trip
	query := `
        SELECT ` + tripColumns + `
        FROM trips
        WHERE chat_id = ?
        ORDER BY last_activity_at DESC, id DESC;
    `
	if err := s.db.SelectContext(ctx, &trips, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to list trips for chat %d: %w", chatID, err)
	}
	return trips, nil
}

// SetTripStatus transitions a trip's lifecycle status. Completing a trip also
// stamps its end date.
func (s *sqlxStore) SetTripStatus(ctx context.Context, tripID int64, status string) error {
	switch status {
	case TripStatusActive, TripStatusCompleted, TripStatusArchived:
	default:
		return fmt.Errorf("invalid trip status %q", status)
	}

	now := time.Now().UTC()
	query := `UPDATE trips SET status = ?, updated_at = ? WHERE id = ?`
	args := []any{status, now, tripID}
	if status == TripStatusCompleted {
		query = `UPDATE trips SET status = ?, end_date = ?, updated_at = ? WHERE id = ?`
		args = []any{status, dateOnly(now), now, tripID}
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set status of trip %d: %w", tripID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("trip %d not found", tripID)
	}

	s.logger.DebugContext(ctx, "Trip status updated", "trip_id", tripID, "status", status)
	return nil
}

// TouchTrip bumps a trip's last_activity_at.
func (s *sqlxStore) TouchTrip(ctx context.Context, tripID int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE trips SET last_activity_at = ?, updated_at = ? WHERE id = ?`, now, now, tripID)
	if err != nil {
		return fmt.Errorf("failed to touch trip %d: %w", tripID, err)
	}
	return nil
}

func touchTripTx(ctx context.Context, tx *sqlx.Tx, tripID int64) error {
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE trips SET last_activity_at = ?, updated_at = ? WHERE id = ?`, now, now, tripID); err != nil {
		return fmt.Errorf("failed to touch trip %d: %w", tripID, err)
	}
	return nil
}

// UpdateTripParticipants replaces a trip's participant list.
func (s *sqlxStore) UpdateTripParticipants(ctx context.Context, tripID int64, participants StringList) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE trips SET participants = ?, updated_at = ? WHERE id = ?`, participants, now, tripID)
	if err != nil {
		return fmt.Errorf("failed to update participants of trip %d: %w", tripID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("trip %d not found", tripID)
	}
	return nil
}

// SetTripStartDate updates the trip's start date and renumbers all of the
// trip's itinerary items in the same transaction, so day ordering can never
// be observed half-updated.
func (s *sqlxStore) SetTripStartDate(ctx context.Context, tripID int64, start time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		result, err := tx.ExecContext(ctx,
			`UPDATE trips SET start_date = ?, updated_at = ? WHERE id = ?`,
			dateOnly(start), now, tripID)
		if err != nil {
			return fmt.Errorf("failed to set start date of trip %d: %w", tripID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("trip %d not found", tripID)
		}
		return renumberItineraryTx(ctx, tx, tripID)
	})
}

// DeleteChatData deletes all trips (and, via cascade, their records) plus all
// sessions for a chat in a single transaction.
func (s *sqlxStore) DeleteChatData(ctx context.Context, chatID int64) (int64, error) {
	if chatID == 0 {
		return 0, errors.New("chat_id cannot be zero")
	}

	var deleted int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE chat_id = ?`, chatID)
		if err != nil {
			return fmt.Errorf("failed to delete trips for chat %d: %w", chatID, err)
		}
		deleted, _ = result.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
			return fmt.Errorf("failed to delete sessions for chat %d: %w", chatID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Deleted all chat data", "chat_id", chatID, "trips_deleted", deleted)
	return deleted, nil
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
