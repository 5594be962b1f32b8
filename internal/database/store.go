package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the data access layer for the trip engine. All methods accept
// a context for cancellation and timeouts. Composite methods (create-trip-and-
// activate, apply-split-and-reset, place upsert, itinerary batch insert) run
// in a single transaction so flow side effects and session resets can never be
// partially applied.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// BackfillChatScopes assigns chat_id := user_id and chat_type := private
	// to legacy trip/session rows that predate group-chat support. Idempotent;
	// returns the number of rows updated.
	BackfillChatScopes(ctx context.Context) (int64, error)

	// --- Trips ---

	// InsertTrip inserts a new trip record.
	InsertTrip(ctx context.Context, trip *Trip) error

	// GetTrip retrieves a trip by id. Returns nil, nil if not found.
	GetTrip(ctx context.Context, tripID int64) (*Trip, error)

	// GetActiveTrip returns the active trip with the most recent activity for
	// a chat, ties broken by highest id. Returns nil, nil if none exists.
	GetActiveTrip(ctx context.Context, chatID int64) (*Trip, error)

	// ListTrips returns all trips for a chat ordered by most recent activity.
	ListTrips(ctx context.Context, chatID int64) ([]*Trip, error)

	// SetTripStatus transitions a trip's lifecycle status. Completing a trip
	// also stamps its end date.
	SetTripStatus(ctx context.Context, tripID int64, status string) error

	// TouchTrip bumps a trip's last_activity_at.
	TouchTrip(ctx context.Context, tripID int64) error

	// UpdateTripParticipants replaces a trip's participant list.
	UpdateTripParticipants(ctx context.Context, tripID int64, participants StringList) error

	// SetTripStartDate updates the trip's start date and renumbers every
	// itinerary item of the trip in the same transaction.
	SetTripStartDate(ctx context.Context, tripID int64, start time.Time) error

	// DeleteChatData deletes all trips (cascading to their records) and
	// sessions for a chat in a single transaction. Returns deleted trip count.
	DeleteChatData(ctx context.Context, chatID int64) (int64, error)

	// --- Sessions ---

	// GetSession retrieves the session for a (user, chat) pair.
	// Returns nil, nil if not found.
	GetSession(ctx context.Context, userID, chatID int64) (*Session, error)

	// SaveSession inserts or updates the session keyed by (user_id, chat_id).
	SaveSession(ctx context.Context, session *Session) error

	// CreateTripActivating inserts a trip and writes the completed session
	// (current trip set, state reset) atomically.
	CreateTripActivating(ctx context.Context, trip *Trip, session *Session) error

	// --- Expenses ---

	// InsertExpense inserts an expense and bumps the trip's activity. If the
	// expense carries an ingest id that already exists, the stored row is
	// loaded into the argument instead (idempotent retry).
	InsertExpense(ctx context.Context, expense *Expense) error

	// GetExpense retrieves an expense by id. Returns nil, nil if not found.
	GetExpense(ctx context.Context, expenseID int64) (*Expense, error)

	// ListExpenses returns all expenses for a trip, newest transaction first.
	ListExpenses(ctx context.Context, tripID int64) ([]*Expense, error)

	// ApplyExpenseSplit records split data on an expense, updates the trip's
	// participants and activity, and writes the completed session, all in one
	// transaction.
	ApplyExpenseSplit(ctx context.Context, expenseID int64, paidBy string, between StringList, amounts DecimalMap, participants StringList, session *Session) error

	// --- Travel events ---

	// InsertTravelEvent inserts a travel event and bumps the trip's activity.
	// Idempotent by ingest id, like InsertExpense.
	InsertTravelEvent(ctx context.Context, event *TravelEvent) error

	// ListTravelEvents returns a trip's travel events ordered by start time.
	ListTravelEvents(ctx context.Context, tripID int64) ([]*TravelEvent, error)

	// --- Itinerary ---

	// InsertItineraryItems inserts a batch of itinerary items, renumbers the
	// whole trip itinerary, and bumps the trip's activity in one transaction.
	InsertItineraryItems(ctx context.Context, tripID int64, items []*ItineraryItem) error

	// ListItinerary returns a trip's itinerary in display order.
	ListItinerary(ctx context.Context, tripID int64) ([]*ItineraryItem, error)

	// --- Places ---

	// UpsertPlace inserts a place, or, when its external id already exists
	// for the trip, merges enrichment fields into the existing row while
	// preserving user-entered fields. Returns true when merged.
	UpsertPlace(ctx context.Context, place *Place) (bool, error)

	// ListPlaces returns a trip's places, newest first.
	ListPlaces(ctx context.Context, tripID int64) ([]*Place, error)

	// GetPlaceByName returns the trip's most recently saved place whose name
	// matches case-insensitively. Returns nil, nil if none.
	GetPlaceByName(ctx context.Context, tripID int64, name string) (*Place, error)

	// SetPlaceVisited marks a place visited on the given date.
	SetPlaceVisited(ctx context.Context, placeID int64, visitedDate time.Time) error
}

// sqlxStore implements Store using sqlx over SQLite.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction, rolling back unless fn succeeds and the
// commit goes through.
func (s *sqlxStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
