// Package trip implements trip lifecycle and active-trip resolution on top
// of the store.
package trip

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/scope"
)

// Service owns trip lifecycle operations. singleActive, when set, forbids a
// chat from having more than one active trip at a time.
type Service struct {
	store        database.Store
	singleActive bool
	logger       *slog.Logger
}

// NewService creates a trip Service.
func NewService(store database.Store, singleActive bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:        store,
		singleActive: singleActive,
		logger:       logger.With("component", "trip"),
	}
}

// Resolve returns the trip the scope's records should attach to, or nil when
// the chat has no active trip. Group chats always follow the most recently
// active trip. Private chats honor the session's pinned trip first; a pin
// pointing at a deleted or foreign trip is cleared and resolution falls back
// to the activity rule.
func (s *Service) Resolve(ctx context.Context, sc scope.ChatScope, session *database.Session) (*database.Trip, error) {
	if sc.IsPrivate() && session != nil && session.CurrentTripID.Valid {
		trip, err := s.store.GetTrip(ctx, session.CurrentTripID.Int64)
		if err != nil {
			return nil, err
		}
		if trip != nil && trip.ChatID.Valid && trip.ChatID.Int64 == sc.ChatID && trip.Status == database.TripStatusActive {
			return trip, nil
		}

		s.logger.WarnContext(ctx, "Clearing stale pinned trip on session",
			"user_id", sc.UserID, "trip_id", session.CurrentTripID.Int64)
		session.CurrentTripID = sql.NullInt64{}
		if err := s.store.SaveSession(ctx, session); err != nil {
			return nil, err
		}
	}

	return s.store.GetActiveTrip(ctx, sc.ChatID)
}

// Create creates a new active trip for the scope and points the session at
// it, atomically. Under the single-active policy the create is rejected with
// a DuplicateActiveTripError while another trip is still active.
func (s *Service) Create(ctx context.Context, sc scope.ChatScope, session *database.Session, name, location string, participants []string) (*database.Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &errs.IncompleteRecordError{Kind: "trip", Missing: []string{"name"}}
	}

	if s.singleActive {
		existing, err := s.store.GetActiveTrip(ctx, sc.ChatID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &errs.DuplicateActiveTripError{ExistingTrip: existing.Name}
		}
	}

	trip := &database.Trip{
		UserID:       sc.UserID,
		ChatID:       sql.NullInt64{Int64: sc.ChatID, Valid: true},
		ChatType:     sql.NullString{String: string(sc.Kind), Valid: true},
		Name:         name,
		Location:     strings.TrimSpace(location),
		Participants: normalizeParticipants(participants),
		Status:       database.TripStatusActive,
	}

	if err := s.store.CreateTripActivating(ctx, trip, session); err != nil {
		return nil, fmt.Errorf("failed to create trip %q: %w", name, err)
	}
	return trip, nil
}

// List returns the scope's trips, most recently active first.
func (s *Service) List(ctx context.Context, sc scope.ChatScope) ([]*database.Trip, error) {
	return s.store.ListTrips(ctx, sc.ChatID)
}

// Switch pins a private-chat session to one of the chat's trips by name,
// matched case-insensitively. Group chats cannot pin.
func (s *Service) Switch(ctx context.Context, sc scope.ChatScope, session *database.Session, name string) (*database.Trip, error) {
	if !sc.IsPrivate() {
		return nil, &errs.InvalidScopeError{Reason: "trip switching is only available in private chats"}
	}

	trips, err := s.store.ListTrips(ctx, sc.ChatID)
	if err != nil {
		return nil, err
	}
	for _, t := range trips {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			session.CurrentTripID = sql.NullInt64{Int64: t.ID, Valid: true}
			if err := s.store.SaveSession(ctx, session); err != nil {
				return nil, err
			}
			if err := s.store.TouchTrip(ctx, t.ID); err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return nil, errs.NewNotFoundError(fmt.Sprintf("no trip named %q in this chat", name))
}

// End marks a trip completed and stamps its end date.
func (s *Service) End(ctx context.Context, trip *database.Trip) error {
	if err := s.store.SetTripStatus(ctx, trip.ID, database.TripStatusCompleted); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Trip ended", "trip_id", trip.ID, "name", trip.Name)
	return nil
}

// Touch bumps a trip's activity clock.
func (s *Service) Touch(ctx context.Context, tripID int64) error {
	return s.store.TouchTrip(ctx, tripID)
}

// SetStartDate sets the trip start date, which also renumbers its itinerary.
func (s *Service) SetStartDate(ctx context.Context, tripID int64, start time.Time) error {
	return s.store.SetTripStartDate(ctx, tripID, start)
}

// EnsureStartDate pins the trip's start date from its first dated record.
// Trips that already have a start date keep it.
func (s *Service) EnsureStartDate(ctx context.Context, trip *database.Trip, start time.Time) error {
	if trip.StartDate.Valid || start.IsZero() {
		return nil
	}
	if err := s.store.SetTripStartDate(ctx, trip.ID, start); err != nil {
		return err
	}
	trip.StartDate = sql.NullTime{Time: start, Valid: true}
	s.logger.InfoContext(ctx, "Trip start date set",
		"trip_id", trip.ID, "start", start.Format("2006-01-02"))
	return nil
}

// AddParticipants appends names to a trip's roster, skipping names already
// present under case-insensitive comparison. Returns the updated roster.
func (s *Service) AddParticipants(ctx context.Context, trip *database.Trip, names []string) (database.StringList, error) {
	roster := trip.Participants
	changed := false
	for _, name := range normalizeParticipants(names) {
		if trip.HasParticipant(name) {
			continue
		}
		roster = append(roster, name)
		trip.Participants = roster
		changed = true
	}
	if !changed {
		return roster, nil
	}
	if err := s.store.UpdateTripParticipants(ctx, trip.ID, roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// ResetChat deletes every trip, record, and session for the scope's chat.
// Returns the number of trips removed.
func (s *Service) ResetChat(ctx context.Context, sc scope.ChatScope) (int64, error) {
	return s.store.DeleteChatData(ctx, sc.ChatID)
}

func normalizeParticipants(names []string) database.StringList {
	out := make(database.StringList, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if strings.EqualFold(seen, name) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, name)
		}
	}
	return out
}
