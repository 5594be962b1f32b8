package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const travelEventColumns = `id, created_at, updated_at, trip_id, ingest_id, event_type,
	airline, flight_number, departure_city, departure_airport, departure_time,
	departure_terminal, departure_gate, arrival_city, arrival_airport, arrival_time,
	seat, hotel_name, check_in, check_out, nights, room_type, booking_reference,
	confidence_score, raw_source`

// InsertTravelEvent inserts a travel event and bumps the trip's activity.
// Idempotent by ingest id, like InsertExpense.
func (s *sqlxStore) InsertTravelEvent(ctx context.Context, event *TravelEvent) error {
	if event == nil {
		return errors.New("cannot insert nil travel event")
	}
	if event.TripID == 0 {
		return errors.New("travel event must belong to a trip")
	}
	switch event.EventType {
	case EventTypeFlight, EventTypeHotel, EventTypeActivity:
	default:
		return fmt.Errorf("invalid travel event type %q", event.EventType)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if event.IngestID.Valid {
			var existing TravelEvent
			err := tx.GetContext(ctx, &existing,
				`SELECT `+travelEventColumns+` FROM travel_events WHERE ingest_id = ?`,
				event.IngestID.String)
			switch {
			case err == nil:
				*event = existing
				s.logger.DebugContext(ctx, "Travel event ingest replayed, returning stored row",
					"event_id", existing.ID, "ingest_id", existing.IngestID.String)
				return nil
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("failed to check travel event ingest id: %w", err)
			}
		}

		now := time.Now().UTC()
		event.CreatedAt = now
		event.UpdatedAt = now

		query := `
            INSERT INTO travel_events (trip_id, ingest_id, event_type, airline, flight_number,
                                       departure_city, departure_airport, departure_time,
                                       departure_terminal, departure_gate, arrival_city,
                                       arrival_airport, arrival_time, seat, hotel_name,
                                       check_in, check_out, nights, room_type,
                                       booking_reference, confidence_score, raw_source,
                                       created_at, updated_at)
            VALUES (:trip_id, :ingest_id, :event_type, :airline, :flight_number,
                    :departure_city, :departure_airport, :departure_time,
                    :departure_terminal, :departure_gate, :arrival_city,
                    :arrival_airport, :arrival_time, :seat, :hotel_name,
                    :check_in, :check_out, :nights, :room_type,
                    :booking_reference, :confidence_score, :raw_source,
                    :created_at, :updated_at);
        `
		result, err := tx.NamedExecContext(ctx, query, event)
		if err != nil {
			return fmt.Errorf("failed to insert travel event for trip %d: %w", event.TripID, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			event.ID = id
		}

		return touchTripTx(ctx, tx, event.TripID)
	})
}

// ListTravelEvents returns a trip's travel events ordered by start time.
// Flights sort by departure, hotels by check-in; events without a start time
// sort last in insertion order.
func (s *sqlxStore) ListTravelEvents(ctx context.Context, tripID int64) ([]*TravelEvent, error) {
	var events []*TravelEvent
	query := `
        SELECT ` + travelEventColumns + `
        FROM travel_events
        WHERE trip_id = ?
        ORDER BY COALESCE(departure_time, check_in) IS NULL,
                 COALESCE(departure_time, check_in) ASC,
                 id ASC;
    `
	if err := s.db.SelectContext(ctx, &events, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list travel events for trip %d: %w", tripID, err)
	}
	return events, nil
}
