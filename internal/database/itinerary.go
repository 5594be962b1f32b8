package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const itineraryColumns = `id, created_at, updated_at, trip_id, ingest_id,
	date, time, title, category, day_order, time_order, source`

// InsertItineraryItems inserts a batch of itinerary items, renumbers the whole
// trip itinerary, and bumps the trip's activity in one transaction. Items
// whose ingest id is already stored are skipped.
func (s *sqlxStore) InsertItineraryItems(ctx context.Context, tripID int64, items []*ItineraryItem) error {
	if tripID == 0 {
		return errors.New("trip_id cannot be zero")
	}
	if len(items) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for _, item := range items {
			if item.Title == "" {
				return errors.New("itinerary item must have a title")
			}
			if item.IngestID.Valid {
				var existingID int64
				err := tx.GetContext(ctx, &existingID,
					`SELECT id FROM itinerary_items WHERE ingest_id = ?`, item.IngestID.String)
				switch {
				case err == nil:
					item.ID = existingID
					continue
				case !errors.Is(err, sql.ErrNoRows):
					return fmt.Errorf("failed to check itinerary ingest id: %w", err)
				}
			}

			item.TripID = tripID
			item.CreatedAt = now
			item.UpdatedAt = now
			item.Date = dateOnly(item.Date)
			if item.Category == "" {
				item.Category = "activity"
			}
			if item.Source == "" {
				item.Source = ItinerarySourceDetected
			}

			query := `
                INSERT INTO itinerary_items (trip_id, ingest_id, date, time, title, category,
                                             day_order, time_order, source, created_at, updated_at)
                VALUES (:trip_id, :ingest_id, :date, :time, :title, :category,
                        :day_order, :time_order, :source, :created_at, :updated_at);
            `
			result, err := tx.NamedExecContext(ctx, query, item)
			if err != nil {
				return fmt.Errorf("failed to insert itinerary item %q: %w", item.Title, err)
			}
			if id, err := result.LastInsertId(); err == nil {
				item.ID = id
			}
		}

		if err := renumberItineraryTx(ctx, tx, tripID); err != nil {
			return err
		}
		return touchTripTx(ctx, tx, tripID)
	})
}

// ListItinerary returns a trip's itinerary in display order.
func (s *sqlxStore) ListItinerary(ctx context.Context, tripID int64) ([]*ItineraryItem, error) {
	var items []*ItineraryItem
	query := `
        SELECT ` + itineraryColumns + `
        FROM itinerary_items
        WHERE trip_id = ?
        ORDER BY day_order ASC, time_order ASC, id ASC;
    `
	if err := s.db.SelectContext(ctx, &items, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list itinerary for trip %d: %w", tripID, err)
	}
	return items, nil
}

// renumberItineraryTx recomputes day_order and time_order for every item of
// a trip. Within a day, timed items sort before untimed ones, timed items by
// their time string, ties by id. When the trip has a start date, day numbers
// are calendar offsets from it (day one is the start date; earlier dates go
// to zero or below). Without a start date, days are numbered densely in date
// order starting at one.
func renumberItineraryTx(ctx context.Context, tx *sqlx.Tx, tripID int64) error {
	var start sql.NullTime
	err := tx.GetContext(ctx, &start, `SELECT start_date FROM trips WHERE id = ?`, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trip %d not found", tripID)
	}
	if err != nil {
		return fmt.Errorf("failed to load trip %d start date: %w", tripID, err)
	}

	var items []*ItineraryItem
	query := `
        SELECT ` + itineraryColumns + `
        FROM itinerary_items
        WHERE trip_id = ?
        ORDER BY date ASC,
                 CASE WHEN time = '' THEN 1 ELSE 0 END,
                 time ASC,
                 id ASC;
    `
	if err := tx.SelectContext(ctx, &items, query, tripID); err != nil {
		return fmt.Errorf("failed to load itinerary for trip %d: %w", tripID, err)
	}
	if len(items) == 0 {
		return nil
	}

	var (
		startDate time.Time
		haveStart = start.Valid
	)
	if haveStart {
		startDate = dateOnly(start.Time)
	}

	now := time.Now().UTC()
	denseDay := 0
	var prevDate time.Time
	timeOrder := 0
	prevDay := 0

	for i, item := range items {
		if i == 0 || !item.Date.Equal(prevDate) {
			denseDay++
			prevDate = item.Date
		}

		day := denseDay
		if haveStart {
			day = int(item.Date.Sub(startDate).Hours()/24) + 1
		}
		if i == 0 || day != prevDay {
			timeOrder = 0
			prevDay = day
		}
		timeOrder++

		if item.DayOrder == day && item.TimeOrder == timeOrder {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
            UPDATE itinerary_items
            SET day_order = ?, time_order = ?, updated_at = ?
            WHERE id = ?`,
			day, timeOrder, now, item.ID); err != nil {
			return fmt.Errorf("failed to renumber itinerary item %d: %w", item.ID, err)
		}
	}
	return nil
}
