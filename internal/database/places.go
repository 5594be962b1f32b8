package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const placeColumns = `id, created_at, updated_at, trip_id, name, category, external_id,
	address, latitude, longitude, rating, notes, visited, visited_date`

// UpsertPlace inserts a place, or, when its external id already exists for
// the trip, merges enrichment fields (name, category, address, coordinates,
// rating) into the stored row while keeping user-entered state (notes,
// visited) unless the incoming place carries its own. Returns true when an
// existing row was merged.
func (s *sqlxStore) UpsertPlace(ctx context.Context, place *Place) (bool, error) {
	if place == nil {
		return false, errors.New("cannot upsert nil place")
	}
	if place.TripID == 0 {
		return false, errors.New("place must belong to a trip")
	}
	if place.Name == "" {
		return false, errors.New("place must have a name")
	}

	merged := false
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()

		if place.ExternalID.Valid {
			var existing Place
			err := tx.GetContext(ctx, &existing,
				`SELECT `+placeColumns+` FROM places WHERE trip_id = ? AND external_id = ?`,
				place.TripID, place.ExternalID.String)
			switch {
			case err == nil:
				mergePlace(&existing, place)
				existing.UpdatedAt = now
				if _, err := tx.NamedExecContext(ctx, `
                    UPDATE places
                    SET name = :name, category = :category, address = :address,
                        latitude = :latitude, longitude = :longitude, rating = :rating,
                        notes = :notes, visited = :visited, visited_date = :visited_date,
                        updated_at = :updated_at
                    WHERE id = :id`, &existing); err != nil {
					return fmt.Errorf("failed to merge place %d: %w", existing.ID, err)
				}
				*place = existing
				merged = true
				return touchTripTx(ctx, tx, place.TripID)
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("failed to check place external id: %w", err)
			}
		}

		place.CreatedAt = now
		place.UpdatedAt = now
		if place.Category == "" {
			place.Category = "other"
		}

		query := `
            INSERT INTO places (trip_id, name, category, external_id, address,
                                latitude, longitude, rating, notes, visited, visited_date,
                                created_at, updated_at)
            VALUES (:trip_id, :name, :category, :external_id, :address,
                    :latitude, :longitude, :rating, :notes, :visited, :visited_date,
                    :created_at, :updated_at);
        `
		result, err := tx.NamedExecContext(ctx, query, place)
		if err != nil {
			return fmt.Errorf("failed to insert place %q for trip %d: %w", place.Name, place.TripID, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			place.ID = id
		}
		return touchTripTx(ctx, tx, place.TripID)
	})
	if err != nil {
		return false, err
	}
	return merged, nil
}

// mergePlace overlays enrichment fields from incoming onto existing. Fields
// the incoming place leaves empty keep their stored values.
func mergePlace(existing, incoming *Place) {
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.Category != "" && incoming.Category != "other" {
		existing.Category = incoming.Category
	}
	if incoming.Address != "" {
		existing.Address = incoming.Address
	}
	if incoming.Latitude.Valid {
		existing.Latitude = incoming.Latitude
	}
	if incoming.Longitude.Valid {
		existing.Longitude = incoming.Longitude
	}
	if incoming.Rating.Valid {
		existing.Rating = incoming.Rating
	}
	if incoming.Notes != "" {
		existing.Notes = incoming.Notes
	}
	if incoming.Visited {
		existing.Visited = true
		if incoming.VisitedDate.Valid {
			existing.VisitedDate = incoming.VisitedDate
		}
	}
}

// ListPlaces returns a trip's places, newest first.
func (s *sqlxStore) ListPlaces(ctx context.Context, tripID int64) ([]*Place, error) {
	var places []*Place
	query := `
        SELECT ` + placeColumns + `
        FROM places
        WHERE trip_id = ?
        ORDER BY id DESC;
    `
	if err := s.db.SelectContext(ctx, &places, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list places for trip %d: %w", tripID, err)
	}
	return places, nil
}

// GetPlaceByName returns the trip's most recently saved place whose name
// matches case-insensitively. Returns nil, nil if none.
func (s *sqlxStore) GetPlaceByName(ctx context.Context, tripID int64, name string) (*Place, error) {
	var place Place
	query := `
        SELECT ` + placeColumns + `
        FROM places
        WHERE trip_id = ? AND name = ? COLLATE NOCASE
        ORDER BY id DESC
        LIMIT 1;
    `
	err := s.db.GetContext(ctx, &place, query, tripID, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up place %q for trip %d: %w", name, tripID, err)
	}
	return &place, nil
}

// SetPlaceVisited marks a place visited on the given date.
func (s *sqlxStore) SetPlaceVisited(ctx context.Context, placeID int64, visitedDate time.Time) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
        UPDATE places
        SET visited = 1, visited_date = ?, updated_at = ?
        WHERE id = ?`,
		dateOnly(visitedDate), now, placeID)
	if err != nil {
		return fmt.Errorf("failed to mark place %d visited: %w", placeID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("place %d not found", placeID)
	}
	return nil
}
