package records

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wanderlog/wanderbot/internal/database"
)

// Attacher validates candidate records and persists them against a trip.
// Every attach is idempotent: candidates carry an ingest id (derived from the
// source message by callers, or generated here), and replaying one returns
// the already-stored row.
type Attacher struct {
	store  database.Store
	logger *slog.Logger
}

// NewAttacher creates an Attacher.
func NewAttacher(store database.Store, logger *slog.Logger) *Attacher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Attacher{
		store:  store,
		logger: logger.With("component", "records"),
	}
}

func ingestID(id string) sql.NullString {
	if id == "" {
		id = uuid.NewString()
	}
	return sql.NullString{String: id, Valid: true}
}

// AttachExpense validates and stores an expense candidate.
func (a *Attacher) AttachExpense(ctx context.Context, tripID int64, c *ExpenseCandidate) (*database.Expense, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	expense := &database.Expense{
		TripID:          tripID,
		IngestID:        ingestID(c.IngestID),
		Merchant:        c.Merchant,
		Location:        c.Location,
		Category:        c.Category,
		Subtotal:        c.Subtotal,
		Tax:             c.Tax,
		Tip:             c.Tip,
		Total:           c.Total,
		Currency:        c.Currency,
		Items:           database.ExpenseItems(c.Items),
		ConfidenceScore: sql.NullFloat64{Float64: c.Confidence, Valid: c.Confidence > 0},
		RawSource:       c.RawText,
	}
	if !c.TransactionDate.IsZero() {
		expense.TransactionDate = sql.NullTime{Time: c.TransactionDate, Valid: true}
	}

	if err := a.store.InsertExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to attach expense: %w", err)
	}

	a.logger.InfoContext(ctx, "Expense attached",
		"trip_id", tripID, "expense_id", expense.ID,
		"merchant", expense.Merchant, "total", expense.Total.StringFixed(2))
	return expense, nil
}

// AttachFlight validates and stores a flight candidate as a travel event.
func (a *Attacher) AttachFlight(ctx context.Context, tripID int64, c *FlightCandidate) (*database.TravelEvent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	event := &database.TravelEvent{
		TripID:            tripID,
		IngestID:          ingestID(c.IngestID),
		EventType:         database.EventTypeFlight,
		Airline:           c.Airline,
		FlightNumber:      c.FlightNumber,
		DepartureCity:     c.DepartureCity,
		DepartureAirport:  c.DepartureAirport,
		DepartureTime:     sql.NullTime{Time: c.DepartureTime, Valid: !c.DepartureTime.IsZero()},
		DepartureTerminal: c.DepartureTerminal,
		DepartureGate:     c.DepartureGate,
		ArrivalCity:       c.ArrivalCity,
		ArrivalAirport:    c.ArrivalAirport,
		ArrivalTime:       sql.NullTime{Time: c.ArrivalTime, Valid: !c.ArrivalTime.IsZero()},
		Seat:              c.Seat,
		BookingReference:  c.BookingReference,
		ConfidenceScore:   sql.NullFloat64{Float64: c.Confidence, Valid: c.Confidence > 0},
		RawSource:         c.RawText,
	}

	if err := a.store.InsertTravelEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to attach flight: %w", err)
	}

	a.logger.InfoContext(ctx, "Flight attached",
		"trip_id", tripID, "event_id", event.ID, "flight", event.FlightNumber)
	return event, nil
}

// AttachHotel validates and stores a hotel booking candidate as a travel event.
func (a *Attacher) AttachHotel(ctx context.Context, tripID int64, c *HotelCandidate) (*database.TravelEvent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	event := &database.TravelEvent{
		TripID:           tripID,
		IngestID:         ingestID(c.IngestID),
		EventType:        database.EventTypeHotel,
		HotelName:        c.HotelName,
		CheckIn:          sql.NullTime{Time: c.CheckIn, Valid: !c.CheckIn.IsZero()},
		CheckOut:         sql.NullTime{Time: c.CheckOut, Valid: !c.CheckOut.IsZero()},
		Nights:           sql.NullInt64{Int64: c.Nights(), Valid: c.Nights() > 0},
		RoomType:         c.RoomType,
		BookingReference: c.BookingReference,
		ConfidenceScore:  sql.NullFloat64{Float64: c.Confidence, Valid: c.Confidence > 0},
		RawSource:        c.RawText,
	}

	if err := a.store.InsertTravelEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to attach hotel booking: %w", err)
	}

	a.logger.InfoContext(ctx, "Hotel booking attached",
		"trip_id", tripID, "event_id", event.ID, "hotel", event.HotelName)
	return event, nil
}

// AttachItinerary validates and stores a batch of itinerary entries. Each
// entry gets a per-entry ingest id derived from the batch id so partial
// replays skip only the entries already stored.
func (a *Attacher) AttachItinerary(ctx context.Context, tripID int64, c *ItineraryCandidate) ([]*database.ItineraryItem, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	batchID := c.IngestID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	source := c.Source
	if source == "" {
		source = database.ItinerarySourceDetected
	}

	items := make([]*database.ItineraryItem, 0, len(c.Entries))
	for i, entry := range c.Entries {
		items = append(items, &database.ItineraryItem{
			TripID:   tripID,
			IngestID: sql.NullString{String: fmt.Sprintf("%s/%d", batchID, i), Valid: true},
			Date:     entry.Date,
			Time:     entry.Time,
			Title:    entry.Title,
			Category: entry.Category,
			Source:   source,
		})
	}

	if err := a.store.InsertItineraryItems(ctx, tripID, items); err != nil {
		return nil, fmt.Errorf("failed to attach itinerary: %w", err)
	}

	a.logger.InfoContext(ctx, "Itinerary attached",
		"trip_id", tripID, "entries", len(items), "source", source)
	return items, nil
}

// AttachPlace validates and stores a place candidate, merging into an
// existing row when the external id is already known for the trip.
func (a *Attacher) AttachPlace(ctx context.Context, tripID int64, c *PlaceCandidate) (*database.Place, bool, error) {
	if err := c.Validate(); err != nil {
		return nil, false, err
	}

	place := &database.Place{
		TripID:     tripID,
		Name:       c.Name,
		Category:   c.Category,
		ExternalID: sql.NullString{String: c.ExternalID, Valid: c.ExternalID != ""},
		Address:    c.Address,
		Notes:      c.Notes,
	}
	if c.HasCoords {
		place.Latitude = sql.NullFloat64{Float64: c.Latitude, Valid: true}
		place.Longitude = sql.NullFloat64{Float64: c.Longitude, Valid: true}
	}
	if c.HasRating {
		place.Rating = sql.NullFloat64{Float64: c.Rating, Valid: true}
	}

	merged, err := a.store.UpsertPlace(ctx, place)
	if err != nil {
		return nil, false, fmt.Errorf("failed to attach place: %w", err)
	}

	a.logger.InfoContext(ctx, "Place attached",
		"trip_id", tripID, "place_id", place.ID, "name", place.Name, "merged", merged)
	return place, merged, nil
}
