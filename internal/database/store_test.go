package database_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlog/wanderbot/internal/database"
)

func newTestStore(t *testing.T) (database.Store, *sqlx.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil), db
}

func seedTrip(t *testing.T, store database.Store, chatID int64, name string) *database.Trip {
	t.Helper()

	trip := &database.Trip{
		UserID:       1,
		ChatID:       sql.NullInt64{Int64: chatID, Valid: true},
		ChatType:     sql.NullString{String: "private", Valid: true},
		Name:         name,
		Participants: database.StringList{"Alice"},
	}
	require.NoError(t, store.InsertTrip(context.Background(), trip))
	require.NotZero(t, trip.ID)
	return trip
}

func TestTripLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	got, err := store.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Paris", got.Name)
	assert.Equal(t, database.TripStatusActive, got.Status)
	assert.Equal(t, database.StringList{"Alice"}, got.Participants)

	active, err := store.GetActiveTrip(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, trip.ID, active.ID)

	require.NoError(t, store.SetTripStatus(ctx, trip.ID, database.TripStatusCompleted))

	active, err = store.GetActiveTrip(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, active, "completed trip must not resolve as active")

	// Completion stamps the end date as today's calendar date.
	completed, err := store.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.True(t, completed.EndDate.Valid, "completed trip must carry an end date")
	today := time.Now().UTC().Truncate(24 * time.Hour)
	assert.Equal(t, today, completed.EndDate.Time.UTC())

	trips, err := store.ListTrips(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, trips, 1)
}

func TestGetTripMissing(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetTrip(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetTripStatusValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	assert.Error(t, store.SetTripStatus(ctx, trip.ID, "paused"))
	assert.Error(t, store.SetTripStatus(ctx, 9999, database.TripStatusArchived))
}

func TestGetActiveTripPicksMostRecent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := &database.Trip{
		UserID:         1,
		ChatID:         sql.NullInt64{Int64: 100, Valid: true},
		Name:           "First",
		LastActivityAt: base,
	}
	require.NoError(t, store.InsertTrip(ctx, first))

	second := &database.Trip{
		UserID:         1,
		ChatID:         sql.NullInt64{Int64: 100, Valid: true},
		Name:           "Second",
		LastActivityAt: base,
	}
	require.NoError(t, store.InsertTrip(ctx, second))

	// Equal activity: the higher id wins.
	active, err := store.GetActiveTrip(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	// Touching the first trip makes it the most recently active.
	require.NoError(t, store.TouchTrip(ctx, first.ID))

	active, err = store.GetActiveTrip(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
}

func TestSessionUpsert(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetSession(ctx, 1, 100)
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := &database.Session{
		UserID:   1,
		ChatID:   sql.NullInt64{Int64: 100, Valid: true},
		ChatType: sql.NullString{String: "private", Valid: true},
	}
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NotZero(t, sess.ID)

	got, err = store.GetSession(ctx, 1, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "idle", got.State)
	assert.Equal(t, "{}", got.Context)

	sess.State = "awaiting_trip_name"
	sess.Context = `{"flow":"trip_create"}`
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err = store.GetSession(ctx, 1, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID, "upsert must not create a second row")
	assert.Equal(t, "awaiting_trip_name", got.State)
	assert.Equal(t, `{"flow":"trip_create"}`, got.Context)
}

func TestCreateTripActivating(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := &database.Session{
		UserID: 1,
		ChatID: sql.NullInt64{Int64: 100, Valid: true},
		State:  "idle",
	}
	trip := &database.Trip{
		UserID: 1,
		ChatID: sql.NullInt64{Int64: 100, Valid: true},
		Name:   "Tokyo",
	}
	require.NoError(t, store.CreateTripActivating(ctx, trip, sess))
	require.NotZero(t, trip.ID)

	got, err := store.GetSession(ctx, 1, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.CurrentTripID.Valid)
	assert.Equal(t, trip.ID, got.CurrentTripID.Int64)
	assert.Equal(t, "idle", got.State)
}

func TestInsertExpenseIngestIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	expense := &database.Expense{
		TripID:   trip.ID,
		IngestID: sql.NullString{String: "tg:100:42", Valid: true},
		Merchant: "Le Bistro",
		Total:    decimal.RequireFromString("48.50"),
		Currency: "EUR",
	}
	require.NoError(t, store.InsertExpense(ctx, expense))
	firstID := expense.ID
	require.NotZero(t, firstID)

	// Replaying the same message must return the stored row, not insert.
	replay := &database.Expense{
		TripID:   trip.ID,
		IngestID: sql.NullString{String: "tg:100:42", Valid: true},
		Merchant: "Different Extraction",
		Total:    decimal.RequireFromString("99.99"),
	}
	require.NoError(t, store.InsertExpense(ctx, replay))
	assert.Equal(t, firstID, replay.ID)
	assert.Equal(t, "Le Bistro", replay.Merchant)
	assert.True(t, replay.Total.Equal(decimal.RequireFromString("48.50")))

	expenses, err := store.ListExpenses(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)
}

func TestApplyExpenseSplit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	expense := &database.Expense{
		TripID:   trip.ID,
		Merchant: "Le Bistro",
		Total:    decimal.RequireFromString("60.00"),
		Currency: "EUR",
	}
	require.NoError(t, store.InsertExpense(ctx, expense))

	sess := &database.Session{
		UserID: 1,
		ChatID: sql.NullInt64{Int64: 100, Valid: true},
		State:  "awaiting_confirmation",
	}
	require.NoError(t, store.SaveSession(ctx, sess))

	sess.State = "idle"
	sess.Context = "{}"
	between := database.StringList{"Alice", "Bob"}
	amounts := database.DecimalMap{
		"Alice": decimal.RequireFromString("30.00"),
		"Bob":   decimal.RequireFromString("30.00"),
	}
	roster := database.StringList{"Alice", "Bob"}
	require.NoError(t, store.ApplyExpenseSplit(ctx, expense.ID, "Alice", between, amounts, roster, sess))

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.PaidBy)
	assert.Equal(t, between, got.SplitBetween)
	assert.True(t, got.HasSplit())
	assert.True(t, got.SplitAmounts["Bob"].Equal(decimal.RequireFromString("30.00")))

	updatedTrip, err := store.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, roster, updatedTrip.Participants)

	gotSess, err := store.GetSession(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "idle", gotSess.State)
}

func TestApplyExpenseSplitMissingExpense(t *testing.T) {
	store, _ := newTestStore(t)

	amounts := database.DecimalMap{"Alice": decimal.RequireFromString("10.00")}
	err := store.ApplyExpenseSplit(context.Background(), 9999, "Alice",
		database.StringList{"Alice"}, amounts, nil, nil)
	assert.Error(t, err)
}

func TestInsertTravelEventIngestIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	event := &database.TravelEvent{
		TripID:       trip.ID,
		IngestID:     sql.NullString{String: "tg:100:7", Valid: true},
		EventType:    database.EventTypeFlight,
		FlightNumber: "AF123",
		DepartureTime: sql.NullTime{
			Time:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Valid: true,
		},
	}
	require.NoError(t, store.InsertTravelEvent(ctx, event))
	firstID := event.ID

	replay := &database.TravelEvent{
		TripID:    trip.ID,
		IngestID:  sql.NullString{String: "tg:100:7", Valid: true},
		EventType: database.EventTypeFlight,
	}
	require.NoError(t, store.InsertTravelEvent(ctx, replay))
	assert.Equal(t, firstID, replay.ID)
	assert.Equal(t, "AF123", replay.FlightNumber)

	events, err := store.ListTravelEvents(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestListTravelEventsOrderedByStart(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	hotel := &database.TravelEvent{
		TripID:    trip.ID,
		EventType: database.EventTypeHotel,
		HotelName: "Grand Hotel",
		CheckIn:   sql.NullTime{Time: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC), Valid: true},
	}
	flight := &database.TravelEvent{
		TripID:        trip.ID,
		EventType:     database.EventTypeFlight,
		FlightNumber:  "AF123",
		DepartureTime: sql.NullTime{Time: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), Valid: true},
	}
	undated := &database.TravelEvent{
		TripID:    trip.ID,
		EventType: database.EventTypeActivity,
	}
	require.NoError(t, store.InsertTravelEvent(ctx, hotel))
	require.NoError(t, store.InsertTravelEvent(ctx, flight))
	require.NoError(t, store.InsertTravelEvent(ctx, undated))

	events, err := store.ListTravelEvents(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, flight.ID, events[0].ID, "flight departs before hotel check-in")
	assert.Equal(t, hotel.ID, events[1].ID)
	assert.Equal(t, undated.ID, events[2].ID, "undated events sort last")
}

func TestItineraryRenumbering(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	mar12 := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	mar14 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	items := []*database.ItineraryItem{
		{Date: mar14, Time: "14:00", Title: "Louvre"},
		{Date: mar14, Title: "Dinner"},
		{Date: mar14, Time: "09:00", Title: "Breakfast"},
		{Date: mar12, Title: "Pack bags"},
	}
	require.NoError(t, store.InsertItineraryItems(ctx, trip.ID, items))

	// Without a start date, days are numbered densely in date order.
	stored, err := store.ListItinerary(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, "Pack bags", stored[0].Title)
	assert.Equal(t, 1, stored[0].DayOrder)
	assert.Equal(t, "Breakfast", stored[1].Title)
	assert.Equal(t, 2, stored[1].DayOrder)
	assert.Equal(t, 1, stored[1].TimeOrder)
	assert.Equal(t, "Louvre", stored[2].Title)
	assert.Equal(t, 2, stored[2].TimeOrder)
	assert.Equal(t, "Dinner", stored[3].Title, "untimed items sort after timed ones")
	assert.Equal(t, 3, stored[3].TimeOrder)

	// Setting a start date recomputes day numbers as calendar offsets; items
	// before the start keep day numbers at or below zero.
	require.NoError(t, store.SetTripStartDate(ctx, trip.ID, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)))

	stored, err = store.ListItinerary(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, "Pack bags", stored[0].Title)
	assert.Equal(t, 0, stored[0].DayOrder)
	assert.Equal(t, 2, stored[1].DayOrder)
	assert.Equal(t, "Breakfast", stored[1].Title)
}

func TestInsertItineraryItemsSkipsKnownIngest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")
	mar14 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	batch := []*database.ItineraryItem{
		{Date: mar14, Title: "Louvre", IngestID: sql.NullString{String: "tg:100:9/0", Valid: true}},
		{Date: mar14, Title: "Dinner", IngestID: sql.NullString{String: "tg:100:9/1", Valid: true}},
	}
	require.NoError(t, store.InsertItineraryItems(ctx, trip.ID, batch))
	require.NoError(t, store.InsertItineraryItems(ctx, trip.ID, []*database.ItineraryItem{
		{Date: mar14, Title: "Louvre again", IngestID: sql.NullString{String: "tg:100:9/0", Valid: true}},
	}))

	stored, err := store.ListItinerary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestUpsertPlaceMergesByExternalID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	place := &database.Place{
		TripID:     trip.ID,
		Name:       "Cafe de Flore",
		Category:   "restaurant",
		ExternalID: sql.NullString{String: "osm:123", Valid: true},
		Notes:      "try the hot chocolate",
		Visited:    true,
	}
	merged, err := store.UpsertPlace(ctx, place)
	require.NoError(t, err)
	assert.False(t, merged)
	require.NotZero(t, place.ID)

	// Enrichment with the same external id merges into the stored row and
	// keeps the user's notes and visited flag.
	enrichment := &database.Place{
		TripID:     trip.ID,
		Name:       "Café de Flore",
		ExternalID: sql.NullString{String: "osm:123", Valid: true},
		Address:    "172 Bd Saint-Germain",
		Rating:     sql.NullFloat64{Float64: 4.4, Valid: true},
	}
	merged, err = store.UpsertPlace(ctx, enrichment)
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, place.ID, enrichment.ID)
	assert.Equal(t, "Café de Flore", enrichment.Name)
	assert.Equal(t, "172 Bd Saint-Germain", enrichment.Address)
	assert.Equal(t, "restaurant", enrichment.Category)
	assert.Equal(t, "try the hot chocolate", enrichment.Notes)
	assert.True(t, enrichment.Visited)

	places, err := store.ListPlaces(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestGetPlaceByName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")
	other := seedTrip(t, store, 200, "Rome")

	place := &database.Place{TripID: trip.ID, Name: "Cafe de Flore"}
	_, err := store.UpsertPlace(ctx, place)
	require.NoError(t, err)
	_, err = store.UpsertPlace(ctx, &database.Place{TripID: other.ID, Name: "Cafe de Flore"})
	require.NoError(t, err)

	got, err := store.GetPlaceByName(ctx, trip.ID, "cafe DE flore")
	require.NoError(t, err)
	require.NotNil(t, got, "name match must be case-insensitive")
	assert.Equal(t, place.ID, got.ID)
	assert.Equal(t, trip.ID, got.TripID, "lookup must not cross trips")

	missing, err := store.GetPlaceByName(ctx, trip.ID, "Louvre")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetPlaceVisited(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")

	place := &database.Place{TripID: trip.ID, Name: "Louvre"}
	_, err := store.UpsertPlace(ctx, place)
	require.NoError(t, err)

	visitedOn := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetPlaceVisited(ctx, place.ID, visitedOn))

	places, err := store.ListPlaces(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.True(t, places[0].Visited)
	require.True(t, places[0].VisitedDate.Valid)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), places[0].VisitedDate.Time.UTC())

	assert.Error(t, store.SetPlaceVisited(ctx, 9999, visitedOn))
}

func TestBackfillChatScopes(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertLegacyTrip := func(userID int64, name string) {
		_, err := db.Exec(`
            INSERT INTO trips (user_id, name, status, created_at, updated_at, last_activity_at)
            VALUES (?, ?, 'active', ?, ?, ?)`,
			userID, name, now, now, now)
		require.NoError(t, err)
	}
	insertLegacyTrip(7, "Old Trip")
	insertLegacyTrip(8, "Older Trip")
	_, err := db.Exec(`
        INSERT INTO sessions (user_id, state, context, created_at, updated_at, last_activity_at)
        VALUES (7, 'idle', '{}', ?, ?, ?)`, now, now, now)
	require.NoError(t, err)

	// A row that already has a scope must never be touched.
	seedTrip(t, store, 100, "Scoped")

	updated, err := store.BackfillChatScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	// Legacy private rows now resolve by chat id = user id.
	trip, err := store.GetActiveTrip(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, trip)
	assert.Equal(t, "Old Trip", trip.Name)
	assert.Equal(t, "private", trip.ChatType.String)

	sess, err := store.GetSession(ctx, 7, 7)
	require.NoError(t, err)
	require.NotNil(t, sess)

	// Idempotent.
	updated, err = store.BackfillChatScopes(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestDeleteChatData(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	trip := seedTrip(t, store, 100, "Paris")
	other := seedTrip(t, store, 200, "Rome")

	expense := &database.Expense{
		TripID: trip.ID,
		Total:  decimal.RequireFromString("10.00"),
	}
	require.NoError(t, store.InsertExpense(ctx, expense))

	sess := &database.Session{
		UserID: 1,
		ChatID: sql.NullInt64{Int64: 100, Valid: true},
	}
	require.NoError(t, store.SaveSession(ctx, sess))

	deleted, err := store.DeleteChatData(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := store.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Records cascade with their trip.
	var expenseCount int
	require.NoError(t, db.Get(&expenseCount,
		`SELECT COUNT(*) FROM expenses WHERE trip_id = ?`, trip.ID))
	assert.Zero(t, expenseCount)

	goneSess, err := store.GetSession(ctx, 1, 100)
	require.NoError(t, err)
	assert.Nil(t, goneSess)

	// Other chats are untouched.
	kept, err := store.GetTrip(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}
