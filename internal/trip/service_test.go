package trip_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/scope"
	"github.com/wanderlog/wanderbot/internal/trip"
)

func newTestService(t *testing.T, singleActive bool) (*trip.Service, database.Store) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, nil)
	return trip.NewService(store, singleActive, nil), store
}

func newSession(t *testing.T, store database.Store, sc scope.ChatScope) *database.Session {
	t.Helper()

	sess := &database.Session{
		UserID:   sc.UserID,
		ChatID:   sql.NullInt64{Int64: sc.ChatID, Valid: true},
		ChatType: sql.NullString{String: string(sc.Kind), Valid: true},
	}
	if err := store.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return sess
}

func privateScope(userID int64) scope.ChatScope {
	return scope.ChatScope{UserID: userID, ChatID: userID, Kind: scope.KindPrivate}
}

func TestCreate(t *testing.T) {
	svc, store := newTestService(t, true)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	created, err := svc.Create(ctx, sc, sess, "  Paris  ", " France ", []string{"Alice", " alice ", "Bob", ""})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Name != "Paris" {
		t.Errorf("name = %q", created.Name)
	}
	if created.Location != "France" {
		t.Errorf("location = %q", created.Location)
	}
	if len(created.Participants) != 2 {
		t.Errorf("participants = %v", created.Participants)
	}
	if !sess.CurrentTripID.Valid || sess.CurrentTripID.Int64 != created.ID {
		t.Errorf("session not pointed at new trip: %+v", sess.CurrentTripID)
	}
}

func TestCreateRequiresName(t *testing.T) {
	svc, store := newTestService(t, true)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	_, err := svc.Create(ctx, sc, sess, "   ", "", nil)
	var incomplete *errs.IncompleteRecordError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteRecordError, got %v", err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != "name" {
		t.Errorf("missing = %v", incomplete.Missing)
	}
}

func TestCreateSingleActivePolicy(t *testing.T) {
	svc, store := newTestService(t, true)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	if _, err := svc.Create(ctx, sc, sess, "Paris", "", nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.Create(ctx, sc, sess, "Tokyo", "", nil)
	var dup *errs.DuplicateActiveTripError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateActiveTripError, got %v", err)
	}
	if dup.ExistingTrip != "Paris" {
		t.Errorf("existing trip = %q", dup.ExistingTrip)
	}
	if errs.Code(err) != errs.CodeDuplicateActiveTrip {
		t.Errorf("code = %s", errs.Code(err))
	}

	// Ending the active trip unblocks the next create.
	active, err := svc.Resolve(ctx, sc, sess)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := svc.End(ctx, active); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if _, err := svc.Create(ctx, sc, sess, "Tokyo", "", nil); err != nil {
		t.Fatalf("create after end failed: %v", err)
	}
}

func TestCreateMultiTripMode(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	if _, err := svc.Create(ctx, sc, sess, "Paris", "", nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(ctx, sc, sess, "Tokyo", "", nil); err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	trips, err := svc.List(ctx, sc)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(trips) != 2 {
		t.Errorf("got %d trips", len(trips))
	}
}

func TestSwitch(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	paris, err := svc.Create(ctx, sc, sess, "Paris", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, sc, sess, "Tokyo", "", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	switched, err := svc.Switch(ctx, sc, sess, "paris")
	if err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if switched.ID != paris.ID {
		t.Errorf("switched to trip %d, want %d", switched.ID, paris.ID)
	}
	if !sess.CurrentTripID.Valid || sess.CurrentTripID.Int64 != paris.ID {
		t.Errorf("session pin = %+v", sess.CurrentTripID)
	}

	_, err = svc.Switch(ctx, sc, sess, "Atlantis")
	if errs.Code(err) != errs.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestSwitchGroupRejected(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	groupScope := scope.ChatScope{UserID: 42, ChatID: -100123, Kind: scope.KindGroup}
	sess := newSession(t, store, groupScope)

	_, err := svc.Switch(ctx, groupScope, sess, "Paris")
	var scopeErr *errs.InvalidScopeError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("expected InvalidScopeError, got %v", err)
	}
}

func TestResolveClearsStalePin(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	paris, err := svc.Create(ctx, sc, sess, "Paris", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Pinned trip resolves while it stays active.
	resolved, err := svc.Resolve(ctx, sc, sess)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved == nil || resolved.ID != paris.ID {
		t.Fatalf("resolved %+v, want trip %d", resolved, paris.ID)
	}

	// Once the pinned trip ends, the pin is stale: resolution clears it and
	// falls back to the activity rule.
	if err := svc.End(ctx, paris); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	resolved, err = svc.Resolve(ctx, sc, sess)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved != nil {
		t.Errorf("resolved ended trip %+v", resolved)
	}
	if sess.CurrentTripID.Valid {
		t.Errorf("stale pin not cleared: %+v", sess.CurrentTripID)
	}

	stored, err := store.GetSession(ctx, sc.UserID, sc.ChatID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if stored.CurrentTripID.Valid {
		t.Errorf("stale pin still persisted: %+v", stored.CurrentTripID)
	}
}

func TestResolveGroupIgnoresPin(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	groupScope := scope.ChatScope{UserID: 42, ChatID: -100123, Kind: scope.KindGroup}
	sess := newSession(t, store, groupScope)

	first, err := svc.Create(ctx, groupScope, sess, "Paris", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(ctx, groupScope, sess, "Tokyo", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !sess.CurrentTripID.Valid || sess.CurrentTripID.Int64 != second.ID {
		t.Fatalf("session pin = %+v, want trip %d", sess.CurrentTripID, second.ID)
	}

	// The session points at Tokyo, but touching Paris makes it the most
	// recently active, and group chats follow activity, not pins.
	if err := svc.Touch(ctx, first.ID); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	resolved, err := svc.Resolve(ctx, groupScope, sess)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved == nil || resolved.ID != first.ID {
		t.Errorf("resolved %+v, want trip %d", resolved, first.ID)
	}
}

func TestEnsureStartDate(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	created, err := svc.Create(ctx, sc, sess, "Paris", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mar14 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	mar17 := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	items := []*database.ItineraryItem{
		{TripID: created.ID, Date: mar14, Title: "Arrival"},
		{TripID: created.ID, Date: mar17, Title: "Day trip"},
	}
	if err := store.InsertItineraryItems(ctx, created.ID, items); err != nil {
		t.Fatalf("insert itinerary failed: %v", err)
	}

	if err := svc.EnsureStartDate(ctx, created, mar14); err != nil {
		t.Fatalf("ensure start date failed: %v", err)
	}
	if !created.StartDate.Valid {
		t.Fatal("start date not reflected on the trip")
	}

	stored, err := store.GetTrip(ctx, created.ID)
	if err != nil {
		t.Fatalf("get trip failed: %v", err)
	}
	if !stored.StartDate.Valid || !stored.StartDate.Time.UTC().Equal(mar14) {
		t.Errorf("persisted start date = %+v, want %s", stored.StartDate, mar14.Format("2006-01-02"))
	}

	// Day numbering becomes calendar-relative instead of dense.
	listed, err := store.ListItinerary(ctx, created.ID)
	if err != nil {
		t.Fatalf("list itinerary failed: %v", err)
	}
	if len(listed) != 2 || listed[0].DayOrder != 1 || listed[1].DayOrder != 4 {
		t.Errorf("day orders = %+v, want 1 and 4", listed)
	}

	// A later candidate never moves an already-set start.
	if err := svc.EnsureStartDate(ctx, created, mar17); err != nil {
		t.Fatalf("ensure start date failed: %v", err)
	}
	stored, err = store.GetTrip(ctx, created.ID)
	if err != nil {
		t.Fatalf("get trip failed: %v", err)
	}
	if !stored.StartDate.Time.UTC().Equal(mar14) {
		t.Errorf("start date moved to %s", stored.StartDate.Time.Format("2006-01-02"))
	}
}

func TestAddParticipants(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	created, err := svc.Create(ctx, sc, sess, "Paris", "", []string{"Alice"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	roster, err := svc.AddParticipants(ctx, created, []string{"Bob", "ALICE", " Carol ", ""})
	if err != nil {
		t.Fatalf("add participants failed: %v", err)
	}
	want := database.StringList{"Alice", "Bob", "Carol"}
	if len(roster) != len(want) {
		t.Fatalf("roster = %v, want %v", roster, want)
	}
	for i := range want {
		if roster[i] != want[i] {
			t.Errorf("roster[%d] = %q, want %q", i, roster[i], want[i])
		}
	}

	// A second identical add is a no-op.
	again, err := svc.AddParticipants(ctx, created, []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("add participants failed: %v", err)
	}
	if len(again) != 3 {
		t.Errorf("roster grew to %v", again)
	}

	stored, err := store.GetTrip(ctx, created.ID)
	if err != nil {
		t.Fatalf("get trip failed: %v", err)
	}
	if len(stored.Participants) != 3 {
		t.Errorf("persisted roster = %v", stored.Participants)
	}
}

func TestResetChat(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()
	sc := privateScope(42)
	sess := newSession(t, store, sc)

	if _, err := svc.Create(ctx, sc, sess, "Paris", "", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, sc, sess, "Tokyo", "", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	deleted, err := svc.ResetChat(ctx, sc)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d trips, want 2", deleted)
	}

	trips, err := svc.List(ctx, sc)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(trips) != 0 {
		t.Errorf("trips remain: %v", trips)
	}
}
