package session_test

import (
	"testing"
	"time"

	"github.com/wanderlog/wanderbot/internal/session"
)

func TestStateValid(t *testing.T) {
	t.Parallel()

	valid := []session.State{
		session.StateIdle,
		session.StateAwaitingTripName,
		session.StateAwaitingLocation,
		session.StateAwaitingParticipants,
		session.StateAwaitingSplitType,
		session.StateAwaitingConfirmation,
		session.StateAwaitingPlaceCategory,
		session.StateAwaitingItineraryOK,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}

	for _, s := range []session.State{"", "waiting", "AWAITING_TRIP_NAME"} {
		if s.Valid() {
			t.Errorf("%q should not be valid", s)
		}
	}
}

func TestStateInFlow(t *testing.T) {
	t.Parallel()

	if session.StateIdle.InFlow() {
		t.Error("idle is not a flow state")
	}
	if session.State("garbage").InFlow() {
		t.Error("invalid state is not a flow state")
	}
	if !session.StateAwaitingSplitType.InFlow() {
		t.Error("awaiting_split_type is a flow state")
	}
}

func TestFlowOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		state session.State
		flow  string
	}{
		{session.StateIdle, ""},
		{session.StateAwaitingTripName, session.FlowTripCreate},
		{session.StateAwaitingLocation, session.FlowTripCreate},
		{session.StateAwaitingParticipants, session.FlowTripCreate},
		{session.StateAwaitingSplitType, session.FlowExpenseSplit},
		{session.StateAwaitingConfirmation, session.FlowExpenseSplit},
		{session.StateAwaitingPlaceCategory, session.FlowPlaceSave},
		{session.StateAwaitingItineraryOK, session.FlowItineraryConfirm},
		{session.State("garbage"), ""},
	}
	for _, tc := range testCases {
		if got := session.FlowOf(tc.state); got != tc.flow {
			t.Errorf("FlowOf(%q) = %q, want %q", tc.state, got, tc.flow)
		}
	}
}

func TestFlowDataRoundTrip(t *testing.T) {
	t.Parallel()

	data := &session.FlowData{
		Flow:       session.FlowExpenseSplit,
		ExpenseID:  17,
		PaidBy:     "Alice",
		SplitInput: "even between Alice, Bob",
	}

	encoded, err := data.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded := session.DecodeFlowData(encoded)
	if decoded.Flow != data.Flow || decoded.ExpenseID != data.ExpenseID ||
		decoded.PaidBy != data.PaidBy || decoded.SplitInput != data.SplitInput {
		t.Errorf("round trip lost data: %+v", decoded)
	}
	if decoded.TripName != "" || len(decoded.PendingEntries) != 0 {
		t.Errorf("unrelated fields populated: %+v", decoded)
	}
}

func TestFlowDataPendingEntries(t *testing.T) {
	t.Parallel()

	data := &session.FlowData{
		Flow:     session.FlowItineraryConfirm,
		IngestID: "tg:100:7",
		PendingEntries: []session.PendingEntry{
			{Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), Time: "09:00", Title: "Louvre", Category: "museum"},
			{Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), Title: "Dinner"},
		},
	}

	encoded, err := data.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded := session.DecodeFlowData(encoded)
	if len(decoded.PendingEntries) != 2 {
		t.Fatalf("got %d pending entries", len(decoded.PendingEntries))
	}
	if decoded.PendingEntries[0].Title != "Louvre" || decoded.PendingEntries[0].Time != "09:00" {
		t.Errorf("first entry mangled: %+v", decoded.PendingEntries[0])
	}
	if !decoded.PendingEntries[1].Date.Equal(data.PendingEntries[1].Date) {
		t.Errorf("date mangled: %v", decoded.PendingEntries[1].Date)
	}
}

func TestDecodeFlowDataTolerant(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "{}", "not json", `{"flow": 12}`} {
		decoded := session.DecodeFlowData(raw)
		if decoded == nil {
			t.Fatalf("DecodeFlowData(%q) returned nil", raw)
		}
		if decoded.Flow != "" && raw != "{}" && raw != "" {
			t.Errorf("DecodeFlowData(%q) = %+v, want empty", raw, decoded)
		}
	}
}

func TestEncodeNilFlowData(t *testing.T) {
	t.Parallel()

	var data *session.FlowData
	encoded, err := data.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if encoded != "{}" {
		t.Errorf("nil flow data encodes to %q, want {}", encoded)
	}
}
