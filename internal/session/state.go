// Package session manages the per-scope conversational state machine. Every
// (user, chat) pair has at most one session row; multi-step flows move it
// through awaiting states and always end back at idle.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is a session's position in a conversational flow.
type State string

// The closed set of session states. Anything read from storage outside this
// set is treated as idle.
const (
	StateIdle                  State = "idle"
	StateAwaitingTripName      State = "awaiting_trip_name"
	StateAwaitingLocation      State = "awaiting_location"
	StateAwaitingParticipants  State = "awaiting_participants"
	StateAwaitingSplitType     State = "awaiting_split_type"
	StateAwaitingConfirmation  State = "awaiting_confirmation"
	StateAwaitingPlaceCategory State = "awaiting_place_category"
	StateAwaitingItineraryOK   State = "awaiting_itinerary_confirmation"
)

// Flow names, recorded in FlowData so a stale context can be told apart from
// the flow a state belongs to.
const (
	FlowTripCreate       = "trip_create"
	FlowExpenseSplit     = "expense_split"
	FlowPlaceSave        = "place_save"
	FlowItineraryConfirm = "itinerary_confirm"
)

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingTripName, StateAwaitingLocation,
		StateAwaitingParticipants, StateAwaitingSplitType,
		StateAwaitingConfirmation, StateAwaitingPlaceCategory,
		StateAwaitingItineraryOK:
		return true
	}
	return false
}

// InFlow reports whether s is mid-flow (anything but idle).
func (s State) InFlow() bool { return s.Valid() && s != StateIdle }

// FlowOf returns the flow a state belongs to, or "" for idle.
func FlowOf(s State) string {
	switch s {
	case StateAwaitingTripName, StateAwaitingLocation, StateAwaitingParticipants:
		return FlowTripCreate
	case StateAwaitingSplitType, StateAwaitingConfirmation:
		return FlowExpenseSplit
	case StateAwaitingPlaceCategory:
		return FlowPlaceSave
	case StateAwaitingItineraryOK:
		return FlowItineraryConfirm
	}
	return ""
}

// PendingEntry is one itinerary entry held in flow context until the user
// confirms the batch.
type PendingEntry struct {
	Date     time.Time `json:"date"`
	Time     string    `json:"time,omitempty"`
	Title    string    `json:"title"`
	Category string    `json:"category,omitempty"`
}

// FlowData is the flow-scoped context persisted alongside the session state.
// Only the fields of the current flow are populated; everything else stays
// at its zero value and is dropped from the stored JSON.
type FlowData struct {
	Flow string `json:"flow,omitempty"`

	// trip creation
	TripName     string   `json:"trip_name,omitempty"`
	Location     string   `json:"location,omitempty"`
	Participants []string `json:"participants,omitempty"`

	// expense split
	ExpenseID  int64  `json:"expense_id,omitempty"`
	PaidBy     string `json:"paid_by,omitempty"`
	SplitInput string `json:"split_input,omitempty"`

	// place save
	PlaceName       string `json:"place_name,omitempty"`
	PlaceExternalID string `json:"place_external_id,omitempty"`

	// itinerary confirmation
	IngestID       string         `json:"ingest_id,omitempty"`
	PendingEntries []PendingEntry `json:"pending_entries,omitempty"`
}

// Encode serializes flow data for the session's context column.
func (d *FlowData) Encode() (string, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode flow data: %w", err)
	}
	return string(b), nil
}

// DecodeFlowData parses a session's context column. An empty or corrupt
// column decodes to empty flow data rather than failing the whole update.
func DecodeFlowData(raw string) *FlowData {
	var d FlowData
	if raw == "" {
		return &d
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return &FlowData{}
	}
	return &d
}
