package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trip statuses.
const (
	TripStatusActive    = "active"
	TripStatusCompleted = "completed"
	TripStatusArchived  = "archived"
)

// Itinerary item sources.
const (
	ItinerarySourceManual   = "manual"
	ItinerarySourceDetected = "detected"
	ItinerarySourceExternal = "external"
)

// Travel event types.
const (
	EventTypeFlight   = "flight"
	EventTypeHotel    = "hotel"
	EventTypeActivity = "activity"
)

// StringList is a []string stored as a JSON TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l, "string list")
}

// DecimalMap is a map of participant name to amount, stored as JSON TEXT.
type DecimalMap map[string]decimal.Decimal

func (m DecimalMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decimal map: %w", err)
	}
	return string(b), nil
}

func (m *DecimalMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	return scanJSON(src, m, "decimal map")
}

// ExpenseItem is a single line item on a receipt.
type ExpenseItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// ExpenseItems is a []ExpenseItem stored as a JSON TEXT column.
type ExpenseItems []ExpenseItem

func (items ExpenseItems) Value() (driver.Value, error) {
	if items == nil {
		items = ExpenseItems{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal expense items: %w", err)
	}
	return string(b), nil
}

func (items *ExpenseItems) Scan(src any) error {
	return scanJSON(src, items, "expense items")
}

func scanJSON(src, dst any, what string) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		data = []byte("null")
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into %s", src, what)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return nil
}

// Trip is a named travel context owning all structured records in a chat.
// ChatID is nullable only for rows predating group-chat support; the startup
// backfill makes it mandatory afterwards.
type Trip struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID   int64          `db:"user_id"`
	ChatID   sql.NullInt64  `db:"chat_id"`
	ChatType sql.NullString `db:"chat_type"`

	Name         string       `db:"name"`
	Location     string       `db:"location"`
	Participants StringList   `db:"participants"`
	Status       string       `db:"status"`
	StartDate    sql.NullTime `db:"start_date"`
	EndDate      sql.NullTime `db:"end_date"`

	LastActivityAt time.Time `db:"last_activity_at"`
}

// HasParticipant reports whether name is already a participant,
// compared case-insensitively.
func (t *Trip) HasParticipant(name string) bool {
	for _, p := range t.Participants {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// Session is the transient per-scope conversational state. One row per
// (user_id, chat_id); ChatID nullable only for legacy rows.
type Session struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID   int64          `db:"user_id"`
	ChatID   sql.NullInt64  `db:"chat_id"`
	ChatType sql.NullString `db:"chat_type"`

	CurrentTripID sql.NullInt64 `db:"current_trip_id"`
	State         string        `db:"state"`
	Context       string        `db:"context"`

	LastActivityAt time.Time `db:"last_activity_at"`
}

// Expense is a trip-scoped expense record, typically extracted from a receipt.
type Expense struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TripID   int64          `db:"trip_id"`
	IngestID sql.NullString `db:"ingest_id"`

	Merchant        string              `db:"merchant"`
	Location        string              `db:"location"`
	TransactionDate sql.NullTime        `db:"transaction_date"`
	Category        string              `db:"category"`
	Subtotal        decimal.NullDecimal `db:"subtotal"`
	Tax             decimal.NullDecimal `db:"tax"`
	Tip             decimal.NullDecimal `db:"tip"`
	Total           decimal.Decimal     `db:"total"`
	Currency        string              `db:"currency"`
	Items           ExpenseItems        `db:"items"`

	PaidBy       string     `db:"paid_by"`
	SplitBetween StringList `db:"split_between"`
	SplitAmounts DecimalMap `db:"split_amounts"`

	ConfidenceScore sql.NullFloat64 `db:"confidence_score"`
	RawSource       string          `db:"raw_source"`
}

// HasSplit reports whether split information has been recorded.
func (e *Expense) HasSplit() bool {
	return e.PaidBy != "" && len(e.SplitAmounts) > 0
}

// TravelEvent is a trip-scoped flight, hotel, or activity booking.
type TravelEvent struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TripID   int64          `db:"trip_id"`
	IngestID sql.NullString `db:"ingest_id"`

	EventType string `db:"event_type"`

	Airline           string       `db:"airline"`
	FlightNumber      string       `db:"flight_number"`
	DepartureCity     string       `db:"departure_city"`
	DepartureAirport  string       `db:"departure_airport"`
	DepartureTime     sql.NullTime `db:"departure_time"`
	DepartureTerminal string       `db:"departure_terminal"`
	DepartureGate     string       `db:"departure_gate"`
	ArrivalCity       string       `db:"arrival_city"`
	ArrivalAirport    string       `db:"arrival_airport"`
	ArrivalTime       sql.NullTime `db:"arrival_time"`
	Seat              string       `db:"seat"`

	HotelName string        `db:"hotel_name"`
	CheckIn   sql.NullTime  `db:"check_in"`
	CheckOut  sql.NullTime  `db:"check_out"`
	Nights    sql.NullInt64 `db:"nights"`
	RoomType  string        `db:"room_type"`

	BookingReference string          `db:"booking_reference"`
	ConfidenceScore  sql.NullFloat64 `db:"confidence_score"`
	RawSource        string          `db:"raw_source"`
}

// ItineraryItem is one entry of a trip's day-ordered schedule.
type ItineraryItem struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TripID   int64          `db:"trip_id"`
	IngestID sql.NullString `db:"ingest_id"`

	Date     time.Time `db:"date"`
	Time     string    `db:"time"`
	Title    string    `db:"title"`
	Category string    `db:"category"`

	DayOrder  int    `db:"day_order"`
	TimeOrder int    `db:"time_order"`
	Source    string `db:"source"`
}

// Place is a trip-scoped point of interest, de-duplicated by external id.
type Place struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TripID int64 `db:"trip_id"`

	Name       string          `db:"name"`
	Category   string          `db:"category"`
	ExternalID sql.NullString  `db:"external_id"`
	Address    string          `db:"address"`
	Latitude   sql.NullFloat64 `db:"latitude"`
	Longitude  sql.NullFloat64 `db:"longitude"`
	Rating     sql.NullFloat64 `db:"rating"`

	Notes       string       `db:"notes"`
	Visited     bool         `db:"visited"`
	VisitedDate sql.NullTime `db:"visited_date"`
}
