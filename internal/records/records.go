// Package records defines the candidate record types produced by document
// extraction and conversation, validates them, and attaches them to trips.
// A candidate is unvalidated input; only Attach turns it into a stored row.
package records

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
)

// Record kinds, used in error reporting and logging.
const (
	KindExpense   = "expense"
	KindFlight    = "flight"
	KindHotel     = "hotel"
	KindItinerary = "itinerary"
	KindPlace     = "place"
)

// ExpenseCandidate is a receipt extraction awaiting validation and attach.
type ExpenseCandidate struct {
	IngestID        string
	Merchant        string
	Location        string
	TransactionDate time.Time
	Category        string
	Subtotal        decimal.NullDecimal
	Tax             decimal.NullDecimal
	Tip             decimal.NullDecimal
	Total           decimal.Decimal
	Currency        string
	Items           []database.ExpenseItem
	Confidence      float64
	RawText         string
}

// Validate reports the required fields the candidate is missing.
func (c *ExpenseCandidate) Validate() error {
	var missing []string
	if c.Merchant == "" {
		missing = append(missing, "merchant")
	}
	if !c.Total.IsPositive() {
		missing = append(missing, "total")
	}
	if len(missing) > 0 {
		return &errs.IncompleteRecordError{Kind: KindExpense, Missing: missing}
	}
	return nil
}

// FlightCandidate is a flight ticket extraction awaiting validation.
type FlightCandidate struct {
	IngestID          string
	Airline           string
	FlightNumber      string
	DepartureCity     string
	DepartureAirport  string
	DepartureTime     time.Time
	DepartureTerminal string
	DepartureGate     string
	ArrivalCity       string
	ArrivalAirport    string
	ArrivalTime       time.Time
	Seat              string
	BookingReference  string
	Confidence        float64
	RawText           string
}

func (c *FlightCandidate) Validate() error {
	var missing []string
	if c.FlightNumber == "" {
		missing = append(missing, "flight_number")
	}
	if c.DepartureTime.IsZero() {
		missing = append(missing, "departure_time")
	}
	if c.DepartureCity == "" && c.DepartureAirport == "" {
		missing = append(missing, "departure")
	}
	if c.ArrivalCity == "" && c.ArrivalAirport == "" {
		missing = append(missing, "arrival")
	}
	if len(missing) > 0 {
		return &errs.IncompleteRecordError{Kind: KindFlight, Missing: missing}
	}
	return nil
}

// HotelCandidate is a hotel booking extraction awaiting validation.
type HotelCandidate struct {
	IngestID         string
	HotelName        string
	CheckIn          time.Time
	CheckOut         time.Time
	RoomType         string
	BookingReference string
	Confidence       float64
	RawText          string
}

func (c *HotelCandidate) Validate() error {
	var missing []string
	if c.HotelName == "" {
		missing = append(missing, "hotel_name")
	}
	if c.CheckIn.IsZero() {
		missing = append(missing, "check_in")
	}
	if c.CheckOut.IsZero() {
		missing = append(missing, "check_out")
	}
	if len(missing) > 0 {
		return &errs.IncompleteRecordError{Kind: KindHotel, Missing: missing}
	}
	return nil
}

// Nights returns the stay length in whole nights, or zero when the dates
// are incomplete or inverted.
func (c *HotelCandidate) Nights() int64 {
	if c.CheckIn.IsZero() || c.CheckOut.IsZero() {
		return 0
	}
	n := int64(c.CheckOut.Sub(c.CheckIn).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// ItineraryEntryCandidate is one extracted schedule entry.
type ItineraryEntryCandidate struct {
	Date     time.Time
	Time     string
	Title    string
	Category string
}

// ItineraryCandidate is a batch of schedule entries from one document.
type ItineraryCandidate struct {
	IngestID   string
	Entries    []ItineraryEntryCandidate
	Source     string
	Confidence float64
	RawText    string
}

func (c *ItineraryCandidate) Validate() error {
	if len(c.Entries) == 0 {
		return &errs.IncompleteRecordError{Kind: KindItinerary, Missing: []string{"entries"}}
	}
	var missing []string
	for _, entry := range c.Entries {
		if entry.Title == "" {
			missing = append(missing, "title")
			break
		}
	}
	for _, entry := range c.Entries {
		if entry.Date.IsZero() {
			missing = append(missing, "date")
			break
		}
	}
	if len(missing) > 0 {
		return &errs.IncompleteRecordError{Kind: KindItinerary, Missing: missing}
	}
	return nil
}

// PlaceCandidate is a point of interest to save or enrich.
type PlaceCandidate struct {
	Name       string
	Category   string
	ExternalID string
	Address    string
	Latitude   float64
	Longitude  float64
	Rating     float64
	HasCoords  bool
	HasRating  bool
	Notes      string
}

func (c *PlaceCandidate) Validate() error {
	if c.Name == "" {
		return &errs.IncompleteRecordError{Kind: KindPlace, Missing: []string{"name"}}
	}
	return nil
}
