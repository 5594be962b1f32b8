package records_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/records"
)

func missingFields(t *testing.T, err error) []string {
	t.Helper()

	var incomplete *errs.IncompleteRecordError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteRecordError, got %v", err)
	}
	return incomplete.Missing
}

func TestExpenseCandidateValidate(t *testing.T) {
	t.Parallel()

	valid := records.ExpenseCandidate{
		Merchant: "Le Bistro",
		Total:    decimal.RequireFromString("48.50"),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	empty := records.ExpenseCandidate{}
	missing := missingFields(t, empty.Validate())
	if len(missing) != 2 {
		t.Errorf("missing = %v", missing)
	}

	zeroTotal := records.ExpenseCandidate{Merchant: "Le Bistro"}
	missing = missingFields(t, zeroTotal.Validate())
	if len(missing) != 1 || missing[0] != "total" {
		t.Errorf("missing = %v", missing)
	}
}

func TestFlightCandidateValidate(t *testing.T) {
	t.Parallel()

	departure := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	valid := records.FlightCandidate{
		FlightNumber:  "AF123",
		DepartureTime: departure,
		DepartureCity: "Paris",
		ArrivalCity:   "Tokyo",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Airport codes satisfy the endpoint requirement when cities are absent.
	codesOnly := records.FlightCandidate{
		FlightNumber:     "AF123",
		DepartureTime:    departure,
		DepartureAirport: "CDG",
		ArrivalAirport:   "HND",
	}
	if err := codesOnly.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	noEndpoints := records.FlightCandidate{
		FlightNumber:  "AF123",
		DepartureTime: departure,
	}
	missing := missingFields(t, noEndpoints.Validate())
	if len(missing) != 2 {
		t.Errorf("missing = %v", missing)
	}
}

func TestHotelCandidateValidateAndNights(t *testing.T) {
	t.Parallel()

	checkIn := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	valid := records.HotelCandidate{
		HotelName: "Grand Hotel",
		CheckIn:   checkIn,
		CheckOut:  checkIn.AddDate(0, 0, 3),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := valid.Nights(); got != 3 {
		t.Errorf("nights = %d, want 3", got)
	}

	inverted := records.HotelCandidate{
		HotelName: "Grand Hotel",
		CheckIn:   checkIn,
		CheckOut:  checkIn.AddDate(0, 0, -1),
	}
	if got := inverted.Nights(); got != 0 {
		t.Errorf("inverted stay nights = %d, want 0", got)
	}

	missing := missingFields(t, (&records.HotelCandidate{}).Validate())
	if len(missing) != 3 {
		t.Errorf("missing = %v", missing)
	}
}

func TestItineraryCandidateValidate(t *testing.T) {
	t.Parallel()

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	valid := records.ItineraryCandidate{
		Entries: []records.ItineraryEntryCandidate{
			{Date: date, Title: "Louvre"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	empty := records.ItineraryCandidate{}
	missing := missingFields(t, empty.Validate())
	if len(missing) != 1 || missing[0] != "entries" {
		t.Errorf("missing = %v", missing)
	}

	undated := records.ItineraryCandidate{
		Entries: []records.ItineraryEntryCandidate{{Title: "Louvre"}},
	}
	missing = missingFields(t, undated.Validate())
	if len(missing) != 1 || missing[0] != "date" {
		t.Errorf("missing = %v", missing)
	}
}

func TestPlaceCandidateValidate(t *testing.T) {
	t.Parallel()

	if err := (&records.PlaceCandidate{Name: "Louvre"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	missing := missingFields(t, (&records.PlaceCandidate{}).Validate())
	if len(missing) != 1 || missing[0] != "name" {
		t.Errorf("missing = %v", missing)
	}
}
