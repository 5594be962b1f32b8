package views

import (
	"github.com/shopspring/decimal"

	"github.com/wanderlog/wanderbot/internal/database"
)

// Summary aggregates a trip's stored records into the numbers the summary
// view renders.
type Summary struct {
	Trip          *database.Trip
	ExpenseCount  int
	Spend         map[string]decimal.Decimal
	SpendByCat    map[string]decimal.Decimal
	FlightCount   int
	HotelCount    int
	ItineraryDays int
	PlaceCount    int
	VisitedCount  int
	AvgRating     decimal.NullDecimal
}

// BuildSummary computes a trip summary from its records.
func BuildSummary(trip *database.Trip, expenses []*database.Expense, events []*database.TravelEvent, items []*database.ItineraryItem, places []*database.Place) Summary {
	s := Summary{
		Trip:         trip,
		ExpenseCount: len(expenses),
		Spend:        TotalSpend(expenses),
		SpendByCat:   map[string]decimal.Decimal{},
		PlaceCount:   len(places),
	}
	for _, e := range expenses {
		s.SpendByCat[e.Category] = s.SpendByCat[e.Category].Add(e.Total)
	}
	for _, e := range events {
		switch e.EventType {
		case database.EventTypeFlight:
			s.FlightCount++
		case database.EventTypeHotel:
			s.HotelCount++
		}
	}
	s.ItineraryDays = len(GroupItinerary(items))

	ratingSum := decimal.Zero
	rated := 0
	for _, p := range places {
		if p.Visited {
			s.VisitedCount++
		}
		if p.Rating.Valid {
			ratingSum = ratingSum.Add(decimal.NewFromFloat(p.Rating.Float64))
			rated++
		}
	}
	if rated > 0 {
		s.AvgRating = decimal.NullDecimal{
			Decimal: ratingSum.DivRound(decimal.NewFromInt(int64(rated)), 1),
			Valid:   true,
		}
	}
	return s
}
