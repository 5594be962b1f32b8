package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/views"
)

func renderBalances(trip *database.Trip, balances []views.Balance, currency string) string {
	if len(balances) == 0 {
		return fmt.Sprintf("No split expenses on \"%s\" yet.", trip.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Balances for \"%s\":\n", trip.Name))
	for _, bal := range balances {
		switch {
		case bal.Net.IsPositive():
			sb.WriteString(fmt.Sprintf("%s is owed %s %s\n", bal.Name, bal.Net.StringFixed(2), currency))
		case bal.Net.IsNegative():
			sb.WriteString(fmt.Sprintf("%s owes %s %s\n", bal.Name, bal.Net.Neg().StringFixed(2), currency))
		default:
			sb.WriteString(fmt.Sprintf("%s is settled up\n", bal.Name))
		}
	}
	return sb.String()
}

func renderSettlements(trip *database.Trip, settlements []views.Settlement, currency string) string {
	if len(settlements) == 0 {
		return fmt.Sprintf("Everyone is settled up on \"%s\".", trip.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To settle \"%s\":\n", trip.Name))
	for _, s := range settlements {
		sb.WriteString(fmt.Sprintf("%s pays %s %s %s\n", s.From, s.To, s.Amount.StringFixed(2), currency))
	}
	return sb.String()
}

func renderItinerary(trip *database.Trip, days []views.Day) string {
	if len(days) == 0 {
		return fmt.Sprintf("No itinerary on \"%s\" yet. Send me an itinerary document or booking and I'll build one.", trip.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Itinerary for \"%s\":\n", trip.Name))
	for _, day := range days {
		if day.Number > 0 {
			sb.WriteString(fmt.Sprintf("\nDay %d (%s)\n", day.Number, day.Date.Format("Mon Jan 2")))
		} else {
			sb.WriteString(fmt.Sprintf("\nBefore the trip (%s)\n", day.Date.Format("Mon Jan 2")))
		}
		for _, item := range day.Items {
			if item.Time != "" {
				sb.WriteString(fmt.Sprintf("  %s  %s\n", item.Time, item.Title))
			} else {
				sb.WriteString(fmt.Sprintf("  -     %s\n", item.Title))
			}
		}
	}
	return sb.String()
}

func renderPlaces(trip *database.Trip, places []*database.Place) string {
	if len(places) == 0 {
		return fmt.Sprintf("No saved places on \"%s\" yet. Use /addplace <name> to save one.", trip.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Places for \"%s\":\n", trip.Name))
	for _, p := range places {
		sb.WriteString("- " + p.Name)
		if p.Category != "" && p.Category != "other" {
			sb.WriteString(" (" + p.Category + ")")
		}
		if p.Rating.Valid {
			sb.WriteString(fmt.Sprintf(" %.1f stars", p.Rating.Float64))
		}
		if p.Visited {
			sb.WriteString(" [visited]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderSummary(s views.Summary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Summary of \"%s\"", s.Trip.Name))
	if s.Trip.Location != "" {
		sb.WriteString(" (" + s.Trip.Location + ")")
	}
	sb.WriteString(":\n")

	if len(s.Trip.Participants) > 0 {
		sb.WriteString("Travelers: " + strings.Join(s.Trip.Participants, ", ") + "\n")
	}
	sb.WriteString(fmt.Sprintf("Expenses: %d", s.ExpenseCount))
	if len(s.Spend) > 0 {
		var parts []string
		for currency, total := range s.Spend {
			parts = append(parts, total.StringFixed(2)+" "+currency)
		}
		sort.Strings(parts)
		sb.WriteString(" totaling " + strings.Join(parts, ", "))
	}
	sb.WriteString("\n")
	if len(s.SpendByCat) > 0 {
		var parts []string
		for category, total := range s.SpendByCat {
			parts = append(parts, category+" "+total.StringFixed(2))
		}
		sort.Strings(parts)
		sb.WriteString("By category: " + strings.Join(parts, ", ") + "\n")
	}
	sb.WriteString(fmt.Sprintf("Flights: %d, hotel bookings: %d\n", s.FlightCount, s.HotelCount))
	sb.WriteString(fmt.Sprintf("Itinerary: %d day(s)\n", s.ItineraryDays))
	sb.WriteString(fmt.Sprintf("Places: %d saved, %d visited", s.PlaceCount, s.VisitedCount))
	if s.AvgRating.Valid {
		sb.WriteString(fmt.Sprintf(", avg rating %s", s.AvgRating.Decimal.StringFixed(1)))
	}
	sb.WriteString("\n")
	return sb.String()
}

// renderTripData flattens a trip's records into the plain-text context block
// handed to the AI for free-form questions.
func renderTripData(trip *database.Trip, expenses []*database.Expense, events []*database.TravelEvent, days []views.Day, places []*database.Place) string {
	var sb strings.Builder
	sb.WriteString("Trip: " + trip.Name)
	if trip.Location != "" {
		sb.WriteString(" in " + trip.Location)
	}
	sb.WriteString("\n")
	if len(trip.Participants) > 0 {
		sb.WriteString("Travelers: " + strings.Join(trip.Participants, ", ") + "\n")
	}

	if len(events) > 0 {
		sb.WriteString("\nBookings:\n")
		for _, e := range events {
			switch e.EventType {
			case database.EventTypeFlight:
				sb.WriteString(fmt.Sprintf("- Flight %s %s from %s to %s", e.Airline, e.FlightNumber, e.DepartureCity, e.ArrivalCity))
				if e.DepartureTime.Valid {
					sb.WriteString(" departing " + e.DepartureTime.Time.Format("2006-01-02 15:04"))
				}
				if e.Seat != "" {
					sb.WriteString(", seat " + e.Seat)
				}
				sb.WriteString("\n")
			case database.EventTypeHotel:
				sb.WriteString("- Hotel " + e.HotelName)
				if e.CheckIn.Valid && e.CheckOut.Valid {
					sb.WriteString(fmt.Sprintf(", %s to %s",
						e.CheckIn.Time.Format("2006-01-02"), e.CheckOut.Time.Format("2006-01-02")))
				}
				sb.WriteString("\n")
			}
		}
	}

	if len(expenses) > 0 {
		sb.WriteString("\nExpenses:\n")
		for _, e := range expenses {
			sb.WriteString(fmt.Sprintf("- %s: %s %s (%s)", e.Merchant, e.Total.StringFixed(2), e.Currency, e.Category))
			if e.PaidBy != "" {
				sb.WriteString(", paid by " + e.PaidBy)
			}
			sb.WriteString("\n")
		}
	}

	if len(days) > 0 {
		sb.WriteString("\nItinerary:\n")
		for _, day := range days {
			sb.WriteString(fmt.Sprintf("Day %d (%s):\n", day.Number, day.Date.Format("2006-01-02")))
			for _, item := range day.Items {
				if item.Time != "" {
					sb.WriteString(fmt.Sprintf("  %s %s\n", item.Time, item.Title))
				} else {
					sb.WriteString("  " + item.Title + "\n")
				}
			}
		}
	}

	if len(places) > 0 {
		sb.WriteString("\nSaved places:\n")
		for _, p := range places {
			sb.WriteString("- " + p.Name)
			if p.Category != "" {
				sb.WriteString(" (" + p.Category + ")")
			}
			if p.Visited {
				sb.WriteString(" [visited]")
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
