package views

import (
	"time"

	"github.com/wanderlog/wanderbot/internal/database"
)

// Day is one day of the ordered itinerary view.
type Day struct {
	Number int
	Date   time.Time
	Items  []*database.ItineraryItem
}

// GroupItinerary folds a stored, already-ordered itinerary into days. Items
// arrive sorted by (day_order, time_order); the grouping preserves that
// order. Day numbers at or below zero come from entries dated before the
// trip's start date and are kept as-is so the renderer can flag them.
func GroupItinerary(items []*database.ItineraryItem) []Day {
	var days []Day
	for _, item := range items {
		if len(days) == 0 || days[len(days)-1].Number != item.DayOrder {
			days = append(days, Day{Number: item.DayOrder, Date: item.Date})
		}
		last := &days[len(days)-1]
		last.Items = append(last.Items, item)
	}
	return days
}
