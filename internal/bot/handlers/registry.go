package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its pattern and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot
// commands with their handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(pattern string, handler tgbot.HandlerFunc, mw ...tgbot.Middleware) {
		handlers["/"+pattern] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     handler,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
		}
	}

	command("start", NewStartHandler(deps))
	command("newtrip", NewNewTripHandler(deps))
	command("trips", NewTripsHandler(deps))
	command("switchtrip", NewSwitchTripHandler(deps))
	command("endtrip", NewEndTripHandler(deps))
	command("balance", NewBalanceHandler(deps))
	command("settle", NewSettleHandler(deps))
	command("itinerary", NewItineraryHandler(deps))
	command("places", NewPlacesHandler(deps))
	command("addplace", NewAddPlaceHandler(deps))
	command("visited", NewVisitedHandler(deps))
	command("summary", NewSummaryHandler(deps))
	command("cancel", NewCancelHandler(deps))
	command("reset", NewResetHandler(deps), AdminOnly(deps))

	return handlers
}
