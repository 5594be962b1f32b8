package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/scope"
	"github.com/wanderlog/wanderbot/internal/views"
)

// activeTrip resolves the chat's current trip, replying with the no-trip
// message when there is none. The chat lock is taken because resolution may
// clear a stale pinned trip on the session.
func activeTrip(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, sc scope.ChatScope) (*database.Trip, bool) {
	deps.Sessions.Lock(sc.ChatID)
	defer deps.Sessions.Unlock(sc.ChatID)

	sess, err := deps.Sessions.Get(ctx, sc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load session", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, deps.Config.Messages.GeneralError)
		return nil, false
	}

	t, err := deps.Trips.Resolve(ctx, sc, sess)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve active trip", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, deps.Config.Messages.GeneralError)
		return nil, false
	}
	if t == nil {
		reply(ctx, b, log, sc.ChatID, deps.Config.Messages.NoActiveTrip)
		return nil, false
	}
	return t, true
}

// NewBalanceHandler returns a handler for the /balance command.
func NewBalanceHandler(deps HandlerDeps) bot.HandlerFunc {
	return balanceHandler{deps}.Handle
}

type balanceHandler struct {
	deps HandlerDeps
}

func (h balanceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "balance")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}
	t, ok := activeTrip(ctx, b, h.deps, log, sc)
	if !ok {
		return
	}

	expenses, err := h.deps.Store.ListExpenses(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list expenses", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	balances := views.ComputeBalances(expenses)
	reply(ctx, b, log, sc.ChatID, renderBalances(t, balances, h.deps.Config.Trips.DefaultCurrency))
}

// NewSettleHandler returns a handler for the /settle command.
func NewSettleHandler(deps HandlerDeps) bot.HandlerFunc {
	return settleHandler{deps}.Handle
}

type settleHandler struct {
	deps HandlerDeps
}

func (h settleHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "settle")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}
	t, ok := activeTrip(ctx, b, h.deps, log, sc)
	if !ok {
		return
	}

	expenses, err := h.deps.Store.ListExpenses(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list expenses", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	settlements := views.Settle(views.ComputeBalances(expenses))
	reply(ctx, b, log, sc.ChatID, renderSettlements(t, settlements, h.deps.Config.Trips.DefaultCurrency))
}

// NewItineraryHandler returns a handler for the /itinerary command.
func NewItineraryHandler(deps HandlerDeps) bot.HandlerFunc {
	return itineraryHandler{deps}.Handle
}

type itineraryHandler struct {
	deps HandlerDeps
}

func (h itineraryHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "itinerary")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}
	t, ok := activeTrip(ctx, b, h.deps, log, sc)
	if !ok {
		return
	}

	items, err := h.deps.Store.ListItinerary(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list itinerary", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, sc.ChatID, renderItinerary(t, views.GroupItinerary(items)))
}

// NewPlacesHandler returns a handler for the /places command.
func NewPlacesHandler(deps HandlerDeps) bot.HandlerFunc {
	return placesHandler{deps}.Handle
}

type placesHandler struct {
	deps HandlerDeps
}

func (h placesHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "places")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}
	t, ok := activeTrip(ctx, b, h.deps, log, sc)
	if !ok {
		return
	}

	places, err := h.deps.Store.ListPlaces(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list places", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, sc.ChatID, renderPlaces(t, places))
}

// NewSummaryHandler returns a handler for the /summary command.
func NewSummaryHandler(deps HandlerDeps) bot.HandlerFunc {
	return summaryHandler{deps}.Handle
}

type summaryHandler struct {
	deps HandlerDeps
}

func (h summaryHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "summary")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}
	t, ok := activeTrip(ctx, b, h.deps, log, sc)
	if !ok {
		return
	}

	expenses, err := h.deps.Store.ListExpenses(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list expenses", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	events, err := h.deps.Store.ListTravelEvents(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list travel events", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	items, err := h.deps.Store.ListItinerary(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list itinerary", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	places, err := h.deps.Store.ListPlaces(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list places", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, sc.ChatID, renderSummary(views.BuildSummary(t, expenses, events, items, places)))
}
