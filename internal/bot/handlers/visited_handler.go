package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewVisitedHandler returns a handler for the /visited command, which checks
// a saved place off as visited.
func NewVisitedHandler(deps HandlerDeps) bot.HandlerFunc {
	return visitedHandler{deps}.Handle
}

type visitedHandler struct {
	deps HandlerDeps
}

func (h visitedHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "visited")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}

	name := commandArgs(update.Message.Text)
	if name == "" {
		reply(ctx, b, log, sc.ChatID, "Usage: /visited <place name>")
		return
	}

	h.deps.Sessions.Lock(sc.ChatID)
	defer h.deps.Sessions.Unlock(sc.ChatID)

	sess, err := h.deps.Sessions.Get(ctx, sc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load session", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	t, err := h.deps.Trips.Resolve(ctx, sc, sess)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve active trip", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if t == nil {
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NoActiveTrip)
		return
	}

	place, err := h.deps.Store.GetPlaceByName(ctx, t.ID, name)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up place", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if place == nil {
		reply(ctx, b, log, sc.ChatID,
			fmt.Sprintf("No place called \"%s\" on \"%s\". /places shows the list.", name, t.Name))
		return
	}

	if err := h.deps.Store.SetPlaceVisited(ctx, place.ID, time.Now()); err != nil {
		log.ErrorContext(ctx, "Failed to mark place visited", "error", err, "place_id", place.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if err := h.deps.Trips.Touch(ctx, t.ID); err != nil {
		log.ErrorContext(ctx, "Failed to touch trip", "error", err, "trip_id", t.ID)
	}

	reply(ctx, b, log, sc.ChatID, fmt.Sprintf("Checked off \"%s\" as visited.", place.Name))
}
