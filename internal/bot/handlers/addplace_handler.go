package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/session"
)

// NewAddPlaceHandler returns a handler for the /addplace command, which
// starts the save-a-place flow.
func NewAddPlaceHandler(deps HandlerDeps) bot.HandlerFunc {
	return addPlaceHandler{deps}.Handle
}

type addPlaceHandler struct {
	deps HandlerDeps
}

func (h addPlaceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "addplace")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}

	name := commandArgs(update.Message.Text)
	if name == "" {
		reply(ctx, b, log, sc.ChatID, "Usage: /addplace <place name>")
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

	err = h.deps.Sessions.StartFlow(ctx, sess, session.StateAwaitingPlaceCategory,
		&session.FlowData{Flow: session.FlowPlaceSave, PlaceName: name})
	if err != nil {
		var flowErr *errs.ConflictingFlowError
		if errors.As(err, &flowErr) {
			reply(ctx, b, log, sc.ChatID, flowErr.Error())
			return
		}
		log.ErrorContext(ctx, "Failed to start place flow", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, sc.ChatID,
		fmt.Sprintf("What kind of place is \"%s\"? (restaurant, sight, museum, bar, shop, nature, other)", name))
}
