package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/wanderlog/wanderbot/internal/session"
)

// NewNewTripHandler returns a handler for the /newtrip command. An explicit
// /newtrip preempts whatever flow is in progress.
func NewNewTripHandler(deps HandlerDeps) bot.HandlerFunc {
	return newTripHandler{deps}.Handle
}

type newTripHandler struct {
	deps HandlerDeps
}

func (h newTripHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "newtrip")

	sc, ok := resolveScope(update)
	if !ok {
		log.WarnContext(ctx, "Could not resolve chat scope", "update_id", update.ID)
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

	if cancelled, err := h.deps.Sessions.Cancel(ctx, sess); err != nil {
		log.ErrorContext(ctx, "Failed to cancel prior flow", "error", err)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	} else if cancelled {
		log.InfoContext(ctx, "Preempted in-progress flow for /newtrip", "scope", sc.String())
	}

	name := commandArgs(update.Message.Text)
	if name == "" {
		err = h.deps.Sessions.Transition(ctx, sess, session.StateAwaitingTripName,
			&session.FlowData{Flow: session.FlowTripCreate})
		if err != nil {
			log.ErrorContext(ctx, "Failed to start trip creation flow", "error", err)
			reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
			return
		}
		reply(ctx, b, log, sc.ChatID, "What should we call this trip?")
		return
	}

	err = h.deps.Sessions.Transition(ctx, sess, session.StateAwaitingLocation,
		&session.FlowData{Flow: session.FlowTripCreate, TripName: name})
	if err != nil {
		log.ErrorContext(ctx, "Failed to start trip creation flow", "error", err)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	reply(ctx, b, log, sc.ChatID, "Where is \""+name+"\" headed? (or say \"skip\")")
}
