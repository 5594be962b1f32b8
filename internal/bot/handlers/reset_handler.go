package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewResetHandler returns a handler for the admin-only /reset command, which
// deletes every trip, record, and session in the chat.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}

	h.deps.Sessions.Lock(sc.ChatID)
	defer h.deps.Sessions.Unlock(sc.ChatID)

	deleted, err := h.deps.Trips.ResetChat(ctx, sc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to reset chat data", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Chat data reset", "scope", sc.String(), "trips_deleted", deleted)
	reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.ResetConfirm)
}
