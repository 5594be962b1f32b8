package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	sc, ok := resolveScope(update)
	if !ok {
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

	cancelled, err := h.deps.Sessions.Cancel(ctx, sess)
	if err != nil {
		log.ErrorContext(ctx, "Failed to cancel flow", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	if cancelled {
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.FlowCancelled)
	} else {
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NothingToCancel)
	}
}
