package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
)

// NewTripsHandler returns a handler for the /trips command.
func NewTripsHandler(deps HandlerDeps) bot.HandlerFunc {
	return tripsHandler{deps}.Handle
}

type tripsHandler struct {
	deps HandlerDeps
}

func (h tripsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "trips")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}

	trips, err := h.deps.Trips.List(ctx, sc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list trips", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(trips) == 0 {
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NoActiveTrip)
		return
	}

	var sb strings.Builder
	sb.WriteString("Trips in this chat:\n")
	for _, t := range trips {
		marker := " "
		if t.Status == database.TripStatusActive {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s %s", marker, t.Name))
		if t.Location != "" {
			sb.WriteString(" (" + t.Location + ")")
		}
		sb.WriteString(" [" + t.Status + "]\n")
	}
	if sc.IsPrivate() {
		sb.WriteString("\nUse /switchtrip <name> to switch.")
	}
	reply(ctx, b, log, sc.ChatID, sb.String())
}

// NewSwitchTripHandler returns a handler for the /switchtrip command.
func NewSwitchTripHandler(deps HandlerDeps) bot.HandlerFunc {
	return switchTripHandler{deps}.Handle
}

type switchTripHandler struct {
	deps HandlerDeps
}

func (h switchTripHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "switchtrip")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}

	name := commandArgs(update.Message.Text)
	if name == "" {
		reply(ctx, b, log, sc.ChatID, "Usage: /switchtrip <trip name>")
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

	t, err := h.deps.Trips.Switch(ctx, sc, sess, name)
	if err != nil {
		var scopeErr *errs.InvalidScopeError
		switch {
		case errors.As(err, &scopeErr):
			reply(ctx, b, log, sc.ChatID, "Group chats always follow the most recently active trip; switching is only available in direct chats.")
		case errs.Code(err) == errs.CodeNotFound:
			reply(ctx, b, log, sc.ChatID, fmt.Sprintf("I couldn't find a trip named %q here. /trips lists them.", name))
		default:
			log.ErrorContext(ctx, "Failed to switch trip", "error", err, "scope", sc.String())
			reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		}
		return
	}

	reply(ctx, b, log, sc.ChatID, fmt.Sprintf("Switched to \"%s\".", t.Name))
}

// NewEndTripHandler returns a handler for the /endtrip command.
func NewEndTripHandler(deps HandlerDeps) bot.HandlerFunc {
	return endTripHandler{deps}.Handle
}

type endTripHandler struct {
	deps HandlerDeps
}

func (h endTripHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "endtrip")

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

	if err := h.deps.Trips.End(ctx, t); err != nil {
		log.ErrorContext(ctx, "Failed to end trip", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, sc.ChatID, fmt.Sprintf("\"%s\" is done. Safe travels home! Use /summary for the recap.", t.Name))
}
