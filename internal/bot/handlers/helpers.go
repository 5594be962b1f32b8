package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/wanderlog/wanderbot/internal/scope"
)

// resolveScope extracts the chat scope from a message update.
func resolveScope(update *models.Update) (scope.ChatScope, bool) {
	if update.Message == nil || update.Message.From == nil {
		return scope.ChatScope{}, false
	}
	sc, err := scope.Resolve(update.Message.From.ID, update.Message.Chat.ID, string(update.Message.Chat.Type))
	if err != nil {
		return scope.ChatScope{}, false
	}
	return sc, true
}

// senderName returns the display name used for the sender in rosters and
// splits. Falls back to the username when the first name is empty.
func senderName(update *models.Update) string {
	from := update.Message.From
	if from.FirstName != "" {
		return from.FirstName
	}
	if from.Username != "" {
		return from.Username
	}
	return "Someone"
}

// reply sends a plain text message, logging failures instead of surfacing
// them to the update loop.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// commandArgs returns everything after the command itself, trimmed.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// splitNames parses a comma-separated name list.
func splitNames(input string) []string {
	var names []string
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}
