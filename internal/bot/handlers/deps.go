package handlers

import (
	"log/slog"

	"github.com/wanderlog/wanderbot/internal/config"
	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/gemini"
	"github.com/wanderlog/wanderbot/internal/records"
	"github.com/wanderlog/wanderbot/internal/session"
	"github.com/wanderlog/wanderbot/internal/trip"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        database.Store
	Sessions     *session.Manager
	Trips        *trip.Service
	Attacher     *records.Attacher
	GeminiClient gemini.Client
}
