// Package tasks implements scheduled tasks for the WanderBot Telegram bot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"log/slog"

	"github.com/wanderlog/wanderbot/internal/config"
	"github.com/wanderlog/wanderbot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
