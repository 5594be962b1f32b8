// Package config loads and validates the application configuration from
// config.yaml, BOT_* environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoggerConfig controls the slog setup.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds transport settings.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`
}

// MessagesConfig holds the canned replies the bot sends outside of generated
// content.
type MessagesConfig struct {
	Welcome         string `mapstructure:"welcome"`
	GeneralError    string `mapstructure:"general_error"`
	NotAuthorized   string `mapstructure:"not_authorized"`
	NoActiveTrip    string `mapstructure:"no_active_trip"`
	FlowCancelled   string `mapstructure:"flow_cancelled"`
	NothingToCancel string `mapstructure:"nothing_to_cancel"`
	ResetConfirm    string `mapstructure:"reset_confirm"`
}

// GeminiConfig holds settings for the AI-extraction collaborator.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key" validate:"required"`
	ModelName         string  `mapstructure:"model"`
	Temperature       float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TripsConfig is the policy surface consumed by the core engine.
type TripsConfig struct {
	// SingleActive rejects creating a second active trip per chat unless the
	// caller explicitly requests multi-trip mode.
	SingleActive bool `mapstructure:"single_active"`
	// SessionTimeout is the inactivity threshold after which an in-progress
	// conversation flow is lazily reset to idle.
	SessionTimeout time.Duration `mapstructure:"session_timeout" validate:"min=1m,max=168h"`
	// CurrencyPrecision is the number of decimal places used when rounding
	// split amounts.
	CurrencyPrecision int32  `mapstructure:"currency_precision" validate:"min=0,max=4"`
	DefaultCurrency   string `mapstructure:"default_currency" validate:"len=3"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// Config is the root application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Trips     TripsConfig     `mapstructure:"trips"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoadConfig reads configuration from the given YAML file (optional), layered
// over defaults and BOT_* environment variables, then validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	// Secrets default to empty so BOT_* env values are visible to Unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("gemini.api_key", "")

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("trips.single_active", false)
	v.SetDefault("trips.session_timeout", 30*time.Minute)
	v.SetDefault("trips.currency_precision", 2)
	v.SetDefault("trips.default_currency", "USD")

	v.SetDefault("messages.welcome", "Hi! Send me tickets, receipts or itineraries and I'll keep your trip organized. Use /newtrip to get started.")
	v.SetDefault("messages.general_error", "An error occurred. Please try again later.")
	v.SetDefault("messages.not_authorized", "You are not authorized to use this command.")
	v.SetDefault("messages.no_active_trip", "There's no active trip in this chat yet. Use /newtrip to create one.")
	v.SetDefault("messages.flow_cancelled", "Okay, cancelled. What's next?")
	v.SetDefault("messages.nothing_to_cancel", "Nothing to cancel right now.")
	v.SetDefault("messages.reset_confirm", "All trip data for this chat has been deleted.")

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 4 * * *")
}
