package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wanderlog/wanderbot/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const minimalConfig = `
telegram:
  token: "123456:test-token"
  admin_user_id: 42
gemini:
  api_key: "test-key"
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Telegram.Token != "123456:test-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logger.Level)
	}
	if cfg.Database.Path != "storage.db" {
		t.Errorf("default db path = %q", cfg.Database.Path)
	}
	if cfg.Trips.SessionTimeout != 30*time.Minute {
		t.Errorf("default session timeout = %s", cfg.Trips.SessionTimeout)
	}
	if cfg.Trips.DefaultCurrency != "USD" {
		t.Errorf("default currency = %q", cfg.Trips.DefaultCurrency)
	}
	if cfg.Trips.SingleActive {
		t.Error("multi-trip mode should be the default")
	}

	task, ok := cfg.Scheduler.Tasks["sql_maintenance"]
	if !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("sql_maintenance task = %+v", task)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
logger:
  level: debug
  json: false
trips:
  single_active: true
  session_timeout: 2h
  default_currency: EUR
`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Logger.Level != "debug" || cfg.Logger.JSON {
		t.Errorf("logger = %+v", cfg.Logger)
	}
	if !cfg.Trips.SingleActive {
		t.Error("single_active override lost")
	}
	if cfg.Trips.SessionTimeout != 2*time.Hour {
		t.Errorf("session timeout = %s", cfg.Trips.SessionTimeout)
	}
	if cfg.Trips.DefaultCurrency != "EUR" {
		t.Errorf("currency = %q", cfg.Trips.DefaultCurrency)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	testCases := []struct {
		name     string
		contents string
	}{
		{
			name: "missing telegram token",
			contents: `
telegram:
  admin_user_id: 42
gemini:
  api_key: "test-key"
`,
		},
		{
			name: "missing gemini api key",
			contents: `
telegram:
  token: "123456:test-token"
  admin_user_id: 42
`,
		},
		{
			name: "bad log level",
			contents: minimalConfig + `
logger:
  level: loud
`,
		},
		{
			name: "session timeout too short",
			contents: minimalConfig + `
trips:
  session_timeout: 5s
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)
			if _, err := config.LoadConfig(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123456:env-token")
	t.Setenv("BOT_TELEGRAM_ADMIN_USER_ID", "42")
	t.Setenv("BOT_GEMINI_API_KEY", "env-key")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Telegram.Token != "123456:env-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.Gemini.APIKey)
	}
}
