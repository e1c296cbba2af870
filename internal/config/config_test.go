package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DETAILING_DB_PATH", "env.db")

	path := writeConfig(t, `
app:
  name: "detailing-test"
database:
  path: "${DETAILING_DB_PATH}"
schedule:
  working_days: [1, 2, 3]
  slots:
    - time: "09:00"
      label: "9:00 AM"
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        extra: "e1"
        name: "site"
        permissions: ["read:availability"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detailing-test", cfg.App.Name)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, []int{1, 2, 3}, cfg.Schedule.WorkingDays)
	require.Len(t, cfg.Schedule.Slots, 1)
	assert.Equal(t, "09:00", cfg.Schedule.Slots[0].Time)
	assert.True(t, cfg.API.HTTP.Enabled)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "site", cfg.API.Auth.APIKeys[0].Name)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "bookings.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detailing", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "x-api-extra", cfg.API.Auth.HeaderExtra)
	assert.Equal(t, []string{"*"}, cfg.API.CORS.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SlotTTL)
	assert.Equal(t, "Europe/London", cfg.Schedule.Timezone)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, cfg.Schedule.WorkingDays)
	assert.Len(t, cfg.Schedule.Slots, 5)
	assert.Equal(t, 90, cfg.Schedule.MaxAdvanceDays)
	assert.Equal(t, "@daily", cfg.Backup.Schedule)
	assert.Equal(t, "Bookings", cfg.Google.BookingsSheetName)
}

func TestLoadConfig_EmptyWorkingDaysKept(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "bookings.db"
schedule:
  working_days: []
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Schedule.WorkingDays)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		_, err := Load(writeConfig(t, "database: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("MissingDatabasePath", func(t *testing.T) {
		_, err := Load(writeConfig(t, "app:\n  name: x\n"))
		assert.ErrorContains(t, err, "database path is required")
	})
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "path"},
			Schedule: ScheduleConfig{
				Timezone:    "UTC",
				WorkingDays: []int{1, 2},
				Slots:       DefaultSlots(),
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "working day out of range", mutate: func(c *Config) { c.Schedule.WorkingDays = []int{7} }, wantErr: true},
		{name: "duplicate working day", mutate: func(c *Config) { c.Schedule.WorkingDays = []int{1, 1} }, wantErr: true},
		{name: "bad slot time", mutate: func(c *Config) { c.Schedule.Slots = []SlotConfig{{Time: "9:00"}} }, wantErr: true},
		{
			name: "duplicate slot time",
			mutate: func(c *Config) {
				c.Schedule.Slots = []SlotConfig{{Time: "10:00"}, {Time: "10:00"}}
			},
			wantErr: true,
		},
		{name: "unknown timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative rate limit", mutate: func(c *Config) { c.API.RateLimit.RPS = -1 }, wantErr: true},
		{
			name: "telegram without token",
			mutate: func(c *Config) {
				c.Notifications.Telegram = TelegramConfig{Enabled: true, ChatIDs: []int64{1}}
			},
			wantErr: true,
		},
		{
			name: "telegram without chats",
			mutate: func(c *Config) {
				c.Notifications.Telegram = TelegramConfig{Enabled: true, BotToken: "token"}
			},
			wantErr: true,
		},
		{
			name: "telegram agenda time",
			mutate: func(c *Config) {
				c.Notifications.Telegram = TelegramConfig{Enabled: true, BotToken: "token", ChatIDs: []int64{1}, AgendaTime: "07:30"}
			},
		},
		{
			name: "telegram bad agenda time",
			mutate: func(c *Config) {
				c.Notifications.Telegram = TelegramConfig{Enabled: true, BotToken: "token", ChatIDs: []int64{1}, AgendaTime: "half six"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
