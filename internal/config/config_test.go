package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"avtomaster/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
telegram:
  bot_token: "123:abc"
database:
  path: "./data/bot.db"
bot:
  master_id: 999
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, int64(999), cfg.Bot.MasterID)

	// Значения по умолчанию
	assert.Equal(t, "Europe/Moscow", cfg.Shop.Timezone)
	assert.Equal(t, "10:00", cfg.Shop.OpenTime)
	assert.Equal(t, "19:00", cfg.Shop.CloseTime)
	assert.Equal(t, models.SlotStepMinutes, cfg.Shop.SlotStepMinutes)
	assert.Equal(t, []string{"sunday"}, cfg.Shop.DaysOff)
	assert.Equal(t, models.DefaultReminderLead, cfg.Bot.ReminderLeadMinutes)
	assert.Equal(t, 60, cfg.Bot.MaxBookingDays)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "env:token")
	t.Setenv("TEST_MASTER_ID", "777")

	cfg, err := Load(writeConfigFile(t, `
telegram:
  bot_token: "${TEST_BOT_TOKEN}"
database:
  path: "./data/bot.db"
bot:
  master_id: ${TEST_MASTER_ID}
`))
	require.NoError(t, err)
	assert.Equal(t, "env:token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(777), cfg.Bot.MasterID)
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: "bot token",
		},
		{
			name:    "placeholder token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "YOUR_BOT_TOKEN_HERE" },
			wantErr: "bot token",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database path",
		},
		{
			name:    "missing master id",
			mutate:  func(c *Config) { c.Bot.MasterID = 0 },
			wantErr: "master_id",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Shop.Timezone = "Mars/Olympus" },
			wantErr: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{BotToken: "123:abc"},
				Database: DatabaseConfig{Path: "./bot.db"},
				Bot:      BotConfig{MasterID: 999},
				Shop:     ShopConfig{Timezone: "Europe/Moscow"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAPIDefaultsOnlyWhenEnabled(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig+`
api:
  enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)

	cfg, err = Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)
	assert.Zero(t, cfg.API.Port)
	assert.False(t, cfg.API.Auth.Enabled)
}

func TestDaysOffWeekdays(t *testing.T) {
	shop := ShopConfig{DaysOff: []string{"sunday", "monday"}}
	days, err := shop.DaysOffWeekdays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Monday}, days)

	shop = ShopConfig{DaysOff: []string{"someday"}}
	_, err = shop.DaysOffWeekdays()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "someday")
}

func TestValidateServices(t *testing.T) {
	valid := []models.Service{
		{Name: "Замена масла", DurationMinutes: 30},
		{Name: "Диагностика", DurationMinutes: 60},
	}
	assert.NoError(t, ValidateServices(valid))

	assert.Error(t, ValidateServices([]models.Service{{Name: ""}}))
	assert.Error(t, ValidateServices([]models.Service{
		{Name: "Диагностика"}, {Name: "Диагностика"},
	}))
	assert.Error(t, ValidateServices([]models.Service{
		{Name: "Диагностика", DurationMinutes: -5},
	}))
}
