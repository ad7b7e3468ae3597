package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"avtomaster/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Shop       ShopConfig       `yaml:"shop"`
	Bot        BotConfig        `yaml:"bot"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// ShopConfig describes the single shop's calendar: working hours,
// non-working weekdays and the slot grid. One shop, one timezone.
type ShopConfig struct {
	Timezone        string   `yaml:"timezone"`
	OpenTime        string   `yaml:"open_time"`
	CloseTime       string   `yaml:"close_time"`
	SlotStepMinutes int      `yaml:"slot_step_minutes"`
	DaysOff         []string `yaml:"days_off"`
}

type BotConfig struct {
	MasterID            int64 `yaml:"master_id"`
	ReminderLeadMinutes int   `yaml:"reminder_lead_minutes"`
	SweepIntervalMin    int   `yaml:"sweep_interval_minutes"`
	MaxBookingDays      int   `yaml:"max_booking_days"`
	SlotsPerPage        int   `yaml:"slots_per_page"`
	PaginationSize      int   `yaml:"pagination_size"`
	RateLimitMessages   int   `yaml:"rate_limit_messages"`
	RateLimitWindow     int   `yaml:"rate_limit_window"`
}

func Load(configPath string) (*Config, error) {
	// .env перекрывает переменные окружения до подстановки в YAML
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Bot.MasterID == 0 {
		return errors.New("bot.master_id is required")
	}
	if _, err := time.LoadLocation(c.Shop.Timezone); err != nil {
		return fmt.Errorf("invalid shop timezone %q: %w", c.Shop.Timezone, err)
	}
	return nil
}

// DaysOffWeekdays maps the configured day names onto time.Weekday.
func (c *ShopConfig) DaysOffWeekdays() ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	var days []time.Weekday
	for _, name := range c.DaysOff {
		d, ok := names[name]
		if !ok {
			return nil, fmt.Errorf("unknown day off %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

// ValidateServices checks the services catalog for duplicates and holes.
func ValidateServices(services []models.Service) error {
	seen := make(map[string]bool)
	for _, svc := range services {
		if svc.Name == "" {
			return errors.New("service with empty name")
		}
		if seen[svc.Name] {
			return fmt.Errorf("duplicate service name: %s", svc.Name)
		}
		if svc.DurationMinutes < 0 {
			return fmt.Errorf("service %q has negative duration", svc.Name)
		}
		seen[svc.Name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Shop.Timezone == "" {
		c.Shop.Timezone = "Europe/Moscow"
	}
	if c.Shop.OpenTime == "" {
		c.Shop.OpenTime = "10:00"
	}
	if c.Shop.CloseTime == "" {
		c.Shop.CloseTime = "19:00"
	}
	if c.Shop.SlotStepMinutes == 0 {
		c.Shop.SlotStepMinutes = models.SlotStepMinutes
	}
	if c.Shop.DaysOff == nil {
		c.Shop.DaysOff = []string{"sunday"}
	}

	if c.Bot.ReminderLeadMinutes == 0 {
		c.Bot.ReminderLeadMinutes = models.DefaultReminderLead
	}
	if c.Bot.SweepIntervalMin == 0 {
		c.Bot.SweepIntervalMin = models.DefaultSweepIntervalMinutes
	}
	if c.Bot.MaxBookingDays == 0 {
		c.Bot.MaxBookingDays = 60
	}
	if c.Bot.SlotsPerPage == 0 {
		c.Bot.SlotsPerPage = models.SlotsPerPage
	}
	if c.Bot.PaginationSize == 0 {
		c.Bot.PaginationSize = models.DefaultPaginationSize
	}
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}

	if c.API.Enabled {
		if c.API.Port == 0 {
			c.API.Port = 8080
		}
		if !c.API.Auth.Enabled {
			c.API.Auth.Enabled = true
		}
		if c.API.Auth.HeaderAPIKey == "" {
			c.API.Auth.HeaderAPIKey = "x-api-key"
		}
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
