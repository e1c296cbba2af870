package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"detailing/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Cache         CacheConfig         `yaml:"cache"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Google        GoogleConfig        `yaml:"google"`
	Exports       ExportConfig        `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
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

type CacheConfig struct {
	SlotTTL time.Duration `yaml:"slot_ttl"`
}

// ScheduleConfig describes the working week and the fixed daily slots.
type ScheduleConfig struct {
	Timezone       string        `yaml:"timezone"`
	WorkingDays    []int         `yaml:"working_days"` // 0=Sunday..6=Saturday
	Slots          []SlotConfig  `yaml:"slots"`
	MaxAdvanceDays int           `yaml:"max_advance_days"`
	MinNotice      time.Duration `yaml:"min_notice"`
}

type SlotConfig struct {
	Time  string `yaml:"time"`
	Label string `yaml:"label"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      APICORSConfig      `yaml:"cors"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`

	// AgendaTime is when tomorrow's jobs are posted, HH:MM in the schedule timezone. Empty disables it.
	AgendaTime string `yaml:"agenda_time"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
	BookingsSheetName     string `yaml:"bookings_sheet_name"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; variables may come from the environment directly
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := ValidateSchedule(c.Schedule); err != nil {
		return err
	}

	if c.API.RateLimit.RPS < 0 || c.API.RateLimit.Burst < 0 {
		return errors.New("api rate limit must not be negative")
	}

	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required when notifications are enabled")
		}
		if len(c.Notifications.Telegram.ChatIDs) == 0 {
			return errors.New("telegram chat_ids are required when notifications are enabled")
		}
		if at := c.Notifications.Telegram.AgendaTime; at != "" {
			if _, err := time.Parse(models.TimeLayout, at); err != nil {
				return fmt.Errorf("telegram agenda_time %q must be HH:MM", at)
			}
		}
	}

	return nil
}

// ValidateSchedule checks working days and that slot times are well formed and unique.
func ValidateSchedule(s ScheduleConfig) error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", s.Timezone, err)
	}

	days := make(map[int]bool, len(s.WorkingDays))
	for _, d := range s.WorkingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("working day %d is out of range 0..6", d)
		}
		if days[d] {
			return fmt.Errorf("duplicate working day %d", d)
		}
		days[d] = true
	}

	times := make(map[string]bool, len(s.Slots))
	for _, slot := range s.Slots {
		parsed, err := time.Parse(models.TimeLayout, slot.Time)
		if err != nil || parsed.Format(models.TimeLayout) != slot.Time {
			return fmt.Errorf("slot time %q must be HH:MM", slot.Time)
		}
		if times[slot.Time] {
			return fmt.Errorf("duplicate slot time %s", slot.Time)
		}
		times[slot.Time] = true
	}

	if s.MaxAdvanceDays < 0 {
		return errors.New("max_advance_days must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "detailing"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"*"}
	}

	if c.Cache.SlotTTL == 0 {
		c.Cache.SlotTTL = models.DefaultSlotCacheTTL * time.Second
	}

	// Schedule defaults: Monday to Saturday, slots every two hours from 08:00
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = models.DefaultTimezone
	}
	if c.Schedule.WorkingDays == nil {
		c.Schedule.WorkingDays = []int{1, 2, 3, 4, 5, 6}
	}
	if len(c.Schedule.Slots) == 0 {
		c.Schedule.Slots = DefaultSlots()
	}
	if c.Schedule.MaxAdvanceDays == 0 {
		c.Schedule.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "@daily"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Google.BookingsSheetName == "" {
		c.Google.BookingsSheetName = "Bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

func DefaultSlots() []SlotConfig {
	return []SlotConfig{
		{Time: "08:00", Label: "8:00 AM"},
		{Time: "10:00", Label: "10:00 AM"},
		{Time: "12:00", Label: "12:00 PM"},
		{Time: "14:00", Label: "2:00 PM"},
		{Time: "16:00", Label: "4:00 PM"},
	}
}
