package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Storefront StorefrontConfig
	Sheets     SheetsConfig
	Reporting  ReportingConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// StorefrontConfig contains credentials and options for the remote
// storefront cloud API.
type StorefrontConfig struct {
	BaseURL   string
	AccountID string
	Username  string
	Password  string
	Timeout   time.Duration
}

// SheetsConfig contains configuration required to interact with Google Sheets.
// Both fields empty disables sheet-backed reporting.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	ReportCronSchedule    string
	KeepaliveCronSchedule string
	Timezone              string
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	timeout, err := getenvSeconds("STOREFRONT_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Storefront: StorefrontConfig{
			BaseURL:   getenvWithDefault("STOREFRONT_BASE_URL", "https://alashcloud.kz"),
			AccountID: os.Getenv("STOREFRONT_ACCOUNT_ID"),
			Username:  os.Getenv("STOREFRONT_USERNAME"),
			Password:  os.Getenv("STOREFRONT_PASSWORD"),
			Timeout:   timeout,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_REPORT_ID"),
		},
		Reporting: ReportingConfig{
			ReportCronSchedule:    getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			KeepaliveCronSchedule: getenvWithDefault("KEEPALIVE_CRON_SCHEDULE", "*/15 * * * *"),
			Timezone:              getenvWithDefault("TIMEZONE", "Asia/Almaty"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.Storefront.BaseURL == "":
		return errors.New("STOREFRONT_BASE_URL must not be empty")
	case c.Storefront.AccountID == "":
		return errors.New("STOREFRONT_ACCOUNT_ID must be provided")
	case c.Storefront.Username == "":
		return errors.New("STOREFRONT_USERNAME must be provided")
	case c.Storefront.Password == "":
		return errors.New("STOREFRONT_PASSWORD must be provided")
	}

	if c.Storefront.Timeout <= 0 {
		return errors.New("STOREFRONT_TIMEOUT_SECONDS must be positive")
	}

	// Sheets reporting is optional, but half a configuration is a mistake.
	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_REPORT_ID must be set together")
	}

	if c.Reporting.ReportCronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.KeepaliveCronSchedule == "" {
		return errors.New("KEEPALIVE_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

// SheetsEnabled reports whether sheet-backed reporting is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvSeconds(key string, fallback int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback) * time.Second, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", key, err)
	}
	return time.Duration(seconds) * time.Second, nil
}
