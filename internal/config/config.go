// Package config loads the importer settings from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all importer settings, populated from environment variables.
type Config struct {
	DBDriver string
	DBDSN    string

	PortalURL         string
	PortalTimeout     time.Duration
	PortalMaxDuration time.Duration
	PortalUserAgent   string

	ImportWorkers int
	ImportAreas   []string
	Location      *time.Location

	LogLevel    string
	LogFormat   string
	MetricsAddr string

	// Cron specs for the schedule command; an empty spec disables the job.
	CronImportToday    string
	CronImportTomorrow string
	CronPrune          string
	CronDiscover       string

	TelegramBotToken    string
	TelegramAdminChatID int64
}

// Load reads a .env file when present, then the environment, applying
// defaults where unset. Variables already set in the environment win over
// the .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	portalTimeout, err := parseDuration("PORTAL_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	portalMaxDuration, err := parseDuration("PORTAL_MAX_DURATION", "120s")
	if err != nil {
		return nil, err
	}

	workers, err := strconv.Atoi(envOrDefault("IMPORT_WORKERS", "1"))
	if err != nil || workers < 1 {
		return nil, errors.New("invalid IMPORT_WORKERS")
	}

	tz := envOrDefault("TIMEZONE", "Asia/Tehran")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	var adminChatID int64
	if s := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); s != "" {
		adminChatID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.New("invalid TELEGRAM_ADMIN_CHAT_ID")
		}
	}

	cfg := &Config{
		DBDriver:            envOrDefault("DB_DRIVER", "sqlite3"),
		DBDSN:               os.Getenv("DB_DSN"),
		PortalURL:           envOrDefault("PORTAL_URL", "https://khamooshi.maztozi.ir/"),
		PortalTimeout:       portalTimeout,
		PortalMaxDuration:   portalMaxDuration,
		PortalUserAgent:     os.Getenv("PORTAL_USER_AGENT"),
		ImportWorkers:       workers,
		ImportAreas:         parseList(os.Getenv("IMPORT_AREAS")),
		Location:            loc,
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "json"),
		MetricsAddr:         envOrDefault("METRICS_ADDR", ":9090"),
		CronImportToday:     envOrDefault("CRON_IMPORT_TODAY", "0 */2 * * *"),
		CronImportTomorrow:  envOrDefault("CRON_IMPORT_TOMORROW", "30 20 * * *"),
		CronPrune:           envOrDefault("CRON_PRUNE", "5 0 * * *"),
		CronDiscover:        os.Getenv("CRON_DISCOVER"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAdminChatID: adminChatID,
	}

	switch cfg.DBDriver {
	case "sqlite3":
		if cfg.DBDSN == "" {
			cfg.DBDSN = "data/barghalarm.db"
		}
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.PortalMaxDuration < cfg.PortalTimeout {
		return nil, errors.New("PORTAL_MAX_DURATION must not be shorter than PORTAL_TIMEOUT")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID == 0 {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is set but TELEGRAM_ADMIN_CHAT_ID is not")
	}

	return cfg, nil
}

// AlertsEnabled reports whether operator alerts can be sent
func (c *Config) AlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAdminChatID != 0
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
