package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "data/barghalarm.db", cfg.DBDSN)
	assert.Equal(t, "https://khamooshi.maztozi.ir/", cfg.PortalURL)
	assert.Equal(t, 60*time.Second, cfg.PortalTimeout)
	assert.Equal(t, 120*time.Second, cfg.PortalMaxDuration)
	assert.Equal(t, 1, cfg.ImportWorkers)
	assert.Empty(t, cfg.ImportAreas)
	assert.Equal(t, "Asia/Tehran", cfg.Location.String())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "0 */2 * * *", cfg.CronImportToday)
	assert.Equal(t, "30 20 * * *", cfg.CronImportTomorrow)
	assert.Equal(t, "5 0 * * *", cfg.CronPrune)
	assert.Empty(t, cfg.CronDiscover)
	assert.False(t, cfg.AlertsEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/barghalarm?sslmode=disable")
	t.Setenv("PORTAL_URL", "http://portal.test/")
	t.Setenv("PORTAL_TIMEOUT", "10s")
	t.Setenv("PORTAL_MAX_DURATION", "30s")
	t.Setenv("PORTAL_USER_AGENT", "test-agent")
	t.Setenv("IMPORT_WORKERS", "4")
	t.Setenv("IMPORT_AREAS", " 3, 9,,12 ")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("CRON_DISCOVER", "0 6 * * *")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100200300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/barghalarm?sslmode=disable", cfg.DBDSN)
	assert.Equal(t, "http://portal.test/", cfg.PortalURL)
	assert.Equal(t, 10*time.Second, cfg.PortalTimeout)
	assert.Equal(t, 30*time.Second, cfg.PortalMaxDuration)
	assert.Equal(t, "test-agent", cfg.PortalUserAgent)
	assert.Equal(t, 4, cfg.ImportWorkers)
	assert.Equal(t, []string{"3", "9", "12"}, cfg.ImportAreas)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "0 6 * * *", cfg.CronDiscover)
	assert.Equal(t, int64(-100200300), cfg.TelegramAdminChatID)
	assert.True(t, cfg.AlertsEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}},
		{"bad timeout", map[string]string{"PORTAL_TIMEOUT": "soon"}},
		{"negative timeout", map[string]string{"PORTAL_TIMEOUT": "-1s"}},
		{"max below timeout", map[string]string{"PORTAL_TIMEOUT": "90s", "PORTAL_MAX_DURATION": "30s"}},
		{"zero workers", map[string]string{"IMPORT_WORKERS": "0"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad chat id", map[string]string{"TELEGRAM_ADMIN_CHAT_ID": "admins"}},
		{"token without chat", map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
