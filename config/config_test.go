package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/config"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "payroll.db", cfg.DBPath)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, time.Hour, cfg.SchedulerInterval)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(env(map[string]string{
		"PORT":                    "9090",
		"DB_PATH":                 ":memory:",
		"LOG_LEVEL":               "DEBUG",
		"LOG_DEV":                 "true",
		"SCHEDULER_ENABLED":       "1",
		"SCHEDULER_INTERVAL":      "15m",
		"MARK_PAID_ON_AUTO_CLOSE": "true",
		"CORS_ORIGINS":            "https://a.example, ,https://b.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogDev)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.True(t, cfg.MarkPaidOnAutoClose)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Rejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not a number", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "chatty"}},
		{"bad bool", map[string]string{"SCHEDULER_ENABLED": "sometimes"}},
		{"bad interval", map[string]string{"SCHEDULER_INTERVAL": "hourly"}},
		{"non-positive interval", map[string]string{"SCHEDULER_ENABLED": "true", "SCHEDULER_INTERVAL": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromEnv(env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger_WritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payroll.log")
	cfg := config.Default()
	cfg.LogFile = path

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	logger.Info("payroll settlement committed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"payroll settlement committed"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "loud"

	_, err := cfg.NewLogger()
	assert.Error(t, err)
}
