/*
Package config loads server configuration and builds the logger.

SOURCES (later wins):
  1. Defaults below
  2. .env file in the working directory, if present
  3. Process environment
  4. Command-line flags, applied by cmd/server

ENVIRONMENT:
  PORT                     HTTP port (default 8080)
  DB_PATH                  SQLite path, ":memory:" allowed (default payroll.db)
  LOG_LEVEL                debug | info | warn | error (default info)
  LOG_FILE                 rotate JSON logs into this file instead of stderr
  LOG_DEV                  human-readable console logs when "true"
  SCHEDULER_ENABLED        close finished weeks automatically (default false)
  SCHEDULER_INTERVAL       check interval, Go duration (default 1h)
  MARK_PAID_ON_AUTO_CLOSE  stamp receipts as paid when the scheduler closes a week
  CORS_ORIGINS             comma-separated allowed origins
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Port   int
	DBPath string

	LogLevel string
	LogFile  string
	LogDev   bool

	SchedulerEnabled    bool
	SchedulerInterval   time.Duration
	MarkPaidOnAutoClose bool
	CORSAllowedOrigins  []string
}

func Default() Config {
	return Config{
		Port:               8080,
		DBPath:             "payroll.db",
		LogLevel:           "info",
		SchedulerInterval:  time.Hour,
		CORSAllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads .env (a missing file is fine) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, so tests need not touch
// the process environment.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var err error

	if v := getenv("PORT"); v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("PORT: %w", err)
		}
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.LogFile = getenv("LOG_FILE")
	if cfg.LogDev, err = boolEnv(getenv, "LOG_DEV"); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerEnabled, err = boolEnv(getenv, "SCHEDULER_ENABLED"); err != nil {
		return Config{}, err
	}
	if v := getenv("SCHEDULER_INTERVAL"); v != "" {
		if cfg.SchedulerInterval, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("SCHEDULER_INTERVAL: %w", err)
		}
	}
	if cfg.MarkPaidOnAutoClose, err = boolEnv(getenv, "MARK_PAID_ON_AUTO_CLOSE"); err != nil {
		return Config{}, err
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.SchedulerEnabled && c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	return nil
}

func boolEnv(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// =============================================================================
// LOGGER
// =============================================================================

// NewLogger builds the process logger. With LogFile set, JSON lines go to a
// size-rotated file; otherwise to stderr.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if c.LogDev {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if c.LogFile != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}
