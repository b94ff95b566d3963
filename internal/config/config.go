package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the matching core.
type Config struct {
	Port     int
	LogLevel string

	LogFile           string
	LogFileMaxMB      int
	LogFileMaxBackups int
	LogFileMaxAgeDays int

	CatalogFile string
	QueueSize   int
	BandPolicy  string

	ScheduleInterval time.Duration
	Timezone         *time.Location

	PruneEnabled   bool
	PruneInterval  time.Duration
	PruneRetention time.Duration
	PruneUsers     []string

	JournalDir    string
	KafkaBrokers  []string
	KafkaTopic    string
	NotifyURL     string
	NotifyTimeout time.Duration

	LogWorkerBatch int
	LogWorkerQueue int

	VWAPWindow   time.Duration
	TradeHistory int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Variables from the file named by ENV_FILE (default
// .env) are loaded first without overriding the real environment; a missing
// file is not an error.
func Load() (*Config, error) {
	envFile := getStr("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}
	var err error

	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	cfg.LogLevel = getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	cfg.LogFile = getStr("LOG_FILE", "")
	if cfg.LogFileMaxMB, err = getInt("LOG_FILE_MAX_MB", 100); err != nil {
		return nil, fmt.Errorf("invalid LOG_FILE_MAX_MB: %w", err)
	}
	if cfg.LogFileMaxBackups, err = getInt("LOG_FILE_MAX_BACKUPS", 5); err != nil {
		return nil, fmt.Errorf("invalid LOG_FILE_MAX_BACKUPS: %w", err)
	}
	if cfg.LogFileMaxAgeDays, err = getInt("LOG_FILE_MAX_AGE_DAYS", 28); err != nil {
		return nil, fmt.Errorf("invalid LOG_FILE_MAX_AGE_DAYS: %w", err)
	}

	cfg.CatalogFile = getStr("CATALOG_FILE", "catalog.yaml")

	if cfg.QueueSize, err = getInt("QUEUE_SIZE", 4096); err != nil {
		return nil, fmt.Errorf("invalid QUEUE_SIZE: %w", err)
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("invalid QUEUE_SIZE: %d, must be positive", cfg.QueueSize)
	}

	cfg.BandPolicy = getStr("BAND_POLICY", "hold")
	if cfg.BandPolicy != "hold" && cfg.BandPolicy != "reject" {
		return nil, fmt.Errorf("invalid BAND_POLICY: %q, must be one of: hold, reject", cfg.BandPolicy)
	}

	if cfg.ScheduleInterval, err = getDuration("SCHEDULE_INTERVAL", 1*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_INTERVAL: %w", err)
	}
	if cfg.Timezone, err = time.LoadLocation(getStr("TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.PruneEnabled, err = getBool("PRUNE_ENABLED", true); err != nil {
		return nil, fmt.Errorf("invalid PRUNE_ENABLED: %w", err)
	}
	if cfg.PruneInterval, err = getDuration("PRUNE_INTERVAL", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid PRUNE_INTERVAL: %w", err)
	}
	if cfg.PruneRetention, err = getDuration("PRUNE_RETENTION", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid PRUNE_RETENTION: %w", err)
	}
	cfg.PruneUsers = getList("PRUNE_USERS")

	cfg.JournalDir = getStr("JOURNAL_DIR", "")
	cfg.KafkaBrokers = getList("KAFKA_BROKERS")
	cfg.KafkaTopic = getStr("KAFKA_TOPIC", "matchcore.logs")
	cfg.NotifyURL = getStr("NOTIFY_URL", "")
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}

	if cfg.LogWorkerBatch, err = getInt("LOG_WORKER_BATCH", 50); err != nil {
		return nil, fmt.Errorf("invalid LOG_WORKER_BATCH: %w", err)
	}
	if cfg.LogWorkerQueue, err = getInt("LOG_WORKER_QUEUE", 1024); err != nil {
		return nil, fmt.Errorf("invalid LOG_WORKER_QUEUE: %w", err)
	}

	if cfg.VWAPWindow, err = getDuration("VWAP_WINDOW", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid VWAP_WINDOW: %w", err)
	}
	if cfg.TradeHistory, err = getInt("TRADE_HISTORY", 1000); err != nil {
		return nil, fmt.Errorf("invalid TRADE_HISTORY: %w", err)
	}

	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
