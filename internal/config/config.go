// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"followups/pkg/calendar"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config is the server and CLI configuration.
type Config struct {
	Port            string
	Store           string
	DatabaseURL     string
	SQLitePath      string
	RedisURL        string
	CacheTTL        time.Duration
	Calendar        calendar.Calendar
	ShutdownTimeout time.Duration
}

// Load reads Config from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Store:       getEnv("STORE", StorePostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "followups.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
		}
	case StoreSQLite, StoreMemory:
	default:
		return Config{}, fmt.Errorf("STORE must be one of %s, %s, %s; got %q", StorePostgres, StoreSQLite, StoreMemory, cfg.Store)
	}

	var err error
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Calendar, err = calendar.Load(getEnv("TASKS_TIMEZONE", "UTC")); err != nil {
		return Config{}, fmt.Errorf("TASKS_TIMEZONE: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", key, value)
	}
	return d, nil
}
