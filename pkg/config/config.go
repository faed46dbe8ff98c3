// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Entitlement engine configuration
	Entitlements EntitlementsConfig

	// Sweep configuration
	Sweep SweepConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// EntitlementsConfig holds entitlement resolver settings
type EntitlementsConfig struct {
	// CacheTTL bounds how stale a resolved role snapshot may be
	CacheTTL time.Duration
	// CacheSize caps the number of cached account snapshots
	CacheSize int
	// DefaultRole is resolved for accounts with no role pointer
	DefaultRole string
	// RoleSeedFile optionally overrides the built-in role seed (YAML)
	RoleSeedFile string
}

// SweepConfig holds background sweep settings
type SweepConfig struct {
	// BanSweepSchedule runs the temporary-ban expiry pass (cron spec)
	BanSweepSchedule string
	// CleanupSchedule runs the daily cleanup pass (cron spec)
	CleanupSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("EBUSTER_HOST", "0.0.0.0"),
			Port:            getEnv("EBUSTER_PORT", "8080"),
			ReadTimeout:     getEnvDuration("EBUSTER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("EBUSTER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("EBUSTER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("EBUSTER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: loadStorageConfig(),
		Entitlements: EntitlementsConfig{
			CacheTTL:     getEnvDuration("EBUSTER_ENTITLEMENT_CACHE_TTL", 5*time.Minute),
			CacheSize:    getEnvInt("EBUSTER_ENTITLEMENT_CACHE_SIZE", 10000),
			DefaultRole:  getEnv("EBUSTER_DEFAULT_ROLE", "free"),
			RoleSeedFile: getEnv("EBUSTER_ROLE_SEED_FILE", ""),
		},
		Sweep: SweepConfig{
			BanSweepSchedule: getEnv("EBUSTER_BAN_SWEEP_SCHEDULE", "*/5 * * * *"),
			CleanupSchedule:  getEnv("EBUSTER_CLEANUP_SCHEDULE", "30 3 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("EBUSTER_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("EBUSTER_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("EBUSTER_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("EBUSTER_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("EBUSTER_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("EBUSTER_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if redisURL := getEnv("EBUSTER_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("EBUSTER_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	cfg.RedisDB = getEnvInt("EBUSTER_REDIS_DB", cfg.RedisDB)

	return cfg
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("EBUSTER_POSTGRES_URL is required")
	}
	if c.Entitlements.CacheTTL <= 0 {
		return fmt.Errorf("entitlement cache TTL must be positive")
	}
	if c.Entitlements.CacheSize <= 0 {
		return fmt.Errorf("entitlement cache size must be positive")
	}
	if c.Entitlements.DefaultRole == "" {
		return fmt.Errorf("default role must not be empty")
	}
	return nil
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as a duration or a default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
