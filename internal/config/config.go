package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"edgeproof/internal/errors"
)

// Config represents the complete process configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	// PprofPort serves net/http/pprof when set
	PprofPort string
}

// DatabaseConfig holds the optional result store connection. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Enabled reports whether a database was configured
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// Cache backends
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// CacheConfig selects the Reality Check result cache
type CacheConfig struct {
	Backend    string
	BadgerPath string
	RedisAddr  string
	RedisDB    int
	TTL        time.Duration
}

// ValidationConfig points at the YAML engine configuration
type ValidationConfig struct {
	ConfigPath string
}

// LoggingConfig mirrors LOG_LEVEL and LOG_FORMAT
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads an optional .env file, then environment variables, and validates the result
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	config := &Config{
		Server:     loadServerConfig(),
		Database:   loadDatabaseConfig(),
		Cache:      loadCacheConfig(),
		Validation: ValidationConfig{ConfigPath: getEnvOrDefault("VALIDATION_CONFIG", "")},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		ReadTimeout:     getEnvDurationOrDefault("READ_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		PprofPort:       os.Getenv("PPROF_PORT"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:    strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheMemory)),
		BadgerPath: getEnvOrDefault("BADGER_PATH", "./data/cache"),
		RedisAddr:  getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:    getEnvIntOrDefault("REDIS_DB", 0),
		TTL:        getEnvDurationOrDefault("CACHE_TTL", 24*time.Hour),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	switch config.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheBadger:
		if config.Cache.BadgerPath == "" {
			return errors.ConfigInvalid("BADGER_PATH is required for the badger cache")
		}
	case CacheRedis:
		if config.Cache.RedisAddr == "" {
			return errors.ConfigInvalid("REDIS_ADDR is required for the redis cache")
		}
	default:
		return errors.ConfigInvalid("CACHE_BACKEND must be memory, badger, redis or none, got " + config.Cache.Backend)
	}
	if config.Cache.TTL < 0 {
		return errors.ConfigInvalid("CACHE_TTL must not be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
