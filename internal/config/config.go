// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Restore  RestoreConfig
	Outbox   OutboxConfig
}

type AppConfig struct {
	Env  string
	Port string
}

// Development reports whether the console encoder should be used.
func (a AppConfig) Development() bool {
	return a.Env == "development"
}

type LoggerConfig struct {
	Level string
}

type PostgresConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type AuthConfig struct {
	JWTSecret string
	// Required rejects requests without a valid bearer token.
	// When false a valid token still sets the actor recorded on movements.
	Required bool
}

type RestoreConfig struct {
	BatchSize      int
	ErrorTolerance int
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Env:  getEnv("APP_ENV", "development"),
			Port: getEnv("APP_PORT", "8080"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Postgres: PostgresConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Required:  getEnvBool("AUTH_REQUIRED", false),
		},
		Restore: RestoreConfig{
			BatchSize:      getEnvInt("RESTORE_BATCH_SIZE", 500),
			ErrorTolerance: getEnvInt("RESTORE_ERROR_TOLERANCE", 10),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var missing []string
	if c.Postgres.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if c.Restore.BatchSize < 1 {
		return fmt.Errorf("RESTORE_BATCH_SIZE must be positive, got %d", c.Restore.BatchSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
