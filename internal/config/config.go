// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"enrollment"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN builds a libpq-compatible connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Config is the full service configuration.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	StoreDriver string   `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath  string   `env:"SQLITE_PATH" envDefault:"enrollment.db"`
	DB          DBConfig `envPrefix:"DB_"`

	RabbitURL      string   `env:"RABBITMQ_URL"`
	RabbitExchange string   `env:"RABBITMQ_EXCHANGE" envDefault:"enrollment"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC" envDefault:"enrollment-events"`

	NotifyBuffer  int           `env:"NOTIFY_BUFFER" envDefault:"256"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("NOTIFY_BUFFER must be positive, got %d", c.NotifyBuffer)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
