// Package config holds the application configuration, loaded from a YAML
// file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Provider ProviderConfig `mapstructure:"provider"`
	Batch    BatchConfig    `mapstructure:"batch"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds job/group store configuration. Driver selects the
// backing store: "postgres", "sqlite", or "memory".
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
	SQLitePath     string `mapstructure:"sqlite_path"`
}

// NATSConfig holds lifecycle event bus configuration.
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// ProviderConfig holds batch provider configuration. Mode "mock" runs the
// built-in fake provider; real provider integrations register their own mode.
type ProviderConfig struct {
	Mode string `mapstructure:"mode"`
}

// BatchConfig holds orchestration configuration.
type BatchConfig struct {
	MaxItemsPerSubmission int           `mapstructure:"max_items_per_submission"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	MaxConcurrentPolls    int           `mapstructure:"max_concurrent_polls"`
	AutoCollect           bool          `mapstructure:"auto_collect"`
}

// APIConfig holds inspection API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Addr returns the API listen address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Load unmarshals the viper state into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers default values on the viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "batchflow")
	v.SetDefault("database.name", "batchflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.sqlite_path", "batchflow.db")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("provider.mode", "mock")

	v.SetDefault("batch.max_items_per_submission", 30)
	v.SetDefault("batch.poll_interval", 30*time.Second)
	v.SetDefault("batch.max_concurrent_polls", 8)
	v.SetDefault("batch.auto_collect", true)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return errors.New("database.host is required for the postgres driver")
		}
		if c.Database.Name == "" {
			return errors.New("database.name is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if c.Batch.MaxItemsPerSubmission <= 0 {
		return errors.New("batch.max_items_per_submission must be positive")
	}
	if c.Batch.PollInterval <= 0 {
		return errors.New("batch.poll_interval must be positive")
	}
	return nil
}
