package config

import (
	"fmt"
	"time"

	redispkg "github.com/kwitt-bot/kwitt/pkg/redis"
)

// Config holds the full runtime configuration for the Kwitt bot.
type Config struct {
	AppEnv string `mapstructure:"-"`
	Debug  bool   `mapstructure:"debug"`

	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db" validate:"required"`
	Redis     redispkg.Config `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Settings  SettingsConfig  `mapstructure:"settings"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// Name is used in user-facing messages, e.g. "@KwittBot".
	Name    string        `mapstructure:"name"`
	Mode    string        `mapstructure:"mode" validate:"oneof=longpoll webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Workers is the number of concurrent update workers.
	Workers int `mapstructure:"workers" validate:"gte=1"`
}

// ServerConfig configures the metrics and health HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig configures the PostgreSQL connection.
type DBConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslmode,
	)
}

// LoggerConfig controls log level, format, and file rotation.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	// File enables rotated file output when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DSN         string `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string `mapstructure:"environment"`
}

// RateLimitRule is one limit over a sliding window.
type RateLimitRule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitConfig configures per-user update throttling.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// JobsConfig configures the background worker and scheduler.
type JobsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Concurrency   int    `mapstructure:"concurrency"`
	ReconcileCron string `mapstructure:"reconcile_cron"`
}

// SettingsConfig holds ledger policy flags. It is the hot-reloadable part of
// the configuration.
type SettingsConfig struct {
	// AllowSendToSelf permits transfers and requests where both parties are
	// the same user. Self-transfers net to zero in the balance.
	AllowSendToSelf bool `mapstructure:"allow_send_to_self"`
}
