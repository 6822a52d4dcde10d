// Package config provides configuration loading, validation, and live
// reload of policy flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := unmarshal(v, env)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.name", "@KwittBot")
	v.SetDefault("bot.mode", "longpoll")
	v.SetDefault("bot.timeout", "10s")
	v.SetDefault("bot.workers", 4)
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("jobs.concurrency", 5)
	v.SetDefault("jobs.reconcile_cron", "0 * * * *")
	v.SetDefault("settings.allow_send_to_self", false)
}

func unmarshal(v *viper.Viper, env string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Settings exposes the hot-reloadable policy flags behind an atomic pointer
// so concurrent update workers read a consistent snapshot.
type Settings struct {
	val atomic.Pointer[SettingsConfig]
}

// NewSettings seeds a Settings holder from the loaded config.
func NewSettings(initial SettingsConfig) *Settings {
	s := &Settings{}
	s.val.Store(&initial)
	return s
}

// AllowSendToSelf reports the current self-transfer policy.
func (s *Settings) AllowSendToSelf() bool {
	return s.val.Load().AllowSendToSelf
}

func (s *Settings) store(cfg SettingsConfig) {
	s.val.Store(&cfg)
}

// Watch re-reads the settings section whenever the config file changes on
// disk. Only the policy flags are hot-reloaded; everything else requires a
// restart.
func Watch(v *viper.Viper, env string, settings *Settings, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v, env)
		if err != nil {
			log.Error("config reload failed, keeping previous settings",
				slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		settings.store(cfg.Settings)
		log.Info("settings reloaded",
			slog.String("file", e.Name),
			slog.Bool("allow_send_to_self", cfg.Settings.AllowSendToSelf))
	})
	v.WatchConfig()
}
