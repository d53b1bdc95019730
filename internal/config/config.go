// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and FORSALE_ prefixed environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Reload watches the config file and applies logging changes live.
	Reload          bool          `mapstructure:"reload"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
}

type GameConfig struct {
	MinPlayers     int           `mapstructure:"min_players"`
	MaxPlayers     int           `mapstructure:"max_players"`
	StartingCoins  int           `mapstructure:"starting_coins"`
	ReconnectGrace time.Duration `mapstructure:"reconnect_grace"`
}

type TransportConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type DatabaseConfig struct {
	// DSN of the results archive. Empty disables archiving.
	DSN string `mapstructure:"dsn"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Game      GameConfig      `mapstructure:"game"`
	Transport TransportConfig `mapstructure:"transport"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// Validate reports every violation at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}

	if c.Game.MinPlayers < 1 {
		errs = append(errs, fmt.Errorf("game.min_players must be >= 1, got %d", c.Game.MinPlayers))
	}
	if c.Game.MaxPlayers < c.Game.MinPlayers {
		errs = append(errs, fmt.Errorf("game.max_players (%d) must not be below game.min_players (%d)", c.Game.MaxPlayers, c.Game.MinPlayers))
	}
	if c.Game.ReconnectGrace <= 0 {
		errs = append(errs, errors.New("game.reconnect_grace must be positive"))
	}

	if c.Transport.WriteWait <= 0 || c.Transport.PongWait <= 0 {
		errs = append(errs, errors.New("transport.write_wait and transport.pong_wait must be positive"))
	}
	if c.Transport.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("transport.max_message_size must be positive, got %d", c.Transport.MaxMessageSize))
	}
	if c.Transport.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("transport.send_buffer must be >= 1, got %d", c.Transport.SendBuffer))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// New builds a Viper instance with defaults and environment overrides. path
// and envFile are both optional; a missing envFile is not an error.
func New(path, envFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("FORSALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// PORT is what most hosting platforms inject.
	if err := v.BindEnv("server.port", "FORSALE_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("binding server.port: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

// Load is New followed by LoadFromViper.
func Load(path, envFile string) (Config, error) {
	v, err := New(path, envFile)
	if err != nil {
		return Config{}, err
	}
	return LoadFromViper(v)
}

func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch calls onChange with the reloaded configuration every time the config
// file changes. Invalid edits are passed to onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(Config), onError func(error)) {
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := LoadFromViper(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.reload", false)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "1m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.min_players", 3)
	v.SetDefault("game.max_players", 6)
	v.SetDefault("game.starting_coins", 18000)
	v.SetDefault("game.reconnect_grace", "60s")

	v.SetDefault("transport.write_wait", "10s")
	v.SetDefault("transport.pong_wait", "60s")
	v.SetDefault("transport.max_message_size", 4096)
	v.SetDefault("transport.send_buffer", 64)

	v.SetDefault("database.dsn", "")
}
