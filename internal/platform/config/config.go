package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StorePostgres = "postgres"
	StorePebble   = "pebble"
	StoreMemory   = "memory"
)

type Config struct {
	AppEnv           string `env:"APP_ENV" default:"development"`
	Port             string `env:"PORT" default:"8080"`
	AppURL           string `env:"APP_URL" default:"http://localhost:8080"`
	StoreBackend     string `env:"STORE_BACKEND" default:"postgres"`
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int    `env:"DATABASE_MAX_CONNS" default:"10"`
	PebblePath       string `env:"PEBBLE_PATH"`
	RedisURL         string `env:"REDIS_URL"`
	LogLevel         string `env:"LOG_LEVEL" default:"info"`
	LogFormat        string `env:"LOG_FORMAT" default:"text"`

	SubscriberQueueSize    int           `env:"SUBSCRIBER_QUEUE_SIZE" default:"16"`
	SubscriberWriteTimeout time.Duration `env:"SUBSCRIBER_WRITE_TIMEOUT" default:"5s"`
	MaxSubscribersPerRoom  int           `env:"MAX_SUBSCRIBERS_PER_ROOM" default:"500"`
	MaxSubscribersPerIP    int           `env:"MAX_SUBSCRIBERS_PER_IP" default:"20"`
	MaxSubscribers         int           `env:"MAX_SUBSCRIBERS" default:"10000"`
	MaxMessageLength       int           `env:"MAX_MESSAGE_LENGTH" default:"1000"`

	CommandRateLimit float64 `env:"COMMAND_RATE_LIMIT" default:"10"`
	CommandRateBurst int     `env:"COMMAND_RATE_BURST" default:"20"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		if cfg.DatabaseMaxConns < 1 {
			return errors.New("DATABASE_MAX_CONNS must be at least 1")
		}
	case StorePebble:
		if cfg.PebblePath == "" {
			return errors.New("PEBBLE_PATH is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, pebble, memory, got %q", cfg.StoreBackend)
	}

	if cfg.SubscriberQueueSize < 1 {
		return errors.New("SUBSCRIBER_QUEUE_SIZE must be at least 1")
	}
	if cfg.SubscriberWriteTimeout <= 0 {
		return errors.New("SUBSCRIBER_WRITE_TIMEOUT must be positive")
	}
	if cfg.MaxSubscribersPerRoom < 1 {
		return errors.New("MAX_SUBSCRIBERS_PER_ROOM must be at least 1")
	}
	if cfg.MaxSubscribersPerIP < 1 || cfg.MaxSubscribers < 1 {
		return errors.New("MAX_SUBSCRIBERS and MAX_SUBSCRIBERS_PER_IP must be at least 1")
	}
	if cfg.MaxMessageLength < 1 {
		return errors.New("MAX_MESSAGE_LENGTH must be at least 1")
	}
	if cfg.CommandRateLimit <= 0 || cfg.CommandRateBurst < 1 {
		return errors.New("COMMAND_RATE_LIMIT and COMMAND_RATE_BURST must be positive")
	}

	return nil
}
