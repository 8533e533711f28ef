package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, 16, cfg.SubscriberQueueSize)
	assert.Equal(t, 5*time.Second, cfg.SubscriberWriteTimeout)
	assert.Equal(t, 500, cfg.MaxSubscribersPerRoom)
	assert.Equal(t, 20, cfg.MaxSubscribersPerIP)
	assert.Equal(t, 10000, cfg.MaxSubscribers)
	assert.Equal(t, 10, cfg.DatabaseMaxConns)
	assert.Equal(t, 1000, cfg.MaxMessageLength)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SUBSCRIBER_QUEUE_SIZE", "64")
	t.Setenv("SUBSCRIBER_WRITE_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 64, cfg.SubscriberQueueSize)
	assert.Equal(t, 2*time.Second, cfg.SubscriberWriteTimeout)
}

func TestLoad_StoreBackends(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_URL is required"},
		{"pebble without path", map[string]string{"STORE_BACKEND": "pebble"}, "PEBBLE_PATH is required"},
		{"pebble with path", map[string]string{"STORE_BACKEND": "pebble", "PEBBLE_PATH": "/tmp/roomqa"}, ""},
		{"memory needs nothing", map[string]string{"STORE_BACKEND": "memory"}, ""},
		{"unknown backend", map[string]string{"STORE_BACKEND": "sqlite"}, `STORE_BACKEND must be one of postgres, pebble, memory, got "sqlite"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero queue", "SUBSCRIBER_QUEUE_SIZE", "0"},
		{"zero write timeout", "SUBSCRIBER_WRITE_TIMEOUT", "0s"},
		{"zero subscribers", "MAX_SUBSCRIBERS_PER_ROOM", "0"},
		{"zero per-ip subscribers", "MAX_SUBSCRIBERS_PER_IP", "0"},
		{"zero total subscribers", "MAX_SUBSCRIBERS", "0"},
		{"zero database connections", "DATABASE_MAX_CONNS", "0"},
		{"zero message length", "MAX_MESSAGE_LENGTH", "0"},
		{"zero burst", "COMMAND_RATE_BURST", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
