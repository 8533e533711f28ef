package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/roomqa/internal/adapter/eventpublisher"
	"github.com/pscheid92/roomqa/internal/adapter/httpserver"
	"github.com/pscheid92/roomqa/internal/adapter/memory"
	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	"github.com/pscheid92/roomqa/internal/adapter/pebble"
	"github.com/pscheid92/roomqa/internal/adapter/postgres"
	"github.com/pscheid92/roomqa/internal/adapter/redis"
	"github.com/pscheid92/roomqa/internal/app"
	"github.com/pscheid92/roomqa/internal/broadcast"
	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/platform/config"
	"github.com/pscheid92/roomqa/internal/platform/logging"
	"github.com/pscheid92/roomqa/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

func runGracefulShutdown(srv *httpserver.Server, broadcaster *broadcast.Broadcaster, stopRelay func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Subscribers block their handlers, so they are closed before the server drains.
		broadcaster.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopRelay()
		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config, reg prometheus.Registerer) domain.Store {
	switch cfg.StoreBackend {
	case config.StorePebble:
		store, err := pebble.Open(cfg.PebblePath)
		if err != nil {
			slog.Error("Failed to open pebble store", "path", cfg.PebblePath, "error", err)
			os.Exit(1)
		}
		slog.Info("Using pebble store", "path", cfg.PebblePath)
		return store

	case config.StoreMemory:
		slog.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore()

	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := postgres.Open(ctx, postgres.Options{
			DatabaseURL: cfg.DatabaseURL,
			MaxConns:    int32(cfg.DatabaseMaxConns),
			Tracer:      postgres.NewMetricsTracer(metrics.NewStoreMetrics(reg)),
		})
		if err != nil {
			slog.Error("Failed to open postgres store", "error", err)
			os.Exit(1)
		}
		return store
	}
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String(), "store", cfg.StoreBackend)

	reg := metrics.NewRegistry()

	store := setupStore(cfg, reg)
	defer func() { _ = store.Close() }()

	broadcaster := broadcast.NewBroadcaster(broadcast.Options{
		QueueSize:    cfg.SubscriberQueueSize,
		WriteTimeout: cfg.SubscriberWriteTimeout,
		MaxPerRoom:   cfg.MaxSubscribersPerRoom,
	}, clock, metrics.NewBroadcastMetrics(reg), metrics.NewSubscriberMetrics(reg))

	healthChecks := []httpserver.HealthCheck{{Name: "store", Check: store.Ping}}

	// Without Redis this instance is the whole deployment and publishes straight to its subscribers.
	var relayPublisher domain.EventPublisher
	stopRelay := func() {}
	if cfg.RedisURL != "" {
		redisMetrics := metrics.NewRedisMetrics(reg)
		redisClient := setupRedis(context.Background(), cfg, redisMetrics)

		relayCtx, cancelRelay := context.WithCancel(context.Background())
		relay := redis.NewRelay(relayCtx, redisClient, broadcaster, redisMetrics)
		broadcaster.SetLifecycleHooks(relay.Track, relay.Untrack)

		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			relay.Run(relayCtx)
		}()

		stopRelay = func() {
			cancelRelay()
			if err := relay.Close(); err != nil {
				slog.Error("Failed to close relay", "error", err)
			}
			<-relayDone
			_ = redisClient.Close()
		}

		relayPublisher = relay
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		slog.Info("Cross-instance relay enabled")
	}

	publisher := eventpublisher.New(relayPublisher, broadcaster)
	appSvc := app.NewService(store, publisher, metrics.NewCommandMetrics(reg), clock, cfg.MaxMessageLength)

	srv := httpserver.NewServer(cfg, appSvc, broadcaster, healthChecks, reg)

	done := runGracefulShutdown(srv, broadcaster, stopRelay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
