// Package redis relays room events between server instances over Redis
// Pub/Sub. Every instance publishes each committed event to the room's
// channel and subscribes to the channels of rooms it has local subscribers
// for, so a subscriber on any instance sees every event.
package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/roomqa/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and installs the metrics and circuit breaker
// hooks. m may be nil.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(NewMetricsHook(m))
	}
	rdb.AddHook(NewCircuitBreakerHook(m))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
