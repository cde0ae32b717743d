package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"clinicalGym/pkg/config"
	"clinicalGym/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const connectAttempts = 3

// NewRedisClient dials the progress cache, retrying the initial ping so the
// server can start alongside a redis container that is still booting.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	addr := net.JoinHostPort(cfg.RedisHost, cfg.RedisPort)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     8,
		MinIdleConns: 1,
	})

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Debug("redis connected", "addr", addr, "db", cfg.RedisDB)
			return client, nil
		}
		logger.Warn("redis ping failed", "addr", addr, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
}
