package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil without error when REDIS_URL is not configured.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Redis connected", "addr", opts.Addr)
	return client, nil
}
