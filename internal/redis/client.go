package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yeleman/anam-desktop/internal/config"
)

const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second
)

// Client Redis client alias
type Client = redis.Client

// NewRedisClient creates a Redis client, no connection is made
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		MaxRetries:   1,
	})
}

// Ping checks the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the Redis connection, nil is a no-op
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
