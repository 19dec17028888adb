// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/logger"
)

// RedisClient wraps the Redis client that holds hosted work sessions.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}
}

// ConnectRedis builds a client and pings it until it answers, doubling the
// delay after each failure. The client is closed when every attempt fails.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, attempts int, delay time.Duration, log logger.Logger) (*RedisClient, error) {
	log = logger.OrNoOp(log)
	c := NewRedis(cfg)

	var err error
	for i := 0; i < attempts; i++ {
		if err = c.Ping(ctx); err == nil {
			return c, nil
		}
		if i == attempts-1 {
			break
		}
		log.Warn("Redis connection failed, retrying...", map[string]interface{}{
			"address":       cfg.Address,
			"attempt":       i + 1,
			"maxRetries":    attempts,
			"nextRetryIn":   delay.String(),
			logger.KeyError: err.Error(),
		})
		select {
		case <-ctx.Done():
			_ = c.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	_ = c.Close()
	return nil, fmt.Errorf("redis connection failed after %d attempts: %w", attempts, err)
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// GetClient returns the underlying *redis.Client
func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
