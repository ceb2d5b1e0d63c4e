package repository

import (
	"context"
	"fmt"
	"time"

	"rentalhub/internal/config"

	"github.com/redis/go-redis/v9"
)

const quotaKeyPrefix = "quota:"

// RedisQuotaRepository keeps fixed-window counters in redis so that limits hold across instances.
type RedisQuotaRepository struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from the config
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisQuotaRepository(client *redis.Client) *RedisQuotaRepository {
	return &RedisQuotaRepository{client: client}
}

// CheckRateLimit increments the counter for key and reports whether it is still within limit.
func (r *RedisQuotaRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := quotaKeyPrefix + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client; a nil client is a no-op
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
