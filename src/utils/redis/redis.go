package redis_utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cryptofolio/src/config"
)

// RedisHandler encapsulates the Redis client and provides utility methods.
type RedisHandler struct {
	client *redis.Client
}

// NewRedisHandler initializes a new Redis handler.
func NewRedisHandler(cfg *config.Config) (*RedisHandler, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Host + ":" + cfg.Databases.Redis.Port,
		Username: cfg.Databases.Redis.Username,
		Password: cfg.Databases.Redis.Password,
		DB:       cfg.Databases.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisHandler{client: client}, nil
}

// Set stores a key-value pair in Redis with an optional expiration.
func (r *RedisHandler) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value: %w", err)
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves and deserializes the value of a key from Redis into the provided result.
func (r *RedisHandler) Get(ctx context.Context, key string, result interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("key does not exist: %s", key)
	} else if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("failed to deserialize value: %w", err)
	}
	return nil
}

// Delete removes a key from Redis.
func (r *RedisHandler) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis client connection.
func (r *RedisHandler) Close() error {
	return r.client.Close()
}
