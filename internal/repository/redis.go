// Package repository keeps per-user dialog state: the current wizard
// step plus the booking draft being assembled. Redis is the primary
// store so dialogs survive bot restarts; memory is the fallback.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"avtomaster/internal/config"
	"avtomaster/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	dialogKeyPrefix    = "dialog:"
	rateLimitKeyPrefix = "rate:"
)

type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient собирает клиент Redis из конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultRedisTTL) * time.Second
	}
	return &RedisStateRepository{client: client, ttl: ttl}
}

func (r *RedisStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	val, err := r.client.Get(ctx, dialogKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dialog state from redis: %w", err)
	}

	var state models.UserState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("unmarshal dialog state: %w", err)
	}
	return &state, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal dialog state: %w", err)
	}
	if err := r.client.Set(ctx, dialogKey(state.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set dialog state in redis: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, dialogKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete dialog state from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts messages in a fixed window. The first increment
// arms the window's expiry.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("%s%d", rateLimitKeyPrefix, userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}

func dialogKey(userID int64) string {
	return fmt.Sprintf("%s%d", dialogKeyPrefix, userID)
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
