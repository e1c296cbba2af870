package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"detailing/internal/config"
	"detailing/internal/models"

	"github.com/redis/go-redis/v9"
)

const slotKeyPrefix = "slots:booked:"

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisSlotCache keeps booked slot times per date as JSON arrays with a TTL.
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) *RedisSlotCache {
	return &RedisSlotCache{client: client, ttl: ttl}
}

func slotKey(date time.Time) string {
	return slotKeyPrefix + date.Format(models.DateLayout)
}

func (r *RedisSlotCache) Get(ctx context.Context, date time.Time) ([]string, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, slotKey(date)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get slots from redis: %w", err)
	}

	var times []string
	if err := json.Unmarshal([]byte(val), &times); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal slots: %w", err)
	}
	if times == nil {
		times = []string{}
	}
	return times, true, nil
}

func (r *RedisSlotCache) Set(ctx context.Context, date time.Time, times []string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if times == nil {
		times = []string{}
	}
	data, err := json.Marshal(times)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}
	if err := r.client.Set(ctx, slotKey(date), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set slots in redis: %w", err)
	}
	return nil
}

func (r *RedisSlotCache) Invalidate(ctx context.Context, date time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, slotKey(date)).Err(); err != nil {
		return fmt.Errorf("failed to delete slots from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
