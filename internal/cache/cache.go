// Package cache holds the Redis-backed read cache for aggregate queries.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nelssec/appguard/internal/models"
)

const statsKey = "appguard:stats:summary"

type Config struct {
	Addr     string
	Password string
	DB       int
	StatsTTL time.Duration
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := cfg.StatsTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// GetStats returns the cached aggregate snapshot, or nil on a miss.
func (c *Cache) GetStats(ctx context.Context) (*models.EventStats, error) {
	data, err := c.client.Get(ctx, statsKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached stats: %w", err)
	}

	var stats models.EventStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("decoding cached stats: %w", err)
	}
	return &stats, nil
}

// SetStats stores an aggregate snapshot with the configured TTL.
func (c *Cache) SetStats(ctx context.Context, stats *models.EventStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("caching stats: %w", err)
	}
	return nil
}

// InvalidateStats drops the cached snapshot; the next read repopulates it.
func (c *Cache) InvalidateStats(ctx context.Context) error {
	return c.client.Del(ctx, statsKey).Err()
}
