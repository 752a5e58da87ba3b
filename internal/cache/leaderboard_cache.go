package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "luxestay:"

// redisClient is the subset of *redis.Client the cache uses
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// LeaderboardCache keeps computed leaderboards in Redis for a short TTL
type LeaderboardCache struct {
	client redisClient
	ttl    time.Duration
}

// NewLeaderboardCache wraps a Redis client
func NewLeaderboardCache(client redisClient, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the server is reachable
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Get returns the cached board; ok is false on a miss
func (c *LeaderboardCache) Get(ctx context.Context, key string) (*models.Leaderboard, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	var board models.Leaderboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return &board, true, nil
}

// Set stores the board under key with the configured TTL
func (c *LeaderboardCache) Set(ctx context.Context, key string, board *models.Leaderboard) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write leaderboard cache: %w", err)
	}
	return nil
}
