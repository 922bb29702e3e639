package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/repository"
)

// RedisUserCache implements repository.UserCache backed by Redis. Users are
// never mutated in scope, so a short positive TTL is safe and saves a store
// round-trip per authenticated request.
type RedisUserCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ repository.UserCache = (*RedisUserCache)(nil)

// NewRedisUserCache constructs a Redis-backed user cache.
func NewRedisUserCache(client redis.UniversalClient, ttl time.Duration) *RedisUserCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisUserCache{client: client, ttl: ttl}
}

// Get loads a cached user. A nil user with nil error means cache miss.
func (c *RedisUserCache) Get(ctx context.Context, userID string) (*domain.User, error) {
	bytes, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load cached user: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(bytes, &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &user, nil
}

// Set stores the user with TTL.
func (c *RedisUserCache) Set(ctx context.Context, user domain.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(user.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("persist cached user: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "orgauth:user:" + userID
}
