package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// ProfileCacheTTL bounds how stale a public profile may be
	ProfileCacheTTL = 5 * time.Minute
)

// PublicProfile is what anonymous visitors see about a handle.
type PublicProfile struct {
	Username            string `json:"username"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
	AvatarURL           string `json:"avatarUrl,omitempty"`
}

// ProfileCache is a read-through cache of public profiles keyed by handle.
type ProfileCache interface {
	Get(ctx context.Context, username string) (*PublicProfile, bool, error)
	Set(ctx context.Context, p *PublicProfile) error
	Delete(ctx context.Context, username string) error
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s%s:%s", CacheKeyPrefix, resource, identifier)
}

// RedisProfileCache stores profiles as JSON under cache:profile:<username>.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = ProfileCacheTTL
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, username string) (*PublicProfile, bool, error) {
	val, err := c.client.Get(ctx, CacheKey("profile", username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p PublicProfile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, p *PublicProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKey("profile", p.Username), data, c.ttl).Err()
}

func (c *RedisProfileCache) Delete(ctx context.Context, username string) error {
	return c.client.Del(ctx, CacheKey("profile", username)).Err()
}
