package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
	"github.com/Shubham2003-jha/Backend-Project/internal/repository"
)

// RedisProfileCache implements repository.ProfileCache backed by Redis.
// Channel profiles are cheap to recompute, so entries carry a short TTL and
// a miss simply falls through to the database.
type RedisProfileCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ repository.ProfileCache = (*RedisProfileCache)(nil)

// NewRedisProfileCache constructs a Redis-backed profile cache.
func NewRedisProfileCache(client redis.UniversalClient, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

// Get loads a cached profile; a nil profile with nil error is a miss.
func (c *RedisProfileCache) Get(ctx context.Context, username string, viewerID int64) (*domain.ChannelProfile, error) {
	bytes, err := c.client.Get(ctx, profileKey(username, viewerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load cached profile: %w", err)
	}
	var profile domain.ChannelProfile
	if err := json.Unmarshal(bytes, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

// Set stores the profile with the configured TTL.
func (c *RedisProfileCache) Set(ctx context.Context, username string, viewerID int64, profile domain.ChannelProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(username, viewerID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

// Invalidate drops every cached viewer variant for a username.
func (c *RedisProfileCache) Invalidate(ctx context.Context, username string) error {
	iter := c.client.Scan(ctx, 0, "profile:"+username+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("invalidate profile: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan profile keys: %w", err)
	}
	return nil
}

func profileKey(username string, viewerID int64) string {
	return fmt.Sprintf("profile:%s:%d", username, viewerID)
}
