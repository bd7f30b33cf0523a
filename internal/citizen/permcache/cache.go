// Package permcache is an optional Redis mirror of the citizenship flag for
// deployments where permission checks are hot. The relational store stays
// the source of truth; cache misses fall through to it.
package permcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	id "agora/pkg/domain"
)

const keyPrefix = "citizen:perm:"

type Cache struct {
	client *redis.Client
}

// New wraps a redis client; a nil client yields a nil *Cache, on which
// every method is a safe no-op / miss.
func New(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client}
}

// Grant marks the user a citizen for ttl, clamped so the cache entry never
// outlives the identity record that justified it.
func (c *Cache) Grant(ctx context.Context, userID id.UserID, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+userID.String(), "1", ttl).Err()
}

// Revoke drops the user's cache entry.
func (c *Cache) Revoke(ctx context.Context, userID id.UserID) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+userID.String()).Err()
}

// Check returns (granted, known). known is false on a miss or when the
// cache is absent; the caller then consults the permission store.
func (c *Cache) Check(ctx context.Context, userID id.UserID) (granted, known bool, err error) {
	if c == nil {
		return false, false, nil
	}
	_, err = c.client.Get(ctx, keyPrefix+userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, true, nil
}
