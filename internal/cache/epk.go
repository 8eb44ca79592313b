package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// EPKTTL bounds how long a serialized EPK stays cached.
const EPKTTL = time.Hour

// GetEPK returns the cached serialized EPK. Connectivity failures are logged
// and reported as a miss.
func (c *Cache) GetEPK(ctx context.Context, id string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key("epk", id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", "epk:"+id, "error", err)
		}
		return nil, false
	}
	return data, true
}

// SetEPK stores a serialized EPK. Failures are logged, never returned.
func (c *Cache) SetEPK(ctx context.Context, id string, data []byte) {
	if err := c.client.Set(ctx, c.key("epk", id), data, EPKTTL).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", "epk:"+id, "error", err)
	}
}

// DeleteEPK evicts a cached EPK.
func (c *Cache) DeleteEPK(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key("epk", id)).Err()
}

// GetEPKIDBySlug resolves a public slug through the cached slug index.
func (c *Cache) GetEPKIDBySlug(ctx context.Context, slug string) (string, bool) {
	id, err := c.client.Get(ctx, c.key("epk", "slug", slug)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", "epk:slug:"+slug, "error", err)
		}
		return "", false
	}
	return id, true
}

// SetEPKSlug indexes slug to id for EPKTTL. Failures are logged, never returned.
func (c *Cache) SetEPKSlug(ctx context.Context, slug, id string) {
	if err := c.client.Set(ctx, c.key("epk", "slug", slug), id, EPKTTL).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", "epk:slug:"+slug, "error", err)
	}
}

// DeleteEPKSlug drops a slug index entry.
func (c *Cache) DeleteEPKSlug(ctx context.Context, slug string) error {
	return c.client.Del(ctx, c.key("epk", "slug", slug)).Err()
}
