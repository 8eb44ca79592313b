package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlacklistToken marks a token fingerprint as revoked until ttl elapses.
func (c *Cache) BlacklistToken(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key("blacklist", fingerprint), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// IsTokenBlacklisted reports whether a token fingerprint was revoked.
func (c *Cache) IsTokenBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	err := c.client.Get(ctx, c.key("blacklist", fingerprint)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return true, nil
}
