package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// fixedWindowScript counts hits in a window that starts at the first hit.
// It's atomic: increment and expiry happen in a single operation.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local max = tonumber(ARGV[1])       -- requests allowed per window
	local window = tonumber(ARGV[2])    -- window length in milliseconds

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window)
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window)
		ttl = window
	end

	local allowed = 0
	if count <= max then
		allowed = 1
	end

	local remaining = max - count
	if remaining < 0 then
		remaining = 0
	end

	return {allowed, remaining, ttl}
`)

// CheckRateLimit counts a hit from ip against scope, allowing max hits per window.
// The IP is hashed to avoid storing raw addresses.
func (c *Cache) CheckRateLimit(ctx context.Context, scope, ip string, max int, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	key := c.key("ratelimit", scope, hashIP(ip))

	result, err := fixedWindowScript.Run(ctx, c.client,
		[]string{key},
		max, window.Milliseconds(),
	).Int64Slice()

	if err != nil {
		// Fail open on Redis errors - allow the request
		c.logger.Warn("rate limit check failed", "scope", scope, "error", err)
		return &RateLimitResult{
			Allowed:   true,
			Limit:     int64(max),
			Remaining: int64(max),
			ResetAt:   now.Add(window),
		}, nil
	}

	return windowResult(now, int64(max), result), nil
}

// windowResult converts the script reply {allowed, remaining, ttlMillis}.
func windowResult(now time.Time, max int64, reply []int64) *RateLimitResult {
	ttl := time.Duration(reply[2]) * time.Millisecond
	res := &RateLimitResult{
		Allowed:   reply[0] == 1,
		Limit:     max,
		Remaining: reply[1],
		ResetAt:   now.Add(ttl),
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// hashIP creates a truncated SHA256 hash of an IP address.
// This provides privacy while maintaining uniqueness.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
