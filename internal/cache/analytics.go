package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/presskit/presskit/internal/model"
)

// VisitorTTL is how long a visitor counts as already seen for an EPK.
const VisitorTTL = 24 * time.Hour

// RecordPageView increments the view counter and, when the visitor was not
// seen in the last VisitorTTL, the unique counter. It reports whether the
// visit was unique.
func (c *Cache) RecordPageView(ctx context.Context, epkID, visitorHash string) (bool, error) {
	unique := false
	if visitorHash != "" {
		ok, err := c.client.SetNX(ctx, c.key("analytics", epkID, "visitor", visitorHash), "1", VisitorTTL).Result()
		if err != nil {
			return false, fmt.Errorf("failed to record visitor: %w", err)
		}
		unique = ok
	}

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, c.key("analytics", epkID, "views"))
	if unique {
		pipe.Incr(ctx, c.key("analytics", epkID, "unique"))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unique, fmt.Errorf("failed to record page view: %w", err)
	}
	return unique, nil
}

// RecordInteraction increments the counter for one interaction type.
func (c *Cache) RecordInteraction(ctx context.Context, epkID string, interaction model.InteractionType) error {
	if err := c.client.Incr(ctx, c.key("analytics", epkID, "interactions", string(interaction))).Err(); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

// LiveCounters reads the real-time counters for an EPK. Missing counters are zero.
func (c *Cache) LiveCounters(ctx context.Context, epkID string) (*model.LiveCounters, error) {
	keys := []string{
		c.key("analytics", epkID, "views"),
		c.key("analytics", epkID, "unique"),
	}
	for _, it := range model.InteractionTypes {
		keys = append(keys, c.key("analytics", epkID, "interactions", string(it)))
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read live counters: %w", err)
	}

	counters := &model.LiveCounters{Interactions: make(map[model.InteractionType]int64, len(model.InteractionTypes))}
	counters.PageViews = parseCounter(values, 0)
	counters.UniqueVisitors = parseCounter(values, 1)
	for i, it := range model.InteractionTypes {
		counters.Interactions[it] = parseCounter(values, i+2)
	}
	counters.ComputeEngagementRate()
	return counters, nil
}

// DeleteAnalytics removes every live counter for an EPK.
func (c *Cache) DeleteAnalytics(ctx context.Context, epkID string) error {
	return c.deletePattern(ctx, c.key("analytics", escapePattern(epkID))+":*")
}

func parseCounter(values []any, i int) int64 {
	if i >= len(values) {
		return 0
	}
	s, ok := values[i].(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// escapePattern escapes glob metacharacters for SCAN MATCH.
func escapePattern(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
