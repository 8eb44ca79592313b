// Package analytics captures public EPK page events and folds them into
// persisted per-EPK analytics.
package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/presskit/presskit/internal/metrics"
	"github.com/presskit/presskit/internal/model"
)

const (
	// StreamKey is the Redis stream for EPK page events.
	StreamKey = "stream:epk_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:epk_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// EventPayload is the compact event format stored in the stream.
type EventPayload struct {
	Kind        string `json:"k"`
	EPKID       string `json:"e"`
	Interaction string `json:"i,omitempty"`
	VisitorHash string `json:"vh,omitempty"`
	Unique      bool   `json:"u,omitempty"`
	Referrer    string `json:"r,omitempty"`
	UserAgent   string `json:"ua,omitempty"`
	CountryCode string `json:"cc,omitempty"`
	OccurredAt  int64  `json:"t"` // Unix milliseconds
}

// NewPayload converts an event into its stream form.
func NewPayload(event *model.AnalyticsEvent) EventPayload {
	return EventPayload{
		Kind:        event.Kind,
		EPKID:       event.EPKID,
		Interaction: string(event.Interaction),
		VisitorHash: event.VisitorHash,
		Unique:      event.Unique,
		Referrer:    SanitizeReferrer(event.Referrer),
		UserAgent:   TruncateUserAgent(event.UserAgent),
		CountryCode: ExtractCountryCode(event.CountryCode),
		OccurredAt:  event.OccurredAt.UnixMilli(),
	}
}

// Event converts the payload back into a model event keyed by the stream ID.
func (p EventPayload) Event(streamID string) *model.AnalyticsEvent {
	return &model.AnalyticsEvent{
		EventID:     streamID,
		Kind:        p.Kind,
		EPKID:       p.EPKID,
		Interaction: model.InteractionType(p.Interaction),
		VisitorHash: p.VisitorHash,
		Unique:      p.Unique,
		Referrer:    p.Referrer,
		UserAgent:   p.UserAgent,
		CountryCode: p.CountryCode,
		OccurredAt:  time.UnixMilli(p.OccurredAt).UTC(),
	}
}

// Publisher enqueues page events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new analytics event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event *model.AnalyticsEvent) (string, error) {
	data, err := json.Marshal(NewPayload(event))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event *model.AnalyticsEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish analytics event",
				"epk_id", event.EPKID,
				"kind", event.Kind,
				"error", err,
			)
			p.metrics.IncAnalyticsEventPublished("dropped")
			return
		}

		p.logger.Debug("analytics event published",
			"epk_id", event.EPKID,
			"stream_id", streamID,
		)
		p.metrics.IncAnalyticsEventPublished("success")
	}()
}

// GenerateVisitorHash creates a privacy-safe visitor identifier.
// Uses SHA256(IP + UserAgent + daily_salt) truncated to 16 hex chars.
func GenerateVisitorHash(ip, userAgent string, at time.Time) string {
	// Daily salt rotates at midnight UTC
	dailySalt := fmt.Sprintf("presskit:%s", at.UTC().Format(model.DateLayout))

	hash := sha256.Sum256([]byte(ip + userAgent + dailySalt))
	return hex.EncodeToString(hash[:])[:16]
}

// SanitizeReferrer strips query parameters and fragments and truncates the result.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	sanitized := parsed.String()
	if len(sanitized) > maxMetaLength {
		return sanitized[:maxMetaLength]
	}
	return sanitized
}

// TruncateUserAgent truncates user agent to max 500 chars.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxMetaLength {
		return ua[:maxMetaLength]
	}
	return ua
}

// ExtractCountryCode normalizes a two-letter country header value.
// Returns empty string if the value is missing or invalid.
func ExtractCountryCode(value string) string {
	if len(value) == 2 {
		return strings.ToUpper(value)
	}
	return ""
}

// ExtractReferrerDomain extracts the domain from a referrer URL.
// Returns "(direct)" for empty referrer.
func ExtractReferrerDomain(ref string) string {
	if ref == "" {
		return "(direct)"
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "(unknown)"
	}

	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}
