package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/presskit/presskit/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// dataTables lists every table holding application data, children first.
var dataTables = []string{
	"payment_events",
	"analytics_processed_events",
	"epk_analytics",
	"contact_inquiries",
	"epks",
	"users",
}

// TruncateAll empties every application table. Migrations must already be applied.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range dataTables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a verified free-tier user with a unique email and username.
func NewTestUser(t testing.TB, prefix string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	suffix := fmt.Sprintf("%d", now.UnixNano())
	u := model.NewUser(prefix+suffix+"@example.com", prefix+suffix, "hash", now)
	u.Settings.EmailVerified = true
	return u
}

// NewTestUserWithTier creates a test user on a specific tier.
func NewTestUserWithTier(t testing.TB, prefix, tier string) *model.User {
	t.Helper()
	u := NewTestUser(t, prefix)
	u.Tier = tier
	u.Subscription.Plan = tier
	return u
}

// NewTestEPK creates a draft EPK owned by userID with a unique title.
func NewTestEPK(t testing.TB, userID string) *model.EPK {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := model.NewEPK(userID, UniqueID("Test EPK"), now)
	e.Contact.Email = "booking@example.com"
	return e
}

// NewTestInquiry creates a booking inquiry against epkID.
func NewTestInquiry(t testing.TB, epkID string) *model.ContactInquiry {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return model.NewInquiry(epkID, model.InquiryBooking,
		model.Sender{Name: "Jane Promoter", Email: "jane@example.com"},
		"Festival booking", "We would love to book you for our summer festival.", now)
}

// UniqueID generates a unique identifier for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// TestLogger returns a logger that discards output.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
