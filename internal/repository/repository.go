// Package repository provides the PostgreSQL persistence layer.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultConnectAttempts is how many times New tries to reach the database.
	DefaultConnectAttempts = 5

	baseConnectDelay = time.Second
	maxConnectDelay  = 30 * time.Second

	// JitterFactor is the ±percentage of jitter applied to connect delays.
	JitterFactor = 0.2
)

// ConnectOptions tunes the initial connection.
type ConnectOptions struct {
	Attempts int
	Logger   *slog.Logger
	// Sleep waits between attempts; overridable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Repository provides database access methods.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a Repository, retrying the initial connection with exponential backoff.
func New(ctx context.Context, databaseURL string, opts ConnectOptions) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	var pool *pgxpool.Pool
	err = retryConnect(ctx, opts, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Repository{pool: pool}, nil
}

// ConnectDelay returns the wait after the given failed attempt (1-indexed):
// min(1s * 2^(attempt-1), 30s) with ±20% jitter.
func ConnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := maxConnectDelay
	if attempt <= 6 {
		base = baseConnectDelay << (attempt - 1)
		if base > maxConnectDelay {
			base = maxConnectDelay
		}
	}
	jitter := (rand.Float64()*2 - 1) * float64(base) * JitterFactor
	return time.Duration(float64(base) + jitter)
}

func retryConnect(ctx context.Context, opts ConnectOptions, connect func(context.Context) error) error {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = connect(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		delay := ConnectDelay(attempt)
		if opts.Logger != nil {
			opts.Logger.Warn("database connect failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff_ms", delay.Milliseconds(),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// withTx runs fn inside a transaction, committing on success.
func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
