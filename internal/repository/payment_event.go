package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MarkPaymentEventProcessed records a webhook event ID. It returns false when
// the event was seen before and should be skipped.
func (r *Repository) MarkPaymentEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payment_events (id, type)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`, eventID, eventType).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}
	return true, nil
}

// ForgetPaymentEvent removes a recorded event so a failed handler can be retried on redelivery.
func (r *Repository) ForgetPaymentEvent(ctx context.Context, eventID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM payment_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to forget payment event: %w", err)
	}
	return nil
}
