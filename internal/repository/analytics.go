package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/presskit/presskit/internal/model"
)

const analyticsColumns = `epk_id, page_views, engagement, demographics, traffic,
	content_performance, period_summary, created_at, updated_at`

func scanAnalytics(row pgx.Row) (*model.Analytics, error) {
	var a model.Analytics
	err := row.Scan(
		&a.EPKID,
		&a.PageViews,
		&a.Engagement,
		&a.Demographics,
		&a.Traffic,
		&a.ContentPerformance,
		&a.PeriodSummary,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAnalytics retrieves the persisted analytics record for an EPK.
func (r *Repository) GetAnalytics(ctx context.Context, epkID string) (*model.Analytics, error) {
	if err := checkID(epkID); err != nil {
		return nil, err
	}
	a, err := scanAnalytics(r.pool.QueryRow(ctx,
		`SELECT `+analyticsColumns+` FROM epk_analytics WHERE epk_id = $1`, epkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalyticsNotFound
		}
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return a, nil
}

// FoldFunc applies one event to an analytics record.
type FoldFunc func(a *model.Analytics, event *model.AnalyticsEvent)

// RecordEvents applies a batch of events in one transaction. Events whose ID
// was already processed are skipped, so redelivered batches are harmless.
// Events for an EPK that no longer exists are dropped. It returns how many
// events were newly applied.
func (r *Repository) RecordEvents(ctx context.Context, events []*model.AnalyticsEvent, fold FoldFunc) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	applied := 0
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		records := make(map[string]*model.Analytics)
		var order []string

		for _, event := range events {
			record, loaded := records[event.EPKID]
			if !loaded {
				var err error
				record, err = r.loadAnalyticsForUpdate(ctx, tx, event.EPKID)
				if err != nil {
					return err
				}
				records[event.EPKID] = record
				if record != nil {
					order = append(order, event.EPKID)
				}
			}
			if record == nil {
				continue
			}

			var eventID string
			err := tx.QueryRow(ctx, `
				INSERT INTO analytics_processed_events (event_id, epk_id)
				VALUES ($1, $2)
				ON CONFLICT (event_id) DO NOTHING
				RETURNING event_id
			`, event.EventID, event.EPKID).Scan(&eventID)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to mark event processed: %w", err)
			}
			fold(record, event)
			applied++
		}

		now := time.Now().UTC()
		for _, epkID := range order {
			record := records[epkID]
			record.Summarize(now)
			if err := saveAnalytics(ctx, tx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// loadAnalyticsForUpdate locks the EPK row against concurrent deletion and
// returns its analytics record, or nil when the EPK is gone.
func (r *Repository) loadAnalyticsForUpdate(ctx context.Context, tx pgx.Tx, epkID string) (*model.Analytics, error) {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM epks WHERE id = $1 FOR SHARE`, epkID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock epk: %w", err)
	}

	a, err := scanAnalytics(tx.QueryRow(ctx,
		`SELECT `+analyticsColumns+` FROM epk_analytics WHERE epk_id = $1 FOR UPDATE`, epkID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewAnalytics(epkID, time.Now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}
	return a, nil
}

func saveAnalytics(ctx context.Context, tx pgx.Tx, a *model.Analytics) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO epk_analytics (epk_id, page_views, engagement, demographics, traffic,
			content_performance, period_summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (epk_id) DO UPDATE SET
			page_views = EXCLUDED.page_views,
			engagement = EXCLUDED.engagement,
			demographics = EXCLUDED.demographics,
			traffic = EXCLUDED.traffic,
			content_performance = EXCLUDED.content_performance,
			period_summary = EXCLUDED.period_summary,
			updated_at = EXCLUDED.updated_at
	`,
		a.EPKID, a.PageViews, a.Engagement, a.Demographics, a.Traffic,
		a.ContentPerformance, a.PeriodSummary, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

// deleteAnalytics removes an EPK's analytics record and its processed-event ledger.
func deleteAnalytics(ctx context.Context, tx pgx.Tx, epkID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM epk_analytics WHERE epk_id = $1`, epkID); err != nil {
		return fmt.Errorf("failed to delete analytics: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM analytics_processed_events WHERE epk_id = $1`, epkID); err != nil {
		return fmt.Errorf("failed to delete processed events: %w", err)
	}
	return nil
}
