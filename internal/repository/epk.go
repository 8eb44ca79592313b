package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/presskit/presskit/internal/model"
)

var epkColumns = []string{
	"id", "user_id", "title", "slug", "status", "bio", "photos", "music", "press_kit",
	"contact", "customization", "analytics", "seo", "created_at", "updated_at",
}

var epkFields = map[string]string{
	"id":        "id",
	"userId":    "user_id",
	"title":     "title",
	"slug":      "slug",
	"status":    "status",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func scanEPK(row pgx.Row) (*model.EPK, error) {
	var e model.EPK
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Title,
		&e.Slug,
		&e.Status,
		&e.Bio,
		&e.Photos,
		&e.Music,
		&e.PressKit,
		&e.Contact,
		&e.Customization,
		&e.Analytics,
		&e.SEO,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if e.Photos == nil {
		e.Photos = []model.PhotoCategory{}
	}
	if e.Music.Tracks == nil {
		e.Music.Tracks = []model.Track{}
	}
	return &e, nil
}

func epkValues(e *model.EPK) []any {
	return []any{
		e.ID,
		e.UserID,
		e.Title,
		e.Slug,
		e.Status,
		e.Bio,
		e.Photos,
		e.Music,
		e.PressKit,
		e.Contact,
		e.Customization,
		e.Analytics,
		e.SEO,
		e.CreatedAt,
		e.UpdatedAt,
	}
}

// EPKs returns the generic store over the epks table.
func (r *Repository) EPKs() *Table[model.EPK] {
	return NewTable(r, TableSpec[model.EPK]{
		Table:    "epks",
		Columns:  epkColumns,
		Fields:   epkFields,
		Scan:     scanEPK,
		Values:   epkValues,
		NotFound: ErrEPKNotFound,
	})
}

// CreateEPK inserts an EPK. A slug collision yields *apperror.DuplicateError{Field: "slug"}.
func (r *Repository) CreateEPK(ctx context.Context, epk *model.EPK) error {
	return r.EPKs().Create(ctx, epk)
}

// GetEPK retrieves an EPK by ID.
func (r *Repository) GetEPK(ctx context.Context, id string) (*model.EPK, error) {
	return r.EPKs().Get(ctx, id)
}

// UpdateEPK overwrites the EPK document (last write wins).
func (r *Repository) UpdateEPK(ctx context.Context, epk *model.EPK) error {
	return r.EPKs().Update(ctx, epk)
}

// CountEPKsByUser returns how many EPKs a user owns.
func (r *Repository) CountEPKsByUser(ctx context.Context, userID string) (int64, error) {
	return r.EPKs().Count(ctx, map[string]string{"userId": userID})
}

// GetEPKBySlug retrieves an EPK by its public slug.
func (r *Repository) GetEPKBySlug(ctx context.Context, slug string) (*model.EPK, error) {
	query := fmt.Sprintf(`SELECT %s FROM epks WHERE slug = $1`, joinColumns(epkColumns))

	epk, err := scanEPK(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEPKNotFound
		}
		return nil, fmt.Errorf("failed to get epk by slug: %w", err)
	}
	return epk, nil
}

// EPKIDsByUser lists the IDs of every EPK the user owns.
func (r *Repository) EPKIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM epks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list epk ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan epk ids: %w", err)
	}
	return ids, nil
}

// DeleteEPK removes the EPK row and its inquiries. Deleting a missing EPK is not an error.
func (r *Repository) DeleteEPK(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := deleteAnalytics(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM contact_inquiries WHERE epk_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete epk inquiries: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM epks WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete epk: %w", err)
		}
		return nil
	})
}
