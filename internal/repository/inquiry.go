package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/presskit/presskit/internal/model"
)

var inquiryColumns = []string{
	"id", "epk_id", "type", "status", "priority", "sender", "subject", "message", "metadata",
	"attachments", "notes", "response_history", "read_at", "responded_at", "created_at", "updated_at",
}

var inquiryFields = map[string]string{
	"id":        "id",
	"epkId":     "epk_id",
	"type":      "type",
	"status":    "status",
	"priority":  "priority",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func scanInquiry(row pgx.Row) (*model.ContactInquiry, error) {
	var q model.ContactInquiry
	err := row.Scan(
		&q.ID,
		&q.EPKID,
		&q.Type,
		&q.Status,
		&q.Priority,
		&q.Sender,
		&q.Subject,
		&q.Message,
		&q.Metadata,
		&q.Attachments,
		&q.Notes,
		&q.ResponseHistory,
		&q.ReadAt,
		&q.RespondedAt,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if q.Attachments == nil {
		q.Attachments = []model.Attachment{}
	}
	if q.Notes == nil {
		q.Notes = []model.Note{}
	}
	if q.ResponseHistory == nil {
		q.ResponseHistory = []model.Response{}
	}
	return &q, nil
}

func inquiryValues(q *model.ContactInquiry) []any {
	return []any{
		q.ID,
		q.EPKID,
		q.Type,
		q.Status,
		q.Priority,
		q.Sender,
		q.Subject,
		q.Message,
		q.Metadata,
		q.Attachments,
		q.Notes,
		q.ResponseHistory,
		q.ReadAt,
		q.RespondedAt,
		q.CreatedAt,
		q.UpdatedAt,
	}
}

// Inquiries returns the generic store over the contact_inquiries table.
func (r *Repository) Inquiries() *Table[model.ContactInquiry] {
	return NewTable(r, TableSpec[model.ContactInquiry]{
		Table:    "contact_inquiries",
		Columns:  inquiryColumns,
		Fields:   inquiryFields,
		Scan:     scanInquiry,
		Values:   inquiryValues,
		NotFound: ErrInquiryNotFound,
	})
}

// CreateInquiry inserts a new inquiry.
func (r *Repository) CreateInquiry(ctx context.Context, q *model.ContactInquiry) error {
	return r.Inquiries().Create(ctx, q)
}

// GetInquiry retrieves an inquiry by ID.
func (r *Repository) GetInquiry(ctx context.Context, id string) (*model.ContactInquiry, error) {
	return r.Inquiries().Get(ctx, id)
}

// UpdateInquiry persists the inquiry's lifecycle fields.
func (r *Repository) UpdateInquiry(ctx context.Context, q *model.ContactInquiry) error {
	return r.Inquiries().Update(ctx, q)
}

// InquiryFilter narrows an inquiry listing.
type InquiryFilter struct {
	EPKIDs []string
	Status model.InquiryStatus // empty means any
	Type   model.InquiryType   // empty means any
	Page   int
	Limit  int
}

// ListInquiries returns inquiries across a set of EPKs, newest first.
func (r *Repository) ListInquiries(ctx context.Context, f InquiryFilter) (*Page[model.ContactInquiry], error) {
	q := ListQuery{Page: f.Page, Limit: f.Limit}
	q.Normalize()
	if len(f.EPKIDs) == 0 {
		return &Page[model.ContactInquiry]{Items: []*model.ContactInquiry{}, Page: q.Page, Limit: q.Limit}, nil
	}

	clauses := []string{"epk_id = ANY($1)"}
	args := []any{pq.Array(f.EPKIDs)}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM contact_inquiries"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count inquiries: %w", err)
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM contact_inquiries%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		joinColumns(inquiryColumns), where, len(args)-1, len(args))

	items, err := r.Inquiries().query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Page[model.ContactInquiry]{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// InquiryStats counts inquiries across a set of EPKs by status and type.
func (r *Repository) InquiryStats(ctx context.Context, epkIDs []string) (*model.InquiryStats, error) {
	stats := &model.InquiryStats{}
	if len(epkIDs) == 0 {
		return stats, nil
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'new'),
			COUNT(*) FILTER (WHERE status = 'read'),
			COUNT(*) FILTER (WHERE status = 'replied'),
			COUNT(*) FILTER (WHERE status = 'archived'),
			COUNT(*) FILTER (WHERE type = 'booking'),
			COUNT(*) FILTER (WHERE type = 'press')
		FROM contact_inquiries
		WHERE epk_id = ANY($1)
	`
	err := r.pool.QueryRow(ctx, query, pq.Array(epkIDs)).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Read,
		&stats.Responded,
		&stats.Archived,
		&stats.Booking,
		&stats.Press,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute inquiry stats: %w", err)
	}
	return stats, nil
}
