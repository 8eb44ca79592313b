package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Pagination defaults shared by every list endpoint.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "-createdAt"
)

// ListQuery selects one page of a table.
type ListQuery struct {
	Page    int
	Limit   int
	Sort    string            // comma-separated keys, "-" prefix for descending
	Filters map[string]string // equality filters keyed by public field name
}

// Normalize applies defaults and bounds.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
}

// Page is one page of results plus the total match count.
type Page[T any] struct {
	Items []*T
	Total int64
	Page  int
	Limit int
}

// TableSpec describes how a model maps onto a table.
type TableSpec[T any] struct {
	Table   string
	Columns []string // select list; Columns[0] is the primary key
	// Fields maps public field names to SQL expressions usable in WHERE and ORDER BY.
	Fields map[string]string
	Scan   func(row pgx.Row) (*T, error)
	// Values returns column values in Columns order.
	Values   func(item *T) []any
	NotFound error
}

// Table is a generic store over one table: paginated listing, equality
// filters, single-row CRUD and bulk helpers.
type Table[T any] struct {
	repo *Repository
	spec TableSpec[T]
}

// NewTable creates a generic table store.
func NewTable[T any](repo *Repository, spec TableSpec[T]) *Table[T] {
	if spec.NotFound == nil {
		spec.NotFound = ErrNotFound
	}
	return &Table[T]{repo: repo, spec: spec}
}

func (t *Table[T]) selectList() string {
	return strings.Join(t.spec.Columns, ", ")
}

// where builds an AND of equality predicates, ignoring unknown fields.
func (t *Table[T]) where(filters map[string]string, args []any) (string, []any) {
	if len(filters) == 0 {
		return "", args
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	for _, k := range keys {
		expr, ok := t.spec.Fields[k]
		if !ok {
			continue
		}
		args = append(args, filters[k])
		clauses = append(clauses, fmt.Sprintf("%s = $%d", expr, len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderBy converts "-createdAt,title" into an ORDER BY clause. Unknown keys are dropped.
func (t *Table[T]) orderBy(sort string) string {
	var parts []string
	for _, key := range strings.Split(sort, ",") {
		key = strings.TrimSpace(key)
		dir := "ASC"
		if strings.HasPrefix(key, "-") {
			dir = "DESC"
			key = key[1:]
		}
		if expr, ok := t.spec.Fields[key]; ok {
			parts = append(parts, expr+" "+dir)
		}
	}
	if len(parts) == 0 {
		if expr, ok := t.spec.Fields["createdAt"]; ok {
			parts = append(parts, expr+" DESC")
		}
	}
	parts = append(parts, t.spec.Columns[0]+" DESC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// List returns one page matching the query's filters.
func (t *Table[T]) List(ctx context.Context, q ListQuery) (*Page[T], error) {
	q.Normalize()

	where, args := t.where(q.Filters, nil)

	var total int64
	countSQL := "SELECT COUNT(*) FROM " + t.spec.Table + where
	if err := t.repo.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", t.spec.Table, err)
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT $%d OFFSET $%d",
		t.selectList(), t.spec.Table, where, t.orderBy(q.Sort), len(args)-1, len(args))

	items, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// Get loads a row by primary key.
func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", t.selectList(), t.spec.Table, t.spec.Columns[0])
	item, err := t.spec.Scan(t.repo.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, t.spec.NotFound
		}
		return nil, fmt.Errorf("get %s: %w", t.spec.Table, err)
	}
	return item, nil
}

// lookup builds the predicate field = value AND scope. Scope entries win over
// the looked-up field.
func (t *Table[T]) lookup(field, value string, scope map[string]string) (string, []any, error) {
	if _, ok := t.spec.Fields[field]; !ok {
		return "", nil, fmt.Errorf("%s %q: %w", t.spec.Table, field, ErrUnknownField)
	}
	filters := map[string]string{field: value}
	for k, v := range scope {
		filters[k] = v
	}
	where, args := t.where(filters, nil)
	return where, args, nil
}

// FindBy returns every row in scope whose field equals value, newest first.
func (t *Table[T]) FindBy(ctx context.Context, field, value string, scope map[string]string) ([]*T, error) {
	where, args, err := t.lookup(field, value, scope)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s%s", t.selectList(), t.spec.Table, where, t.orderBy(DefaultSort))
	return t.query(ctx, query, args...)
}

// Count returns the number of rows matching filters.
func (t *Table[T]) Count(ctx context.Context, filters map[string]string) (int64, error) {
	where, args := t.where(filters, nil)
	var n int64
	if err := t.repo.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+t.spec.Table+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.spec.Table, err)
	}
	return n, nil
}

// Exists reports whether any row in scope has field equal to value.
func (t *Table[T]) Exists(ctx context.Context, field, value string, scope map[string]string) (bool, error) {
	where, args, err := t.lookup(field, value, scope)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	var ok bool
	query := "SELECT EXISTS (SELECT 1 FROM " + t.spec.Table + where + ")"
	if err := t.repo.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists %s: %w", t.spec.Table, err)
	}
	return ok, nil
}

func (t *Table[T]) insertSQL() string {
	placeholders := make([]string, len(t.spec.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.spec.Table, t.selectList(), strings.Join(placeholders, ", "))
}

func (t *Table[T]) updateSQL() string {
	sets := make([]string, 0, len(t.spec.Columns)-1)
	for i, col := range t.spec.Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1",
		t.spec.Table, strings.Join(sets, ", "), t.spec.Columns[0])
}

// Create inserts a row.
func (t *Table[T]) Create(ctx context.Context, item *T) error {
	if _, err := t.repo.pool.Exec(ctx, t.insertSQL(), t.spec.Values(item)...); err != nil {
		return translateWriteError(fmt.Errorf("create %s: %w", t.spec.Table, err))
	}
	return nil
}

// Update overwrites every column of an existing row.
func (t *Table[T]) Update(ctx context.Context, item *T) error {
	tag, err := t.repo.pool.Exec(ctx, t.updateSQL(), t.spec.Values(item)...)
	if err != nil {
		return translateWriteError(fmt.Errorf("update %s: %w", t.spec.Table, err))
	}
	if tag.RowsAffected() == 0 {
		return t.spec.NotFound
	}
	return nil
}

// Delete removes a row by primary key.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.spec.Table, t.spec.Columns[0])
	tag, err := t.repo.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.spec.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return t.spec.NotFound
	}
	return nil
}

// BulkCreate inserts all items in one transaction.
func (t *Table[T]) BulkCreate(ctx context.Context, items []*T) error {
	return t.bulk(ctx, t.insertSQL(), items)
}

// BulkUpdate overwrites all items in one transaction.
func (t *Table[T]) BulkUpdate(ctx context.Context, items []*T) error {
	return t.bulk(ctx, t.updateSQL(), items)
}

func (t *Table[T]) bulk(ctx context.Context, query string, items []*T) error {
	if len(items) == 0 {
		return nil
	}
	return t.repo.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(query, t.spec.Values(item)...)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := range items {
			if _, err := results.Exec(); err != nil {
				return translateWriteError(fmt.Errorf("bulk %s item %d: %w", t.spec.Table, i, err))
			}
		}
		return nil
	})
}

// BulkDelete removes every row whose primary key is in ids and returns how many were removed.
func (t *Table[T]) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)", t.spec.Table, t.spec.Columns[0])
	tag, err := t.repo.pool.Exec(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk delete %s: %w", t.spec.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *Table[T]) query(ctx context.Context, query string, args ...any) ([]*T, error) {
	rows, err := t.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.spec.Table, err)
	}
	defer rows.Close()

	items := make([]*T, 0)
	for rows.Next() {
		item, err := t.spec.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.spec.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.spec.Table, err)
	}
	return items, nil
}
