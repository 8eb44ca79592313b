package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/presskit/presskit/internal/model"
)

var userColumns = []string{
	"id", "email", "username", "password_hash", "tier", "profile", "subscription",
	"settings", "customer_id", "is_active", "last_login_at", "created_at", "updated_at",
}

var userFields = map[string]string{
	"id":        "id",
	"email":     "email",
	"username":  "username",
	"tier":      "tier",
	"isActive":  "is_active",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var customerID *string
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Tier,
		&u.Profile,
		&u.Subscription,
		&u.Settings,
		&customerID,
		&u.IsActive,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID != nil {
		u.Subscription.CustomerID = *customerID
	}
	return &u, nil
}

func userValues(u *model.User) []any {
	return []any{
		u.ID,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.Tier,
		u.Profile,
		u.Subscription,
		u.Settings,
		nullableString(u.Subscription.CustomerID),
		u.IsActive,
		u.LastLoginAt,
		u.CreatedAt,
		u.UpdatedAt,
	}
}

// Users returns the generic store over the users table.
func (r *Repository) Users() *Table[model.User] {
	return NewTable(r, TableSpec[model.User]{
		Table:    "users",
		Columns:  userColumns,
		Fields:   userFields,
		Scan:     scanUser,
		Values:   userValues,
		NotFound: ErrUserNotFound,
	})
}

// CreateUser inserts a new user. Duplicate email or username yields *apperror.DuplicateError.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return r.Users().Create(ctx, user)
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.Users().Get(ctx, id)
}

// UpdateUser persists every mutable user field.
func (r *Repository) UpdateUser(ctx context.Context, user *model.User) error {
	return r.Users().Update(ctx, user)
}

// UserExists reports whether a user with field (email or username) equal to value exists.
func (r *Repository) UserExists(ctx context.Context, field, value string) (bool, error) {
	return r.Users().Exists(ctx, field, value, nil)
}

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUserWhere(ctx, "email", model.NormalizeEmail(email))
}

// GetUserByCustomerID retrieves the user linked to a payment-processor customer.
func (r *Repository) GetUserByCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return r.getUserWhere(ctx, "customer_id", customerID)
}

func (r *Repository) getUserWhere(ctx context.Context, column, value string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, joinColumns(userColumns), column)

	user, err := scanUser(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}

// SetLastLogin stamps the login time.
func (r *Repository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to set last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// nullableString converts empty strings to NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
