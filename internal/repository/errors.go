package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEPKNotFound       = errors.New("epk not found")
	ErrInquiryNotFound   = errors.New("inquiry not found")
	ErrAnalyticsNotFound = errors.New("analytics not found")
	ErrNotFound          = errors.New("record not found")
	ErrUnknownField      = errors.New("unknown field")
)

const uniqueViolationCode = "23505"

// constraintFields maps unique constraint names to the field they guard.
var constraintFields = map[string]string{
	"users_email_key":    "email",
	"users_username_key": "username",
	"epks_slug_key":      "slug",
}

// translateWriteError converts unique violations into *apperror.DuplicateError.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	field, ok := constraintFields[pgErr.ConstraintName]
	if !ok {
		field = fieldFromConstraint(pgErr.ConstraintName)
	}
	return &apperror.DuplicateError{Field: field, Err: err}
}

// fieldFromConstraint guesses the column of a <table>_<column>_key constraint.
func fieldFromConstraint(name string) string {
	name = strings.TrimSuffix(name, "_key")
	if i := strings.Index(name, "_"); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

// checkID rejects identifiers that cannot be ULIDs before they reach the database.
func checkID(id string) error {
	if !model.ValidID(id) {
		return apperror.ErrInvalidID
	}
	return nil
}
