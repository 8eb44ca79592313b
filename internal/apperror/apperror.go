// Package apperror defines the error taxonomy shared by every layer and its
// translation to HTTP status codes and client-facing messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/presskit/presskit/internal/auth"
)

// Error is a deliberate domain error carrying an HTTP status and a client message.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a domain error.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap creates a domain error that keeps cause for logging only.
func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Err: cause}
}

// BadRequest returns a 400 domain error.
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// Unauthorized returns a 401 domain error.
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden returns a 403 domain error.
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// NotFound returns a 404 domain error.
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// External returns a 500 error with a fixed message, hiding the provider's error from clients.
func External(message string, cause error) *Error {
	return Wrap(http.StatusInternalServerError, message, cause)
}

// ErrInvalidID is returned for identifiers that cannot exist in the store.
var ErrInvalidID = errors.New("malformed identifier")

// ValidationError carries one message per failed field rule.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// Validation builds a ValidationError, or nil when messages is empty.
func Validation(messages ...string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// DuplicateError reports a unique-constraint violation on Field.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Generic messages.
const (
	MsgResourceNotFound = "Resource not found"
	MsgInvalidToken     = "Invalid token"
	MsgTokenExpired     = "Token expired"
	MsgServerError      = "Server Error"
)

// Translate maps any error to a status and client-facing message.
// Unknown errors become 500 "Server Error".
func Translate(err error) (int, string) {
	var (
		domain     *Error
		validation *ValidationError
		duplicate  *DuplicateError
	)
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &domain):
		return domain.Status, domain.Message
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &duplicate):
		return http.StatusBadRequest, fmt.Sprintf("Duplicate field value entered: %s. Please use another value", duplicate.Field)
	case errors.Is(err, ErrInvalidID):
		return http.StatusNotFound, MsgResourceNotFound
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, MsgTokenExpired
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenPurpose):
		return http.StatusUnauthorized, MsgInvalidToken
	default:
		return http.StatusInternalServerError, MsgServerError
	}
}
