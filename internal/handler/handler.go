// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/response"
)

// Version is reported by the root info endpoint.
const Version = "1.0.0"

var (
	errInvalidJSON    = apperror.BadRequest("Invalid request body")
	errNotAuthorized  = apperror.Unauthorized("Not authorized to access this route")
	errBodyTooLarge   = apperror.New(http.StatusRequestEntityTooLarge, "Request entity too large")
	errMethodNotAllow = apperror.New(http.StatusMethodNotAllowed, "Method not allowed")
)

// Handler serves the root, 404 and 405 endpoints.
type Handler struct {
	errors response.ErrorWriter
}

// New creates a new Handler instance.
func New(errs response.ErrorWriter) *Handler {
	return &Handler{errors: errs}
}

// Info reports the API name and version.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, map[string]string{
		"name":    "PressKit API",
		"version": Version,
	}, "")
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.errors.Write(w, r, apperror.NotFound(fmt.Sprintf("Not Found - %s", r.URL.RequestURI())))
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.errors.Write(w, r, errMethodNotAllow)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst zeroed.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return apperror.Wrap(http.StatusBadRequest, errInvalidJSON.Message, err)
	}
	return nil
}

// principal returns the authenticated principal or writes 401.
func principal(w http.ResponseWriter, r *http.Request, errs response.ErrorWriter) (*auth.Principal, bool) {
	p := principalFrom(r)
	if p == nil {
		errs.Write(w, r, errNotAuthorized)
		return nil, false
	}
	return p, true
}

func principalFrom(r *http.Request) *auth.Principal {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil || p.User == nil {
		return nil
	}
	return p
}

func componentLogger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "handler."+name)
}
