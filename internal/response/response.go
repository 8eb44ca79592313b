// Package response writes the uniform JSON envelope used by every endpoint.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/presskit/presskit/internal/apperror"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta describes one page of a paginated list.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewMeta computes totalPages = ceil(total/limit).
func NewMeta(page, limit int, total int64) *Meta {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Meta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// JSON writes an envelope with the given status code.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Success writes {success:true, data, message}.
func Success(w http.ResponseWriter, status int, data any, message string) {
	JSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// Paginated writes a list page with meta.
func Paginated(w http.ResponseWriter, data any, page, limit int, total int64) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: NewMeta(page, limit, total)})
}

// Fail writes {success:false, error:message}.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// ErrorWriter translates errors into envelopes. Outside production the
// underlying error text is attached as detail.
type ErrorWriter struct {
	Logger     *slog.Logger
	Production bool
}

// Write translates err and writes it. 5xx errors are logged with the request path.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, message := apperror.Translate(err)
	env := Envelope{Success: false, Error: message}
	if !ew.Production && err.Error() != message {
		env.Detail = err.Error()
	}
	if status >= http.StatusInternalServerError && ew.Logger != nil {
		ew.Logger.Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	JSON(w, status, env)
}
