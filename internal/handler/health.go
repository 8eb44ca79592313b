package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/presskit/presskit/internal/response"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db    HealthChecker
	cache HealthChecker
	now   func() time.Time
	start time.Time
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for db or cache if they are not configured.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	now := time.Now
	return &HealthHandler{db: db, cache: cache, now: now, start: now()}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    float64           `json:"uptimeSeconds"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Healthz reports process liveness.
// It returns 200 if the process is serving; no dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, h.report("ok", nil), "")
}

// Readyz reports whether dependencies are reachable.
// It returns 200 only if the store and cache both answer.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, 2)
	healthy := true
	for name, checker := range map[string]HealthChecker{"postgres": h.db, "redis": h.cache} {
		switch {
		case checker == nil:
			checks[name] = "not configured"
		case checker.Ping(ctx) != nil:
			checks[name] = "unavailable"
			healthy = false
		default:
			checks[name] = "ok"
		}
	}

	if !healthy {
		response.JSON(w, http.StatusServiceUnavailable, response.Envelope{
			Success: false,
			Data:    h.report("unhealthy", checks),
			Error:   "Service unavailable",
		})
		return
	}
	response.Success(w, http.StatusOK, h.report("ok", checks), "")
}

func (h *HealthHandler) report(status string, checks map[string]string) HealthResponse {
	now := h.now()
	return HealthResponse{
		Status:    status,
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.start).Seconds(),
		Checks:    checks,
	}
}
