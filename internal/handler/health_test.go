package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) (envelope, HealthResponse) {
	t.Helper()
	env := decode(t, rec)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	return env, health
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env, health := decodeHealth(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Checks)
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		db, cache  HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         &mockHealthChecker{},
			cache:      &mockHealthChecker{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "database down",
			db:         &mockHealthChecker{err: errors.New("connection refused")},
			cache:      &mockHealthChecker{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "unavailable", "redis": "ok"},
		},
		{
			name:       "redis down",
			db:         &mockHealthChecker{},
			cache:      &mockHealthChecker{err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "ok", "redis": "unavailable"},
		},
		{
			name:       "nothing configured",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "not configured", "redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.cache)

			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			env, health := decodeHealth(t, rec)
			assert.Equal(t, tt.wantChecks, health.Checks)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, env.Success)
				assert.Equal(t, "ok", health.Status)
			} else {
				assert.False(t, env.Success)
				assert.Equal(t, "unhealthy", health.Status)
				assert.Equal(t, "Service unavailable", env.Error)
			}
		})
	}
}
