package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/presskit/presskit/internal/cache"
	"github.com/presskit/presskit/internal/response"
)

// countingLimiter admits the first limit hits per scope and ip.
type countingLimiter struct {
	hits  map[string]int
	err   error
	scope string
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, scope, ip string, limit int, _ time.Duration) (*cache.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.scope = scope
	l.hits[scope+"|"+ip]++
	count := l.hits[scope+"|"+ip]

	res := &cache.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     int64(limit),
		Remaining: int64(max(0, limit-count)),
		ResetAt:   time.Unix(1700000000, 0),
	}
	if !res.Allowed {
		res.RetryAfter = 1500 * time.Millisecond
	}
	return res, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{}
	cfg := RateLimitConfig{Logger: discardLogger(), Limiter: limiter, Errors: response.ErrorWriter{}, Enabled: true}
	handler := RateLimit(cfg, ContactRateLimit(2, time.Hour))(okHandler())

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/contact/epk", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call("192.0.2.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	rec := call("192.0.2.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", got)
	}
	env := decodeEnvelope(t, rec)
	if env.Error != "Too many contact form submissions, please try again after an hour" {
		t.Errorf("unexpected message %q", env.Error)
	}
	if limiter.scope != "contact" {
		t.Errorf("scope = %q, want contact", limiter.scope)
	}

	if rec := call("192.0.2.2"); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Messages(t *testing.T) {
	tests := []struct {
		rule RateLimitRule
		want string
	}{
		{APIRateLimit(100, 15*time.Minute), "Too many requests from this IP, please try again after 15 minutes"},
		{AuthRateLimit(5, time.Hour), "Too many authentication attempts, please try again after an hour"},
		{ContactRateLimit(10, time.Hour), "Too many contact form submissions, please try again after an hour"},
	}

	for _, tt := range tests {
		t.Run(tt.rule.Scope, func(t *testing.T) {
			cfg := RateLimitConfig{Logger: discardLogger(), Limiter: &countingLimiter{}, Errors: response.ErrorWriter{}, Enabled: true}
			tt.rule.Max = 1
			handler := RateLimit(cfg, tt.rule)(okHandler())

			var rec *httptest.ResponseRecorder
			for i := 0; i < 2; i++ {
				rec = httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			}
			if env := decodeEnvelope(t, rec); env.Error != tt.want {
				t.Errorf("message = %q, want %q", env.Error, tt.want)
			}
		})
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	cfg := RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: &countingLimiter{err: errors.New("redis down")},
		Errors:  response.ErrorWriter{},
		Enabled: true,
	}
	handler := RateLimit(cfg, APIRateLimit(1, time.Minute))(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &countingLimiter{}
	cfg := RateLimitConfig{Logger: discardLogger(), Limiter: limiter, Errors: response.ErrorWriter{}}
	handler := RateLimit(cfg, APIRateLimit(1, time.Minute))(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	if len(limiter.hits) != 0 {
		t.Error("disabled limiter must not be consulted")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr with port", "192.0.2.10:1234", "", "", "192.0.2.10"},
		{"x-forwarded-for first hop", "10.0.0.1:80", "203.0.113.5, 10.0.0.2", "", "203.0.113.5"},
		{"x-real-ip", "10.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"forwarded wins over real ip", "10.0.0.1:80", "203.0.113.5", "198.51.100.9", "203.0.113.5"},
		{"remote addr without port", "192.0.2.10", "", "", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
