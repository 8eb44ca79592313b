package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const clientOrigin = "http://localhost:3000"

func corsHandler(cfg CORSConfig) (http.Handler, *bool) {
	reached := new(bool)
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})), reached
}

func TestCORS_Origins(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig(clientOrigin, "https://*.presskit.app", "*")

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"web client", clientOrigin, true},
		{"web client uppercase", "HTTP://LOCALHOST:3000", true},
		{"artist subdomain", "https://nova.presskit.app", true},
		{"nested subdomain", "https://eu.cdn.presskit.app", true},
		{"apex is not a subdomain", "https://presskit.app", false},
		{"lookalike domain", "https://evilpresskit.app", false},
		{"suffix trick", "https://presskit.app.evil.test", false},
		{"wrong scheme", "http://nova.presskit.app", false},
		{"other port", "http://localhost:4000", false},
		{"wildcard ignored with credentials", "https://random.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, reached := corsHandler(cfg)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/epks", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if !*reached {
				t.Fatal("simple request must reach the handler")
			}
			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.allowed && got != "" {
				t.Errorf("Allow-Origin = %q, want none", got)
			}
			if vary := rec.Header().Values("Vary"); len(vary) == 0 || vary[0] != "Origin" {
				t.Errorf("Vary = %v, want Origin", vary)
			}
		})
	}
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig("*")
	cfg.AllowCredentials = false
	h, _ := corsHandler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/epk/public/night-drive", nil)
	req.Header.Set("Origin", "https://blog.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://blog.example.org" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want none", got)
	}
}

func TestCORS_SameOriginUntouched(t *testing.T) {
	t.Parallel()

	h, reached := corsHandler(DefaultCORSConfig(clientOrigin))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !*reached {
		t.Fatal("handler not reached")
	}
	if len(rec.Header()) != 0 {
		t.Errorf("unexpected headers %v", rec.Header())
	}
}

func TestCORS_ExposesRateLimitHeaders(t *testing.T) {
	t.Parallel()

	h, _ := corsHandler(DefaultCORSConfig(clientOrigin))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", nil)
	req.Header.Set("Origin", clientOrigin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	for _, want := range []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"} {
		if !strings.Contains(exposed, want) {
			t.Errorf("Expose-Headers %q missing %s", exposed, want)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantAllow  bool
	}{
		{"inquiry status update", clientOrigin, http.MethodPatch, http.StatusNoContent, true},
		{"epk delete", clientOrigin, http.MethodDelete, http.StatusNoContent, true},
		{"lowercase method", clientOrigin, "put", http.StatusNoContent, true},
		{"unlisted method", clientOrigin, "TRACE", http.StatusForbidden, false},
		{"unknown origin", "https://evil.test", http.MethodPatch, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, reached := corsHandler(DefaultCORSConfig(clientOrigin))
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/contact/01HG/status", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", tt.method)
			req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if *reached {
				t.Error("preflight must not reach the handler")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			methods := rec.Header().Get("Access-Control-Allow-Methods")
			if tt.wantAllow {
				if !strings.Contains(methods, http.MethodPatch) {
					t.Errorf("Allow-Methods = %q, want PATCH", methods)
				}
				if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
					t.Errorf("Allow-Headers = %q, want Authorization", got)
				}
				if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
					t.Errorf("Max-Age = %q, want 86400", got)
				}
			} else if methods != "" {
				t.Errorf("Allow-Methods = %q, want none", methods)
			}
		})
	}
}

func TestCORS_BareOptionsPassesThrough(t *testing.T) {
	t.Parallel()

	h, reached := corsHandler(DefaultCORSConfig(clientOrigin))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/epks", nil)
	req.Header.Set("Origin", clientOrigin)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !*reached {
		t.Error("OPTIONS without Access-Control-Request-Method should reach the handler")
	}
}
