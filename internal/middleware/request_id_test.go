package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func serveRequestID(t *testing.T, req *http.Request) (requestID, traceID string, rec *httptest.ResponseRecorder) {
	t.Helper()
	rec = httptest.NewRecorder()
	RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
		traceID = GetTraceID(r.Context())
	})).ServeHTTP(rec, req)
	return requestID, traceID, rec
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	t.Parallel()

	id, _, rec := serveRequestID(t, httptest.NewRequest(http.MethodGet, "/api/v1/epks", nil))

	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected generated uuid, got %q", id)
	}
	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("response header = %q, want %q", got, id)
	}
}

func TestRequestID_IncomingHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		reused bool
	}{
		{"gateway id", "req_01HG.edge-7", true},
		{"uuid", "3f2b7c1e-4a7d-4b8e-9c61-0d2e5f6a7b8c", true},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"log injection", "abc\ninjected=1", false},
		{"spaces", "abc def", false},
		{"unicode", "énorme", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			id, _, _ := serveRequestID(t, req)

			if got := id == tt.header; got != tt.reused {
				t.Errorf("reused = %v, want %v (id %q)", got, tt.reused, id)
			}
			if !tt.reused {
				if _, err := uuid.Parse(id); err != nil {
					t.Errorf("expected replacement uuid, got %q", id)
				}
			}
		})
	}
}

func TestRequestID_Traceparent(t *testing.T) {
	t.Parallel()

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "00-" + traceID + "-00f067aa0ba902b7-01", traceID},
		{"future version with extra field", "01-" + traceID + "-00f067aa0ba902b7-01-extra", traceID},
		{"missing", "", ""},
		{"invalid version", "ff-" + traceID + "-00f067aa0ba902b7-01", ""},
		{"version 00 with extra field", "00-" + traceID + "-00f067aa0ba902b7-01-extra", ""},
		{"zero trace id", "00-00000000000000000000000000000000-00f067aa0ba902b7-01", ""},
		{"zero parent id", "00-" + traceID + "-0000000000000000-01", ""},
		{"uppercase", "00-" + strings.ToUpper(traceID) + "-00f067aa0ba902b7-01", ""},
		{"short trace id", "00-4bf92f35-00f067aa0ba902b7-01", ""},
		{"garbage", "not-a-trace", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(TraceparentHeader, tt.header)
			}
			_, got, _ := serveRequestID(t, req)

			if got != tt.want {
				t.Errorf("trace id = %q, want %q", got, tt.want)
			}
		})
	}
}
