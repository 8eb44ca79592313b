package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/presskit/presskit/internal/apperror"
)

func TestNewMeta(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		page, limit int
		total       int64
		wantPages   int
	}{
		{1, 10, 0, 0},
		{1, 10, 10, 1},
		{2, 10, 11, 2},
		{1, 3, 10, 4},
		{1, 0, 10, 0},
	}

	for _, tc := range testCases {
		if got := NewMeta(tc.page, tc.limit, tc.total); got.TotalPages != tc.wantPages {
			t.Errorf("NewMeta(%d,%d,%d).TotalPages = %d, want %d", tc.page, tc.limit, tc.total, got.TotalPages, tc.wantPages)
		}
	}
}

func TestErrorWriter_DetailOutsideProduction(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	err := errors.New("pq: connection refused")

	rec := httptest.NewRecorder()
	ErrorWriter{Production: false}.Write(rec, req, err)
	var dev Envelope
	if decodeErr := json.NewDecoder(rec.Body).Decode(&dev); decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if rec.Code != http.StatusInternalServerError || dev.Error != apperror.MsgServerError || dev.Detail == "" {
		t.Errorf("unexpected dev envelope: %d %+v", rec.Code, dev)
	}

	rec = httptest.NewRecorder()
	ErrorWriter{Production: true}.Write(rec, req, err)
	var prod Envelope
	if decodeErr := json.NewDecoder(rec.Body).Decode(&prod); decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if prod.Detail != "" || prod.Success {
		t.Errorf("production envelope leaked detail: %+v", prod)
	}
}

func TestSuccess(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"id": "1"}, "created")

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %s", ct)
	}
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Message != "created" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}
