//go:build e2e

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Meta    *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

type epkResponse struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

type client struct {
	t       *testing.T
	baseURL string
	token   string
	http    *http.Client
}

// TestE2ESmoke drives a running server through the artist and visitor flows.
func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("PRESSKIT_BASE_URL", "http://localhost:5000") + "/api/v1"
	c := &client{t: t, baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}

	suffix := strings.ToLower(ulid.Make().String()[16:])
	var s session
	c.mustDo(http.MethodPost, "/auth/register", map[string]string{
		"email":    fmt.Sprintf("e2e-%s@example.com", suffix),
		"username": "e2e" + suffix,
		"password": "Sup3r$ecret!",
	}, http.StatusCreated, &s)
	if s.Token == "" {
		t.Fatal("register returned no token")
	}
	c.token = s.Token

	var epk epkResponse
	c.mustDo(http.MethodPost, "/epks", map[string]any{"title": "E2E Night Drive " + suffix}, http.StatusCreated, &epk)
	c.mustDo(http.MethodPut, "/epks/"+epk.ID, map[string]any{"status": "published"}, http.StatusOK, &epk)
	if epk.Status != "published" {
		t.Fatalf("status = %q after publish", epk.Status)
	}

	// Visitor side: no bearer token.
	visitor := &client{t: t, baseURL: baseURL, http: c.http}
	visitor.mustDo(http.MethodGet, "/epks/slug/"+epk.Slug, nil, http.StatusOK, nil)
	visitor.mustDo(http.MethodPost, "/epks/"+epk.ID+"/interactions", map[string]string{"type": "play"}, http.StatusOK, nil)
	visitor.mustDo(http.MethodPost, "/epks/"+epk.ID+"/contact", map[string]string{
		"name":    "Booker",
		"email":   "booker@example.com",
		"subject": "Festival slot",
		"message": "We would love to have you play our summer festival.",
	}, http.StatusCreated, nil)

	env := c.mustDo(http.MethodGet, "/contact/inquiries", nil, http.StatusOK, nil)
	if env.Meta == nil || env.Meta.Total < 1 {
		t.Fatalf("inquiry list meta = %+v, want at least one", env.Meta)
	}

	var report struct {
		Live struct {
			PageViews int64 `json:"pageViews"`
		} `json:"live"`
	}
	c.mustDo(http.MethodGet, "/epks/"+epk.ID+"/analytics", nil, http.StatusOK, &report)
	if report.Live.PageViews < 1 {
		t.Errorf("page views = %d, want at least 1", report.Live.PageViews)
	}

	c.mustDo(http.MethodDelete, "/epks/"+epk.ID, nil, http.StatusOK, nil)
	visitor.mustDo(http.MethodGet, "/epks/slug/"+epk.Slug, nil, http.StatusNotFound, nil)
}

func (c *client) mustDo(method, path string, body any, wantStatus int, out any) envelope {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal %s %s: %v", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		c.t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, wantStatus, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.t.Fatalf("%s %s: decode envelope: %v: %s", method, path, err, raw)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			c.t.Fatalf("%s %s: decode data: %v: %s", method, path, err, env.Data)
		}
	}
	return env
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
