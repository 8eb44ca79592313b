package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServeAndShutdown(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	srv := New(ok, Config{ShutdownTimeout: time.Second}, discardLogger())

	var order []string
	srv.OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	srv.OnShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("flush failed")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "second: flush failed") {
			t.Fatalf("err = %v, want component error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	if strings.Join(order, ",") != "second,first" {
		t.Errorf("shutdown order = %v, want reverse registration", order)
	}
}

func TestNewDefaults(t *testing.T) {
	srv := New(http.NotFoundHandler(), Config{Port: 5000}, discardLogger())

	if srv.Addr() != ":5000" {
		t.Errorf("addr = %q", srv.Addr())
	}
	if srv.httpServer.ReadHeaderTimeout != 5*time.Second {
		t.Errorf("read header timeout = %v", srv.httpServer.ReadHeaderTimeout)
	}
	if srv.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdown timeout = %v", srv.shutdownTimeout)
	}
}
