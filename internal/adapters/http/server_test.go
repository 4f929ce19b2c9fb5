package http_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	adapthttp "github.com/aurora-nexus/portward/internal/adapters/http"
	"github.com/aurora-nexus/portward/internal/platform/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func startServer(t *testing.T, cfg config.ServerConfig, handler http.Handler) (*adapthttp.Server, chan error) {
	t.Helper()
	s := adapthttp.NewServer(cfg, handler, discardLogger())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	// Let the listener come up before the test proceeds.
	time.Sleep(50 * time.Millisecond)
	return s, errCh
}

func TestNewServer_ToleratesNilLogger(t *testing.T) {
	t.Parallel()

	s := adapthttp.NewServer(config.ServerConfig{Host: "127.0.0.1"}, http.NotFoundHandler(), nil)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestServer_Addr(t *testing.T) {
	t.Parallel()

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 7070}
	s := adapthttp.NewServer(cfg, http.NotFoundHandler(), discardLogger())

	if got := s.Addr(); got != "127.0.0.1:7070" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:7070")
	}
}

func TestServer_GracefulShutdownReturnsNil(t *testing.T) {
	t.Parallel()

	cfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	s, errCh := startServer(t, cfg, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start() error after graceful shutdown: %v", err)
	}
}

func TestServer_ShutdownWithoutDeadlineGetsDefault(t *testing.T) {
	t.Parallel()

	s, errCh := startServer(t, config.ServerConfig{Host: "127.0.0.1"}, http.NotFoundHandler())

	// No deadline on the context; the server caps the drain at 10s itself.
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start() error after shutdown: %v", err)
	}
}
