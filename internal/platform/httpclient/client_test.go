package httpclient_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/aurora-nexus/portward/internal/platform/config"
	"github.com/aurora-nexus/portward/internal/platform/httpclient"
)

func clientConfig(baseURL string) *config.SupervisorConfig {
	return &config.SupervisorConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxFailures:   3,
			Timeout:       1 * time.Second,
			HalfOpenLimit: 1,
		},
	}
}

// newClient spins up an httptest server around handler and returns a client
// pointed at it. mutate, when non-nil, tweaks the config before construction.
func newClient(t *testing.T, handler http.HandlerFunc, mutate func(*config.SupervisorConfig)) (*httpclient.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := clientConfig(srv.URL)
	if mutate != nil {
		mutate(cfg)
	}
	return httpclient.New(cfg, "supervisor", nil, slog.New(slog.DiscardHandler)), srv
}

// get issues a GET through the client and returns the response. Any response
// body is closed at test cleanup.
func get(t *testing.T, ctx context.Context, c *httpclient.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, doErr := c.Do(ctx, req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, doErr
}

func TestDo_Success(t *testing.T) {
	t.Parallel()

	client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"running"}`))
	}, nil)

	resp, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes/web-frontend")
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if got := string(body); got != `{"status":"running"}` {
		t.Errorf("body = %q, want the supervisor payload", got)
	}
}

func TestDo_RetriesTransientStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		failStatus int
		failCount  int
		wantCalls  int32
	}{
		{"5xx retried until success", http.StatusInternalServerError, 2, 3},
		{"429 retried until success", http.StatusTooManyRequests, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if int(calls.Add(1)) <= tt.failCount {
					w.WriteHeader(tt.failStatus)
					return
				}
				w.WriteHeader(http.StatusOK)
			}, nil)

			resp, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes")
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, nil)

	resp, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes")
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want exactly 1 for a 4xx", got)
	}
}

func TestDo_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("supervisor draining"))
	}, nil)

	resp, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes")
	if err == nil {
		t.Fatal("Do() error = nil, want an error once retries run out")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3 (MaxAttempts)", got)
	}

	// The final attempt's response comes back alongside the error so the
	// caller can inspect the payload.
	if resp == nil {
		t.Fatal("resp is nil, want the last attempt's response")
	}
	body, _ := io.ReadAll(resp.Body)
	if got := string(body); got != "supervisor draining" {
		t.Errorf("body = %q, want %q", got, "supervisor draining")
	}
}

func TestDo_RewindsBodyBetweenAttempts(t *testing.T) {
	t.Parallel()

	var (
		calls  atomic.Int32
		bodies []string
	)
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, nil)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		srv.URL+"/api/v1/processes/web-frontend/start", strings.NewReader(`{"port":8100}`))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if len(bodies) != 2 {
		t.Fatalf("server calls = %d, want 2", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"port":8100}` {
			t.Errorf("attempt %d saw body %q, want the original payload", i+1, b)
		}
	}
}

func TestDo_ForwardsContextIDs(t *testing.T) {
	t.Parallel()

	var gotReqID, gotCorrID string
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		gotCorrID = r.Header.Get("X-Correlation-ID")
	}, nil)

	ctx := httpclient.WithRequestID(context.Background(), "req-123")
	ctx = httpclient.WithCorrelationID(ctx, "heal-web-frontend-7")

	if _, err := get(t, ctx, client, srv.URL+"/api/v1/processes"); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if gotReqID != "req-123" {
		t.Errorf("X-Request-ID = %q, want %q", gotReqID, "req-123")
	}
	if gotCorrID != "heal-web-frontend-7" {
		t.Errorf("X-Correlation-ID = %q, want %q", gotCorrID, "heal-web-frontend-7")
	}
}

func TestDo_OmitsIDHeadersWhenContextIsBare(t *testing.T) {
	t.Parallel()

	var gotReqID, gotCorrID string
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		gotCorrID = r.Header.Get("X-Correlation-ID")
	}, nil)

	if _, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes"); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if gotReqID != "" || gotCorrID != "" {
		t.Errorf("ID headers = (%q, %q), want both empty", gotReqID, gotCorrID)
	}
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *config.SupervisorConfig) {
		cfg.CircuitBreaker.MaxFailures = 1
		cfg.Retry.MaxAttempts = 1
	})

	// One failure trips the breaker at MaxFailures=1.
	_, _ = get(t, context.Background(), client, srv.URL+"/api/v1/processes")

	before := calls.Load()
	_, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes")
	if err == nil {
		t.Fatal("Do() error = nil, want rejection from the open breaker")
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want gobreaker.ErrOpenState", err)
	}
	if calls.Load() != before {
		t.Error("open breaker still let a request reach the server")
	}
}

func TestDo_BreakerClosesAfterSuccessfulProbe(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	failing.Store(true)

	client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}, func(cfg *config.SupervisorConfig) {
		cfg.CircuitBreaker.MaxFailures = 1
		cfg.CircuitBreaker.Timeout = 100 * time.Millisecond
		cfg.Retry.MaxAttempts = 1
	})

	// Trip the breaker, then confirm it rejects.
	_, _ = get(t, context.Background(), client, srv.URL+"/api/v1/processes")
	if _, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want open breaker before recovery", err)
	}

	// Let the breaker go half-open, then heal the downstream.
	time.Sleep(150 * time.Millisecond)
	failing.Store(false)

	resp, err := get(t, context.Background(), client, srv.URL+"/api/v1/processes")
	if err != nil {
		t.Fatalf("Do() error = %v, want the half-open probe to succeed", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d after recovery", resp.StatusCode, http.StatusOK)
	}
}

func TestDo_CanceledContext(t *testing.T) {
	t.Parallel()

	client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := get(t, ctx, client, srv.URL+"/api/v1/processes"); err == nil {
		t.Fatal("Do() error = nil, want a context error")
	}
}

func TestClient_Name(t *testing.T) {
	t.Parallel()

	client := httpclient.New(clientConfig("http://localhost"), "supervisor", nil, slog.New(slog.DiscardHandler))
	if got := client.Name(); got != "supervisor" {
		t.Errorf("Name() = %q, want %q", got, "supervisor")
	}
}

func TestClient_HealthCheckFollowsBreakerState(t *testing.T) {
	t.Parallel()

	t.Run("fresh client is healthy", func(t *testing.T) {
		t.Parallel()

		client := httpclient.New(clientConfig("http://localhost"), "supervisor", nil, slog.New(slog.DiscardHandler))
		if err := client.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() = %v, want nil while the breaker is closed", err)
		}
	})

	t.Run("open breaker reports failing", func(t *testing.T) {
		t.Parallel()

		client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, func(cfg *config.SupervisorConfig) {
			cfg.CircuitBreaker.MaxFailures = 1
			cfg.Retry.MaxAttempts = 1
		})
		_, _ = get(t, context.Background(), client, srv.URL+"/api/v1/processes")

		err := client.HealthCheck(context.Background())
		if err == nil || !strings.Contains(err.Error(), "failing") {
			t.Errorf("HealthCheck() = %v, want an error mentioning %q", err, "failing")
		}
	})

	t.Run("half-open breaker reports degraded", func(t *testing.T) {
		t.Parallel()

		client, srv := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, func(cfg *config.SupervisorConfig) {
			cfg.CircuitBreaker.MaxFailures = 1
			cfg.CircuitBreaker.Timeout = 100 * time.Millisecond
			cfg.Retry.MaxAttempts = 1
		})
		_, _ = get(t, context.Background(), client, srv.URL+"/api/v1/processes")

		time.Sleep(150 * time.Millisecond)

		err := client.HealthCheck(context.Background())
		if err == nil || !strings.Contains(err.Error(), "degraded") {
			t.Errorf("HealthCheck() = %v, want an error mentioning %q", err, "degraded")
		}
	})
}
