package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurora-nexus/portward/internal/adapters/http/middleware"
)

func TestCorrelationID_KeepsInboundID(t *testing.T) {
	t.Parallel()

	var got string
	handler := middleware.CorrelationID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/services/web-frontend/health", http.NoBody)
	req.Header.Set("X-Correlation-ID", "heal-web-frontend-7")
	handler.ServeHTTP(rec, req)

	if got != "heal-web-frontend-7" {
		t.Errorf("context correlation ID = %q, want the inbound one", got)
	}
	if echo := rec.Header().Get("X-Correlation-ID"); echo != "heal-web-frontend-7" {
		t.Errorf("response X-Correlation-ID = %q, want the inbound one", echo)
	}
}

func TestCorrelationID_FallsBackToRequestID(t *testing.T) {
	t.Parallel()

	var got string
	handler := middleware.RequestID()(
		middleware.CorrelationID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = middleware.CorrelationIDFromContext(r.Context())
		})),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ports", http.NoBody))

	reqID := rec.Header().Get("X-Request-ID")
	if reqID == "" {
		t.Fatal("X-Request-ID response header is empty")
	}
	if got != reqID {
		t.Errorf("correlation ID = %q, want request ID %q", got, reqID)
	}
}

func TestCorrelationIDFromContext_Empty(t *testing.T) {
	t.Parallel()

	if id := middleware.CorrelationIDFromContext(context.Background()); id != "" {
		t.Errorf("CorrelationIDFromContext = %q, want empty", id)
	}
}

func TestWithCorrelationID_RoundTrips(t *testing.T) {
	t.Parallel()

	ctx := middleware.WithCorrelationID(context.Background(), "corr-heal-1")
	if got := middleware.CorrelationIDFromContext(ctx); got != "corr-heal-1" {
		t.Errorf("CorrelationIDFromContext = %q, want %q", got, "corr-heal-1")
	}
}
