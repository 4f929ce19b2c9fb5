package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/aurora-nexus/portward/internal/adapters/http/middleware"
)

var uuidV4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// serveWithRequestID runs one request through the RequestID middleware and
// returns the ID the handler saw plus the recorder.
func serveWithRequestID(inbound string) (string, *httptest.ResponseRecorder) {
	var got string
	handler := middleware.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", http.NoBody)
	if inbound != "" {
		req.Header.Set("X-Request-ID", inbound)
	}
	handler.ServeHTTP(rec, req)
	return got, rec
}

func TestRequestID_GeneratesUUIDWhenAbsent(t *testing.T) {
	t.Parallel()

	got, rec := serveWithRequestID("")
	if got == "" {
		t.Fatal("no request ID in handler context")
	}
	if !uuidV4.MatchString(got) {
		t.Errorf("generated ID %q is not a UUID v4", got)
	}
	if echo := rec.Header().Get("X-Request-ID"); echo != got {
		t.Errorf("response X-Request-ID = %q, want %q", echo, got)
	}
}

func TestRequestID_KeepsInboundID(t *testing.T) {
	t.Parallel()

	got, rec := serveWithRequestID("supervisor-call-42")
	if got != "supervisor-call-42" {
		t.Errorf("context request ID = %q, want the inbound one", got)
	}
	if echo := rec.Header().Get("X-Request-ID"); echo != "supervisor-call-42" {
		t.Errorf("response X-Request-ID = %q, want the inbound one", echo)
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id, _ := serveWithRequestID("")
		seen[id] = true
	}
	if len(seen) != 100 {
		t.Errorf("unique IDs = %d, want 100", len(seen))
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	t.Parallel()

	if id := middleware.RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("RequestIDFromContext = %q, want empty", id)
	}
}

func TestWithRequestID_RoundTrips(t *testing.T) {
	t.Parallel()

	ctx := middleware.WithRequestID(context.Background(), "req-8000")
	if got := middleware.RequestIDFromContext(ctx); got != "req-8000" {
		t.Errorf("RequestIDFromContext = %q, want %q", got, "req-8000")
	}
}
