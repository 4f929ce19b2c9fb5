package middleware

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/aurora-nexus/portward/internal/platform/httpclient"
)

const headerRequestID = "X-Request-ID"

// requestIDKey is this package's own context key. httpclient keeps a separate
// key so neither package needs to import the other for reads.
type requestIDKey struct{}

// WithRequestID stores the request ID under this package's key and under
// httpclient's, so outbound supervisor calls carry X-Request-ID without any
// handler involvement.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return httpclient.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the stored request ID, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID assigns each request an X-Request-ID: the inbound header when the
// caller sent one, a fresh UUID v4 otherwise. The ID lands in the request
// context and is echoed as a response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerRequestID)
			if id == "" {
				id = newRequestID()
			}
			ctx := WithRequestID(r.Context(), id)
			w.Header().Set(headerRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// newRequestID builds a random UUID v4 from crypto/rand.
func newRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
