// Package middleware provides the inbound HTTP pipeline for the control API:
//
//	Recovery → RequestID → CorrelationID → OpenTelemetry → Logging → Timeout → Handler
//
// Every middleware has the shape func(http.Handler) http.Handler and composes
// through Chain.
package middleware

import "net/http"

// responseWriter records the status code and body size as they pass through,
// for the recovery, otel, and logging middleware. The zero status is 200
// because net/http writes an implicit 200 on the first body write.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
	written       int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code written; later calls are dropped
// rather than passed through, matching net/http's superfluous-call behavior
// without the log noise.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.headerWritten = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap exposes the wrapped writer to http.ResponseController and to
// http.Flusher / http.Hijacker assertions.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
