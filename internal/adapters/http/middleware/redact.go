package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aurora-nexus/portward/internal/platform/logging"
)

// RedactHeaders flattens an http.Header into slog attributes for request
// logging. Headers named in logging.SensitiveHeaders are replaced with
// "[REDACTED]"; multi-value headers are comma-joined.
func RedactHeaders(headers http.Header) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(headers))
	for key, vals := range headers {
		if logging.SensitiveHeaders[strings.ToLower(key)] {
			attrs = append(attrs, slog.String(key, "[REDACTED]"))
			continue
		}
		attrs = append(attrs, slog.String(key, strings.Join(vals, ",")))
	}
	return attrs
}
