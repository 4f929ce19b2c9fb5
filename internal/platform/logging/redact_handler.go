package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// SensitiveHeaders names the HTTP headers (lowercase) that carry credentials.
// The masq layer below and the middleware's RedactHeaders both read this set,
// so the two redaction points cannot drift apart.
var SensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
}

// Value-shape patterns that catch secrets appearing inside arbitrary string
// fields, where field-name redaction cannot see them.
var (
	// "Bearer <token>" wherever it shows up.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`)

	// Raw JWTs (header.payload.signature). Segments under 10 chars are
	// skipped so dotted version strings don't trip it.
	jwtPattern = regexp.MustCompile(`[a-zA-Z0-9\-_]{10,}\.[a-zA-Z0-9\-_]{10,}\.[a-zA-Z0-9\-_]{10,}`)

	// Inline "api_key=..." / "apikey: ..." fragments.
	apiKeyInlinePattern = regexp.MustCompile(`(?i)(api[_\-]?key|apikey)\s*[:=]\s*\S+`)
)

// fixedRedactOptions counts the masq options beyond SensitiveHeaders:
// 3 field names, 2 prefixes, 3 regexes.
const fixedRedactOptions = 8

// newRedactAttr builds the masq ReplaceAttr hook wired into every handler
// this package constructs: field-name redaction for known secret fields plus
// the value-shape regexes above.
func newRedactAttr() func([]string, slog.Attr) slog.Attr {
	opts := make([]masq.Option, 0, fixedRedactOptions+len(SensitiveHeaders))

	for name := range SensitiveHeaders {
		opts = append(opts, masq.WithFieldName(name))
	}

	opts = append(opts,
		masq.WithFieldName("password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("token"),

		masq.WithFieldPrefix("secret_"),
		masq.WithFieldPrefix("api_key"),

		masq.WithRegex(bearerPattern),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(apiKeyInlinePattern),
	)

	return masq.New(opts...)
}
