// Package supervisor implements the outbound adapter for the external process
// supervisor's HTTP API. The orchestrator never spawns processes itself; it
// asks the supervisor to start a service bound to an assigned port or to stop
// one, and observes the outcome through health probes.
//
// HTTP errors are mapped to domain errors, with one supervisor-specific case:
// a start rejected because the port is already held becomes
// [domain.ErrPortConflict], which the auto-healer treats as grounds for port
// reassignment. The underlying [httpclient.Client] provides circuit breaking,
// rate limiting, retry with exponential backoff, and OpenTelemetry tracing for
// every outbound call.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/platform/httpclient"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Compile-time interface check.
var _ ports.Supervisor = (*Client)(nil)

// maxErrorBodySize limits how much of an error response body we read.
const maxErrorBodySize = 1 << 20 // 1 MB

// Client talks to the supervisor's process API.
type Client struct {
	http   *httpclient.Client
	logger *slog.Logger
}

// New creates a supervisor client sending requests through the given
// [httpclient.Client]. The client's BaseURL should point at the supervisor's
// API root (e.g. "http://localhost:7071").
func New(client *httpclient.Client, logger *slog.Logger) *Client {
	return &Client{http: client, logger: logger}
}

// startRequest is the launch payload. The supervisor binds the process to the
// given port; everything else about the process is its own business.
type startRequest struct {
	Port int `json:"port"`
}

// Start asks the supervisor to launch the named service on the given port.
func (c *Client) Start(ctx context.Context, name string, port int) error {
	path := fmt.Sprintf("/api/v1/processes/%s/start", url.PathEscape(name))
	return c.post(ctx, path, startRequest{Port: port})
}

// Stop asks the supervisor to stop the named service. A 404 from the
// supervisor means the process is not running, which is not an error here.
func (c *Client) Stop(ctx context.Context, name string) error {
	path := fmt.Sprintf("/api/v1/processes/%s/stop", url.PathEscape(name))
	err := c.post(ctx, path, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// Name identifies the supervisor in the readiness registry. Together with
// HealthCheck this lets Client satisfy ports.HealthChecker.
func (c *Client) Name() string {
	return c.http.Name()
}

// HealthCheck reports supervisor availability from the circuit breaker state;
// no network call is made.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.http.HealthCheck(ctx)
}

func (c *Client) post(ctx context.Context, path string, reqBody any) error {
	target := c.http.BaseURL() + path

	var body io.Reader = http.NoBody
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling body for %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", path, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		// httpclient.Do can return both resp and err when retries are
		// exhausted on a retryable status. Translate the final response
		// rather than surfacing the raw retry error.
		if resp != nil {
			defer c.closeBody(ctx, resp)
			return translateError(resp)
		}
		c.logger.ErrorContext(ctx, "supervisor request failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("supervisor %s: %w: %s", path, domain.ErrUnavailable, err.Error())
	}
	defer c.closeBody(ctx, resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		translated := translateError(resp)
		c.logger.ErrorContext(ctx, "supervisor rejected request",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return translated
	}
	return nil
}

func (c *Client) closeBody(ctx context.Context, resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.WarnContext(ctx, "failed to close response body",
			slog.String("error", err.Error()),
		)
	}
}

// problemDetail is the supervisor's RFC 9457 error shape.
type problemDetail struct {
	Detail string `json:"detail"`
}

// translateError maps a supervisor error response to a domain error. A 409,
// or any detail text mentioning the address being in use, means another
// process holds the requested port.
func translateError(resp *http.Response) error {
	detail := parseDetail(resp)
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusConflict || domain.ReasonIsPortConflict(detail):
		return fmt.Errorf("%s: %w", detail, domain.ErrPortConflict)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", detail, domain.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w", detail, domain.ErrValidation)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%s: %w", detail, domain.ErrUnavailable)
	default:
		return fmt.Errorf("unexpected supervisor status %d: %s", resp.StatusCode, detail)
	}
}

// parseDetail reads a problem+json detail from the response body. Returns an
// empty string when the body is not a problem document.
func parseDetail(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return ""
	}
	var pd problemDetail
	if err := json.Unmarshal(raw, &pd); err != nil {
		return ""
	}
	return pd.Detail
}
