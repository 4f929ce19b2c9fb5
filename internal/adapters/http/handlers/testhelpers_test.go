package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/ports"
)

var testTime = time.Date(2026, 2, 12, 15, 4, 5, 0, time.UTC)

func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func validDescriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "web-frontend",
		Category:     "web",
		Dependencies: []string{"api-backend"},
		AssignedPort: 8001,
		Health:       service.HealthHealthy,
		RegisteredAt: testTime,
	}
}

// fakeOrchestrator implements ports.Orchestrator with canned responses.
type fakeOrchestrator struct {
	registered   service.Descriptor
	registerErr  error
	gotSpec      ports.RegisterSpec
	services     []service.Descriptor
	healthView   ports.ServiceHealthView
	healthErr    error
	deregErr     error
	gotForce     bool
	confirmErr   error
	releaseErr   error
	order        []string
	ledgerView   ports.LedgerView
	gotRecords   bool
	available    []int
	availableErr error
	gotPool      string
}

func (f *fakeOrchestrator) RegisterService(_ context.Context, spec ports.RegisterSpec) (service.Descriptor, error) {
	f.gotSpec = spec
	return f.registered, f.registerErr
}

func (f *fakeOrchestrator) DeregisterService(_ context.Context, name string, force bool) error {
	f.gotForce = force
	if f.deregErr != nil {
		return f.deregErr
	}
	if name != f.registered.Name {
		return domain.ErrNotFound
	}
	return nil
}

func (f *fakeOrchestrator) ListServices(context.Context) []service.Descriptor {
	return f.services
}

func (f *fakeOrchestrator) ServiceHealth(_ context.Context, _ string) (ports.ServiceHealthView, error) {
	return f.healthView, f.healthErr
}

func (f *fakeOrchestrator) ConfirmPort(context.Context, string) error { return f.confirmErr }
func (f *fakeOrchestrator) ReleasePort(context.Context, string) error { return f.releaseErr }
func (f *fakeOrchestrator) StartOrder(context.Context) []string       { return f.order }

func (f *fakeOrchestrator) Ports(_ context.Context, includeRecords bool) ports.LedgerView {
	f.gotRecords = includeRecords
	return f.ledgerView
}

func (f *fakeOrchestrator) AvailablePorts(_ context.Context, pool string) ([]int, error) {
	f.gotPool = pool
	return f.available, f.availableErr
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("failed to encode JSON body: %v", err)
	}
	return buf
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return result
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}
