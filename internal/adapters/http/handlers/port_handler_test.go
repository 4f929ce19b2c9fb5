package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurora-nexus/portward/internal/adapters/http/dto"
	"github.com/aurora-nexus/portward/internal/adapters/http/handlers"
	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/ports"
)

func testLedgerView() ports.LedgerView {
	return ports.LedgerView{
		Pools: []ports.PoolStatus{
			{
				Pool:     "web",
				Capacity: 100,
				ByState: map[port.State]int{
					port.StateAvailable: 98,
					port.StateInUse:     2,
				},
				Available: 98,
			},
		},
		Records: []port.Record{
			{Number: 8001, State: port.StateInUse, Owner: "web-frontend", Pool: "web"},
		},
	}
}

func TestLedger_PoolsOnly(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{ledgerView: ports.LedgerView{
		Pools: testLedgerView().Pools,
	}}
	h := handlers.NewPortHandler(orch)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ports", nil)
	h.Ledger(rec, req)

	requireStatus(t, rec, http.StatusOK)
	if orch.gotRecords {
		t.Error("includeRecords = true, want false")
	}

	resp := decodeJSON[dto.LedgerResponse](t, rec)
	if len(resp.Pools) != 1 {
		t.Fatalf("len(Pools) = %d, want 1", len(resp.Pools))
	}
	if resp.Pools[0].Available != 98 {
		t.Errorf("Available = %d, want 98", resp.Pools[0].Available)
	}
	if resp.Pools[0].ByState["IN_USE"] != 2 {
		t.Errorf("ByState[IN_USE] = %d, want 2", resp.Pools[0].ByState["IN_USE"])
	}
	if resp.Records != nil {
		t.Errorf("Records = %v, want nil without ?records=true", resp.Records)
	}
}

func TestLedger_WithRecords(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{ledgerView: testLedgerView()}
	h := handlers.NewPortHandler(orch)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ports?records=true", nil)
	h.Ledger(rec, req)

	requireStatus(t, rec, http.StatusOK)
	if !orch.gotRecords {
		t.Error("includeRecords = false, want true")
	}

	resp := decodeJSON[dto.LedgerResponse](t, rec)
	if len(resp.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(resp.Records))
	}
	if resp.Records[0].Owner != "web-frontend" {
		t.Errorf("Owner = %q, want %q", resp.Records[0].Owner, "web-frontend")
	}
	if resp.Records[0].State != "IN_USE" {
		t.Errorf("State = %q, want %q", resp.Records[0].State, "IN_USE")
	}
}

func TestAvailable_ReturnsPorts(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{available: []int{8002, 8003, 8005}}
	h := handlers.NewPortHandler(orch)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ports/available?pool=web", nil)
	h.Available(rec, req)

	requireStatus(t, rec, http.StatusOK)
	if orch.gotPool != "web" {
		t.Errorf("pool = %q, want %q", orch.gotPool, "web")
	}

	resp := decodeJSON[dto.AvailablePortsResponse](t, rec)
	if resp.Count != 3 {
		t.Fatalf("Count = %d, want 3", resp.Count)
	}
	if resp.Ports[0] != 8002 {
		t.Errorf("Ports[0] = %d, want 8002", resp.Ports[0])
	}
}

func TestAvailable_MissingPool(t *testing.T) {
	t.Parallel()

	h := handlers.NewPortHandler(&fakeOrchestrator{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ports/available", nil)
	h.Available(rec, req)

	requireStatus(t, rec, http.StatusBadRequest)
}

func TestAvailable_UnknownPool(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{availableErr: domain.ErrNotFound}
	h := handlers.NewPortHandler(orch)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ports/available?pool=ghost", nil)
	h.Available(rec, req)

	requireStatus(t, rec, http.StatusNotFound)
}
