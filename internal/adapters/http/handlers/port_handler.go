package handlers

import (
	"net/http"

	"github.com/aurora-nexus/portward/internal/adapters/http/dto"
	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/ports"
)

// PortHandler handles HTTP requests for the port ledger read-model.
type PortHandler struct {
	orch ports.Orchestrator
}

// NewPortHandler creates a new PortHandler with the given orchestrator port.
func NewPortHandler(orch ports.Orchestrator) *PortHandler {
	return &PortHandler{orch: orch}
}

// Ledger handles GET /api/v1/ports. Per-pool occupancy is always included;
// individual records only with ?records=true.
func (h *PortHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	includeRecords := r.URL.Query().Get("records") == "true"
	view := h.orch.Ports(r.Context(), includeRecords)
	writeJSON(w, http.StatusOK, dto.ToLedgerResponse(view))
}

// Available handles GET /api/v1/ports/available?pool={pool}.
func (h *PortHandler) Available(w http.ResponseWriter, r *http.Request) {
	pool := r.URL.Query().Get("pool")
	if pool == "" {
		dto.WriteErrorResponse(w, r, &domain.ValidationError{
			Fields: map[string]string{"pool": "is required"},
		})
		return
	}

	numbers, err := h.orch.AvailablePorts(r.Context(), pool)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AvailablePortsResponse{
		Pool:  pool,
		Ports: numbers,
		Count: len(numbers),
	})
}
