// Package handlers provides HTTP request handlers for the control API endpoints.
package handlers

import (
	"net/http"

	"github.com/aurora-nexus/portward/internal/adapters/http/dto"
	"github.com/aurora-nexus/portward/internal/ports"
)

// ServiceHandler handles HTTP requests for service registration, health, and
// port confirmation.
type ServiceHandler struct {
	orch ports.Orchestrator
}

// NewServiceHandler creates a new ServiceHandler with the given orchestrator port.
func NewServiceHandler(orch ports.Orchestrator) *ServiceHandler {
	return &ServiceHandler{orch: orch}
}

// Register handles POST /api/v1/services.
func (h *ServiceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterServiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	desc, err := h.orch.RegisterService(r.Context(), req.ToRegisterSpec())
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToServiceResponse(&desc))
}

// List handles GET /api/v1/services.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	descs := h.orch.ListServices(r.Context())
	writeJSON(w, http.StatusOK, dto.ToServiceListResponse(descs))
}

// Deregister handles DELETE /api/v1/services/{name}. The force query
// parameter removes a service even when other services still depend on it.
func (h *ServiceHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	name, err := serviceName(r)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := h.orch.DeregisterService(r.Context(), name, force); err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /api/v1/services/{name}/health.
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	name, err := serviceName(r)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	view, err := h.orch.ServiceHealth(r.Context(), name)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToServiceHealthResponse(view))
}

// StartOrder handles GET /api/v1/services/start-order.
func (h *ServiceHandler) StartOrder(w http.ResponseWriter, r *http.Request) {
	order := h.orch.StartOrder(r.Context())
	writeJSON(w, http.StatusOK, dto.StartOrderResponse{Order: order})
}

// ConfirmPort handles POST /api/v1/services/{name}/confirm-port. Services
// call it after successfully binding their assigned port.
func (h *ServiceHandler) ConfirmPort(w http.ResponseWriter, r *http.Request) {
	name, err := serviceName(r)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	if err := h.orch.ConfirmPort(r.Context(), name); err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReleasePort handles POST /api/v1/services/{name}/release-port.
func (h *ServiceHandler) ReleasePort(w http.ResponseWriter, r *http.Request) {
	name, err := serviceName(r)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	if err := h.orch.ReleasePort(r.Context(), name); err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
