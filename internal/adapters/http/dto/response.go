// Package dto provides HTTP request/response data transfer objects and
// RFC 9457 Problem Details error responses for the inbound HTTP adapter layer.
package dto

import (
	"time"

	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/ports"
)

// ServiceResponse represents a single registered service in HTTP responses.
type ServiceResponse struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Dependencies  []string `json:"dependencies,omitempty"`
	AssignedPort  int      `json:"assigned_port"`
	Health        string   `json:"health"`
	RestartCount  int      `json:"restart_count"`
	LastRestartAt string   `json:"last_restart_at,omitempty"`
	RegisteredAt  string   `json:"registered_at"`
}

// ServiceListResponse represents the full service catalog.
type ServiceListResponse struct {
	Services []ServiceResponse `json:"services"`
	Count    int               `json:"count"`
}

// ToServiceResponse converts a descriptor to an HTTP response DTO.
func ToServiceResponse(d *service.Descriptor) ServiceResponse {
	resp := ServiceResponse{
		Name:         d.Name,
		Category:     d.Category,
		Dependencies: d.Dependencies,
		AssignedPort: d.AssignedPort,
		Health:       d.Health.String(),
		RestartCount: d.RestartCount,
		RegisteredAt: d.RegisteredAt.Format(time.RFC3339),
	}
	if !d.LastRestartAt.IsZero() {
		resp.LastRestartAt = d.LastRestartAt.Format(time.RFC3339)
	}
	return resp
}

// ToServiceListResponse converts a descriptor slice to an HTTP list response.
func ToServiceListResponse(descs []service.Descriptor) ServiceListResponse {
	items := make([]ServiceResponse, len(descs))
	for i := range descs {
		items[i] = ToServiceResponse(&descs[i])
	}
	return ServiceListResponse{Services: items, Count: len(items)}
}

// HealthEventResponse represents one health transition in HTTP responses.
type HealthEventResponse struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Timestamp      string `json:"timestamp"`
	ProbeLatencyMS int64  `json:"probe_latency_ms"`
	Reason         string `json:"reason,omitempty"`
}

// ServiceHealthResponse pairs a service with its recent health events,
// oldest first.
type ServiceHealthResponse struct {
	Service ServiceResponse       `json:"service"`
	Events  []HealthEventResponse `json:"events"`
}

// ToServiceHealthResponse converts the application-layer health view.
func ToServiceHealthResponse(view ports.ServiceHealthView) ServiceHealthResponse {
	events := make([]HealthEventResponse, len(view.Events))
	for i, ev := range view.Events {
		events[i] = HealthEventResponse{
			From:           ev.From.String(),
			To:             ev.To.String(),
			Timestamp:      ev.Timestamp.Format(time.RFC3339Nano),
			ProbeLatencyMS: ev.ProbeLatency.Milliseconds(),
			Reason:         ev.Reason,
		}
	}
	return ServiceHealthResponse{
		Service: ToServiceResponse(&view.Service),
		Events:  events,
	}
}

// StartOrderResponse is the dependency-ordered launch sequence.
type StartOrderResponse struct {
	Order []string `json:"order"`
}

// PortRecordResponse represents one port's ledger record.
type PortRecordResponse struct {
	Number           int    `json:"number"`
	State            string `json:"state"`
	Owner            string `json:"owner,omitempty"`
	Pool             string `json:"pool"`
	AllocatedAt      string `json:"allocated_at,omitempty"`
	LastSeenActiveAt string `json:"last_seen_active_at,omitempty"`
}

// PoolStatusResponse summarizes one pool's occupancy.
type PoolStatusResponse struct {
	Pool      string         `json:"pool"`
	Capacity  int            `json:"capacity"`
	Available int            `json:"available"`
	ByState   map[string]int `json:"by_state"`
}

// LedgerResponse is the GET /ports read-model.
type LedgerResponse struct {
	Pools   []PoolStatusResponse `json:"pools"`
	Records []PortRecordResponse `json:"records,omitempty"`
}

// ToLedgerResponse converts the application-layer ledger view.
func ToLedgerResponse(view ports.LedgerView) LedgerResponse {
	resp := LedgerResponse{Pools: make([]PoolStatusResponse, len(view.Pools))}
	for i, ps := range view.Pools {
		byState := make(map[string]int, len(ps.ByState))
		for state, n := range ps.ByState {
			byState[state.String()] = n
		}
		resp.Pools[i] = PoolStatusResponse{
			Pool:      ps.Pool,
			Capacity:  ps.Capacity,
			Available: ps.Available,
			ByState:   byState,
		}
	}
	for _, rec := range view.Records {
		resp.Records = append(resp.Records, toPortRecordResponse(rec))
	}
	return resp
}

func toPortRecordResponse(rec port.Record) PortRecordResponse {
	r := PortRecordResponse{
		Number: rec.Number,
		State:  rec.State.String(),
		Owner:  rec.Owner,
		Pool:   rec.Pool,
	}
	if !rec.AllocatedAt.IsZero() {
		r.AllocatedAt = rec.AllocatedAt.Format(time.RFC3339Nano)
	}
	if !rec.LastSeenActiveAt.IsZero() {
		r.LastSeenActiveAt = rec.LastSeenActiveAt.Format(time.RFC3339Nano)
	}
	return r
}

// AvailablePortsResponse lists the AVAILABLE port numbers in one pool.
type AvailablePortsResponse struct {
	Pool  string `json:"pool"`
	Ports []int  `json:"ports"`
	Count int    `json:"count"`
}
