package ports

import (
	"context"

	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/domain/service"
)

// PoolStatus summarizes one pool's record counts by state.
type PoolStatus struct {
	Pool      string             `json:"pool"`
	Capacity  int                `json:"capacity"`
	ByState   map[port.State]int `json:"by_state"`
	Available int                `json:"available"`
}

// LedgerView is a read-model of the Port Ledger exposed through GET /ports.
// Records is populated only when individual records are requested.
type LedgerView struct {
	Pools   []PoolStatus  `json:"pools"`
	Records []port.Record `json:"records,omitempty"`
}

// ServiceHealthView pairs a descriptor with its recent health events.
type ServiceHealthView struct {
	Service service.Descriptor `json:"service"`
	Events  []service.Event    `json:"events"`
}

// Orchestrator is the service port for the control API. Implemented by the
// application layer; called by inbound HTTP handlers. All methods return
// synchronously; background health and healing failures are never surfaced
// here, only through the read methods as recorded health events.
type Orchestrator interface {
	// RegisterService registers a service, allocates it a port, and starts
	// health polling. See ServiceRegistry.Register for the error contract;
	// allocation may additionally fail with domain.ErrPoolExhausted or
	// domain.ErrAllocationTimeout.
	RegisterService(ctx context.Context, spec RegisterSpec) (service.Descriptor, error)

	// DeregisterService stops polling, releases the port, and removes the
	// descriptor. See ServiceRegistry.Deregister for the error contract.
	DeregisterService(ctx context.Context, name string, force bool) error

	// ListServices returns all descriptors with their current health.
	ListServices(ctx context.Context) []service.Descriptor

	// ServiceHealth returns one service's descriptor plus its recent health
	// events, newest last. Returns domain.ErrNotFound for unknown names.
	ServiceHealth(ctx context.Context, name string) (ServiceHealthView, error)

	// ConfirmPort records that the named service successfully bound its
	// assigned port (ALLOCATED -> IN_USE).
	ConfirmPort(ctx context.Context, name string) error

	// ReleasePort explicitly releases the named service's assigned port.
	ReleasePort(ctx context.Context, name string) error

	// StartOrder returns the dependency-ordered launch sequence.
	StartOrder(ctx context.Context) []string

	// Ports returns the ledger read-model, with individual records when
	// includeRecords is set.
	Ports(ctx context.Context, includeRecords bool) LedgerView

	// AvailablePorts returns the AVAILABLE port numbers in the named pool.
	AvailablePorts(ctx context.Context, pool string) ([]int, error)
}
