package ports

import (
	"context"

	"github.com/aurora-nexus/portward/internal/domain/service"
)

// RegisterSpec carries the caller-supplied fields for a service registration.
type RegisterSpec struct {
	Name          string
	Category      string
	Dependencies  []string
	PreferredPort int
}

// ServiceRegistry catalogs registered services, their dependencies, and their
// startup ordering. Implemented by app/registry.
type ServiceRegistry interface {
	// Register creates a descriptor in UNKNOWN health and obtains a port
	// from the ledger (category maps to pool). Fails with
	// domain.ErrDuplicateService if the name exists and with
	// domain.ErrCyclicDependency if the new edges would introduce a cycle.
	Register(ctx context.Context, spec RegisterSpec) (service.Descriptor, error)

	// Deregister releases the assigned port (if any) and removes the
	// descriptor. Fails with domain.ErrHasDependents if other services still
	// list this one as a dependency, unless force is set (dependents are not
	// removed automatically; the caller is responsible).
	Deregister(name string, force bool) error

	// Get returns a copy of one descriptor, or domain.ErrNotFound.
	Get(name string) (service.Descriptor, error)

	// List returns copies of all descriptors in registration order.
	List() []service.Descriptor

	// StartOrder returns a topological ordering of registered services,
	// ties broken by registration order. Recomputed on every call; the graph
	// may have changed since the last one.
	StartOrder() []string
}

// RegistryWriter is the mutation surface the monitor and healer need on the
// registry. Kept separate from ServiceRegistry so inbound handlers never see
// the mutators.
type RegistryWriter interface {
	// SetHealth records a service's new health state.
	SetHealth(name string, state service.HealthState)

	// SetPort updates a descriptor's assigned port after a reassignment.
	// Zero clears the assignment.
	SetPort(name string, number int) error

	// RecordRestart increments the restart counter and stamps the attempt time.
	RecordRestart(name string) error
}
