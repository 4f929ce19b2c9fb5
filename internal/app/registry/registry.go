// Package registry implements the Service Registry: the catalog of registered
// services, their declared dependencies, and their startup ordering. The
// registry owns all Service Descriptor mutation; health polling and healing
// read descriptor copies and never hold registry locks across network I/O.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.ServiceRegistry = (*Registry)(nil)
	_ ports.RegistryWriter  = (*Registry)(nil)
)

// entry pairs a descriptor with its registration sequence number, used for
// stable tie-breaking in the start order.
type entry struct {
	desc  service.Descriptor
	index int
}

// Registry is a thread-safe implementation of ports.ServiceRegistry.
type Registry struct {
	mu        sync.RWMutex
	services  map[string]*entry
	nextIndex int

	ledger ports.PortLedger
	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty Registry backed by the given port ledger.
func New(ledger ports.PortLedger, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		services: make(map[string]*entry),
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

// Register validates the spec, rejects duplicates and cycles, allocates a
// port from the pool matching the service's category, and catalogs the
// descriptor in UNKNOWN health.
//
// The port allocation may block up to the ledger's wait budget, so it runs
// outside the registry lock; the name is reserved first so a concurrent
// duplicate registration fails fast instead of racing for the same port.
func (r *Registry) Register(ctx context.Context, spec ports.RegisterSpec) (service.Descriptor, error) {
	desc := service.Descriptor{
		Name:         spec.Name,
		Category:     spec.Category,
		Dependencies: append([]string(nil), spec.Dependencies...),
		Health:       service.HealthUnknown,
	}
	if err := desc.Validate(); err != nil {
		return service.Descriptor{}, err
	}

	if err := r.reserve(&desc); err != nil {
		return service.Descriptor{}, err
	}

	number, err := r.ledger.Allocate(ctx, desc.Name, desc.Category, spec.PreferredPort)
	if err != nil {
		r.unreserve(desc.Name)
		return service.Descriptor{}, fmt.Errorf("allocating port for %q: %w", desc.Name, err)
	}

	r.mu.Lock()
	e, ok := r.services[desc.Name]
	if !ok {
		// A concurrent deregister removed the reservation while the
		// allocation was in flight. Hand the port back so it cycles through
		// RELEASED instead of sitting ALLOCATED with no owner.
		r.mu.Unlock()
		if relErr := r.ledger.Release(number, desc.Name); relErr != nil {
			r.logger.Warn("releasing port for vanished registration",
				slog.String("service", desc.Name),
				slog.Int("port", number),
				slog.Any("error", relErr),
			)
		}
		return service.Descriptor{}, fmt.Errorf("service %q deregistered during port allocation: %w",
			desc.Name, domain.ErrNotFound)
	}
	e.desc.AssignedPort = number
	out := e.desc.Clone()
	r.mu.Unlock()

	r.logger.Info("service registered",
		slog.String("service", desc.Name),
		slog.String("category", desc.Category),
		slog.Int("port", number),
	)
	return out, nil
}

// reserve claims the name and checks the dependency graph under the lock.
func (r *Registry) reserve(desc *service.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[desc.Name]; exists {
		return fmt.Errorf("service %q: %w", desc.Name, domain.ErrDuplicateService)
	}

	if cycle := r.detectCycle(desc.Name, desc.Dependencies); cycle != nil {
		return fmt.Errorf("registering %q would create cycle %v: %w",
			desc.Name, cycle, domain.ErrCyclicDependency)
	}

	desc.RegisteredAt = r.now()
	r.services[desc.Name] = &entry{desc: desc.Clone(), index: r.nextIndex}
	r.nextIndex++
	return nil
}

// unreserve rolls back a reservation whose port allocation failed.
func (r *Registry) unreserve(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Deregister releases the assigned port (if any) and removes the descriptor.
func (r *Registry) Deregister(name string, force bool) error {
	r.mu.Lock()
	e, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("service %q: %w", name, domain.ErrNotFound)
	}

	if !force {
		for _, other := range r.services {
			for _, dep := range other.desc.Dependencies {
				if dep == name {
					r.mu.Unlock()
					return fmt.Errorf("service %q is a dependency of %q: %w",
						name, other.desc.Name, domain.ErrHasDependents)
				}
			}
		}
	}

	number := e.desc.AssignedPort
	delete(r.services, name)
	r.mu.Unlock()

	if number != 0 {
		if err := r.ledger.Release(number, name); err != nil {
			// The sweep reclaims the port either way; log and move on.
			r.logger.Warn("releasing port on deregister",
				slog.String("service", name),
				slog.Int("port", number),
				slog.Any("error", err),
			)
		}
	}

	r.logger.Info("service deregistered", slog.String("service", name), slog.Bool("force", force))
	return nil
}

// Get returns a copy of one descriptor.
func (r *Registry) Get(name string) (service.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.services[name]
	if !ok {
		return service.Descriptor{}, fmt.Errorf("service %q: %w", name, domain.ErrNotFound)
	}
	return e.desc.Clone(), nil
}

// List returns copies of all descriptors in registration order.
func (r *Registry) List() []service.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]service.Descriptor, 0, len(r.services))
	for _, e := range r.sortedEntries() {
		out = append(out, e.desc.Clone())
	}
	return out
}

// SetHealth records a service's new health state. Unknown names are ignored;
// a poller may deliver one last update after deregistration.
func (r *Registry) SetHealth(name string, state service.HealthState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.services[name]; ok {
		e.desc.Health = state
	}
}

// SetPort updates a descriptor's assigned port after a healer reassignment.
func (r *Registry) SetPort(name string, number int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.services[name]
	if !ok {
		return fmt.Errorf("service %q: %w", name, domain.ErrNotFound)
	}
	e.desc.AssignedPort = number
	return nil
}

// RecordRestart increments the restart counter and stamps the attempt time.
func (r *Registry) RecordRestart(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.services[name]
	if !ok {
		return fmt.Errorf("service %q: %w", name, domain.ErrNotFound)
	}
	e.desc.RestartCount++
	e.desc.LastRestartAt = r.now()
	return nil
}

// Restore reloads persisted descriptors. Health is never trusted across an
// orchestrator restart: every service comes back UNKNOWN and is re-classified
// by fresh probes.
func (r *Registry) Restore(descs []service.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range descs {
		d.Health = service.HealthUnknown
		r.services[d.Name] = &entry{desc: d.Clone(), index: r.nextIndex}
		r.nextIndex++
	}
}
