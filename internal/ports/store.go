package ports

import (
	"context"

	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/domain/service"
)

// Snapshot is the serializable state of the Port Ledger and Service Registry,
// keyed by port number and service name respectively. Health is never trusted
// across an orchestrator restart: services reload in UNKNOWN health and are
// re-classified by fresh probes.
type Snapshot struct {
	Ports    []port.Record
	Services []service.Descriptor
}

// SnapshotStore persists orchestrator state across restarts of the
// orchestrator itself. Implemented by the sqlite adapter in adapters/store.
type SnapshotStore interface {
	// Save atomically replaces the persisted snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Load returns the persisted snapshot. A store with no prior state
	// returns an empty snapshot, not an error.
	Load(ctx context.Context) (Snapshot, error)

	// Close releases the underlying database handle.
	Close() error
}
