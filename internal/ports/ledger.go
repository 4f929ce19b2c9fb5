package ports

import (
	"context"

	"github.com/aurora-nexus/portward/internal/domain/port"
)

// PortLedger is the single source of truth for port allocation. It prevents
// two services from ever holding the same port concurrently and reclaims
// ports abandoned by dead processes.
//
// Implemented by app/ledger; called by the registry, the healer, and the
// orchestrator.
type PortLedger interface {
	// Allocate reserves a port from the named pool for owner, transitioning
	// it AVAILABLE -> ALLOCATED. If preferred is non-zero, AVAILABLE, and
	// inside the pool's range it is used; otherwise the lowest-numbered
	// AVAILABLE port is chosen.
	//
	// When no port is AVAILABLE, Allocate joins a per-pool FIFO wait queue
	// for up to the configured wait budget. Returns domain.ErrPoolExhausted
	// when waiting is disabled, domain.ErrAllocationTimeout when the budget
	// elapses, or ctx.Err() on cancellation.
	Allocate(ctx context.Context, owner, pool string, preferred int) (int, error)

	// Confirm transitions ALLOCATED -> IN_USE after the owning service
	// reports it has successfully bound the port. Explicit confirmation,
	// never inferred. Returns domain.ErrConflict on an owner mismatch or a
	// record not in ALLOCATED state.
	Confirm(number int, owner string) error

	// Release transitions ALLOCATED or IN_USE -> RELEASED. The port returns
	// to AVAILABLE on a later recycle sweep, not immediately, so a very
	// recently freed port is not reassigned while OS socket teardown may
	// still be in progress.
	Release(number int, owner string) error

	// Record returns the current record for one port number.
	// Returns domain.ErrNotFound for ports outside all managed pools.
	Record(number int) (port.Record, error)

	// Snapshot returns a copy of every record in the managed range,
	// ordered by port number.
	Snapshot() []port.Record

	// Available returns the currently AVAILABLE port numbers in the named
	// pool in ascending order. Returns domain.ErrNotFound for an unknown pool.
	Available(pool string) ([]int, error)

	// Pools returns the configured pool ranges.
	Pools() []port.Range
}
