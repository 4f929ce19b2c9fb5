package ports

import (
	"context"
	"time"
)

// Supervisor is the external process supervisor contract. The orchestrator
// treats it as a black box that eventually causes a started service's port to
// go IN_USE, or an unreachable one to fail its probes.
//
// Implemented by the outbound HTTP adapter in adapters/clients/supervisor.
type Supervisor interface {
	// Start asks the supervisor to launch the named service bound to the
	// assigned port. Errors wrap domain.ErrUnavailable when the supervisor
	// itself cannot be reached, and domain.ErrPortConflict when the launch
	// failed because the port is already held by another process.
	Start(ctx context.Context, name string, port int) error

	// Stop asks the supervisor to stop the named service. Stopping a service
	// that is not running is not an error.
	Stop(ctx context.Context, name string) error
}

// Prober performs one liveness probe against a service endpoint.
// Implementations must respect the context deadline; a timed-out probe is a
// failed probe.
type Prober interface {
	// Probe dials addr and returns the observed latency. A nil error means
	// the service answered. Errors caused by another process squatting the
	// port wrap domain.ErrPortConflict.
	Probe(ctx context.Context, addr string) (time.Duration, error)
}

// PortChecker reports whether any process still holds the given local port.
// Used by the ledger's leak-detection sweep to reclaim ports left IN_USE by
// crashed services.
type PortChecker func(number int) bool
