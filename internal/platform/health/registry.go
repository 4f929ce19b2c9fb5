// Package health tracks the orchestrator's own downstream dependencies (the
// supervisor client, the snapshot store) for the readiness endpoint. This is
// distinct from the service health the monitor tracks: a failing managed
// service never makes the orchestrator unready.
package health

import (
	"context"
	"sync"

	"github.com/aurora-nexus/portward/internal/ports"
)

// Compile-time interface check.
var _ ports.HealthRegistry = (*Registry)(nil)

// Registry collects [ports.HealthChecker] implementations registered at
// startup and runs them on each readiness probe. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	checkers []ports.HealthChecker
}

func New() *Registry {
	return &Registry{}
}

// Register appends a checker.
func (r *Registry) Register(checker ports.HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checker)
}

// CheckAll runs every registered check and returns results keyed by checker
// name; nil means healthy. The checker slice is snapshotted under the read
// lock so slow checks never block Register.
func (r *Registry) CheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	checkers := make([]ports.HealthChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	results := make(map[string]error, len(checkers))
	for _, c := range checkers {
		results[c.Name()] = c.HealthCheck(ctx)
	}
	return results
}
