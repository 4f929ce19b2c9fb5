// Package service defines the Service Registry's entity types: the Descriptor
// catalog entry, the health state classification, and the immutable health
// Event emitted on every state transition.
package service

import (
	"strings"
	"time"

	"github.com/aurora-nexus/portward/internal/domain"
)

// HealthState classifies a service's observed health.
//
// Degradation is gradual (single failed probe -> DEGRADED, consecutive
// failures -> FAILING -> DOWN) while recovery is immediate (any clean
// successful probe returns the service to HEALTHY). The asymmetry avoids
// restart storms on noisy probes.
type HealthState string

const (
	HealthUnknown  HealthState = "UNKNOWN"
	HealthStarting HealthState = "STARTING"
	HealthHealthy  HealthState = "HEALTHY"
	HealthDegraded HealthState = "DEGRADED"
	HealthFailing  HealthState = "FAILING"
	HealthDown     HealthState = "DOWN"
)

// IsValid returns true if the state is one of the defined constants.
func (h HealthState) IsValid() bool {
	switch h {
	case HealthUnknown, HealthStarting, HealthHealthy, HealthDegraded, HealthFailing, HealthDown:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (h HealthState) String() string {
	return string(h)
}

// Descriptor is the catalog entry for one registered service. Created at
// registration, mutated by the registry and the healer, destroyed on explicit
// deregistration. AssignedPort of zero means no port is currently assigned.
type Descriptor struct {
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Dependencies  []string    `json:"dependencies"`
	AssignedPort  int         `json:"assigned_port,omitempty"`
	Health        HealthState `json:"health_state"`
	RestartCount  int         `json:"restart_count"`
	LastRestartAt time.Time   `json:"last_restart_at,omitzero"`
	RegisteredAt  time.Time   `json:"registered_at,omitzero"`
}

// Validate checks descriptor fields supplied by the caller at registration.
func (d *Descriptor) Validate() error {
	fields := make(map[string]string)

	name := strings.TrimSpace(d.Name)
	switch {
	case name == "":
		fields["name"] = "must not be empty"
	case len(name) > 128:
		fields["name"] = "must not exceed 128 characters"
	}

	if strings.TrimSpace(d.Category) == "" {
		fields["category"] = "must not be empty"
	}

	for _, dep := range d.Dependencies {
		if dep == d.Name {
			fields["dependencies"] = "a service cannot depend on itself"
		}
		if strings.TrimSpace(dep) == "" {
			fields["dependencies"] = "dependency names must not be empty"
		}
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Clone returns a deep copy of the descriptor. The registry hands out clones
// so readers never observe concurrent mutation.
func (d *Descriptor) Clone() Descriptor {
	out := *d
	out.Dependencies = append([]string(nil), d.Dependencies...)
	return out
}
