package dto

import (
	"fmt"
	"strings"

	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/ports"
)

const msgRequired = "is required"

// RegisterServiceRequest represents the JSON body for registering a service.
type RegisterServiceRequest struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Dependencies  []string `json:"dependencies,omitempty"`
	PreferredPort int      `json:"preferred_port,omitempty"`
}

// Validate checks that required fields are present and well-formed.
// Returns a *domain.ValidationError if any checks fail. Deeper semantic
// checks (duplicate names, cycles) belong to the registry.
func (r *RegisterServiceRequest) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = msgRequired
	}
	if strings.TrimSpace(r.Category) == "" {
		fields["category"] = msgRequired
	}
	for i, dep := range r.Dependencies {
		if strings.TrimSpace(dep) == "" {
			fields[fmt.Sprintf("dependencies[%d]", i)] = "must not be empty"
		}
	}
	if r.PreferredPort < 0 || r.PreferredPort > 65535 {
		fields["preferred_port"] = fmt.Sprintf("must be 0-65535, got %d", r.PreferredPort)
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// ToRegisterSpec converts the request body to the application-layer spec.
func (r *RegisterServiceRequest) ToRegisterSpec() ports.RegisterSpec {
	return ports.RegisterSpec{
		Name:          strings.TrimSpace(r.Name),
		Category:      strings.TrimSpace(r.Category),
		Dependencies:  r.Dependencies,
		PreferredPort: r.PreferredPort,
	}
}
