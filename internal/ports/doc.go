// Package ports defines interfaces between layers in the hexagonal architecture.
// Service ports are implemented by the application layer and called by handlers.
// Collaborator ports (Supervisor, Prober, SnapshotStore) are implemented by
// outbound adapters and called by the application layer.
package ports
