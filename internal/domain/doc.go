// Package domain contains shared domain types used across entity sub-packages.
// Entity-specific types live in sub-packages (domain/port, domain/service).
// This root package holds the orchestration error taxonomy and validation
// types shared across all entities.
package domain
