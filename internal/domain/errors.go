package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is() checking.
//
// Allocation errors: ErrPoolExhausted means the pool has no capacity at all
// until a release occurs; ErrAllocationTimeout means no port freed up within
// the caller's wait budget and the caller may retry.
//
// Registration errors (ErrDuplicateService, ErrCyclicDependency,
// ErrHasDependents) are caller programming errors and are never retried
// automatically.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrUnavailable       = errors.New("unavailable")
	ErrPoolExhausted     = errors.New("pool exhausted")
	ErrAllocationTimeout = errors.New("allocation timeout")
	ErrDuplicateService  = errors.New("duplicate service")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrHasDependents     = errors.New("has dependents")
)

// ErrPortConflict marks probe and supervisor failures caused by another
// process already holding the service's assigned port. The Auto-Healer treats
// this class of failure differently from plain unreachability: it requests a
// fresh port before the next restart attempt.
var ErrPortConflict = errors.New("address in use")

// ReasonIsPortConflict reports whether a health event reason string was
// produced from an ErrPortConflict-wrapped probe failure. Health events carry
// the error chain flattened to a string, so the check is textual.
func ReasonIsPortConflict(reason string) bool {
	return strings.Contains(reason, ErrPortConflict.Error())
}

// ValidationError provides programmatic access to field-level validation failures.
// Use errors.Is(err, ErrValidation) for simple checks, or errors.As(err, &verr) to
// access verr.Fields for per-field error details.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
