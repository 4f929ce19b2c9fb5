// Package port defines the Port Ledger's entity types: the per-port Record,
// its allocation state machine, and the pool sub-ranges the managed port
// space is partitioned into.
package port

import "time"

// State represents a port's position in the allocation lifecycle.
// Transitions follow AVAILABLE -> ALLOCATED -> IN_USE -> RELEASED -> AVAILABLE.
type State string

const (
	StateAvailable State = "AVAILABLE"
	StateAllocated State = "ALLOCATED"
	StateInUse     State = "IN_USE"
	StateReleased  State = "RELEASED"
)

// IsValid returns true if the state is one of the defined constants.
func (s State) IsValid() bool {
	switch s {
	case StateAvailable, StateAllocated, StateInUse, StateReleased:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Record is the authoritative allocation record for one port number.
// Owner is set whenever the state is not AVAILABLE. AllocatedAt and
// LastSeenActiveAt feed the ledger's recycling decisions.
type Record struct {
	Number           int       `json:"number"`
	State            State     `json:"state"`
	Owner            string    `json:"owner,omitempty"`
	Pool             string    `json:"pool"`
	AllocatedAt      time.Time `json:"allocated_at,omitzero"`
	LastSeenActiveAt time.Time `json:"last_seen_active_at,omitzero"`
}

// Range is a named, contiguous sub-range of the port space reserved for one
// service category. Pool ranges are disjoint by construction, so allocation
// contention is only ever within a single pool.
type Range struct {
	Name  string `koanf:"name" json:"name"`
	Start int    `koanf:"start" json:"start"`
	End   int    `koanf:"end" json:"end"`
}

// Contains reports whether n falls inside the range (inclusive).
func (r Range) Contains(n int) bool {
	return n >= r.Start && n <= r.End
}

// Size returns the number of ports in the range.
func (r Range) Size() int {
	return r.End - r.Start + 1
}

// Overlaps reports whether two ranges share any port number.
func (r Range) Overlaps(other Range) bool {
	return r.Start <= other.End && other.Start <= r.End
}
