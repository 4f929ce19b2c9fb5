package service

import "time"

// Event is an immutable record of one health-state transition. Exactly one
// event is emitted per transition; events for a given service are strictly
// ordered because a single poller emits them serially. Events are retained in
// a bounded rolling window and the oldest are evicted.
type Event struct {
	Service      string        `json:"service_name"`
	From         HealthState   `json:"from_state"`
	To           HealthState   `json:"to_state"`
	Timestamp    time.Time     `json:"timestamp"`
	ProbeLatency time.Duration `json:"probe_latency"`
	Reason       string        `json:"reason,omitempty"`
}
