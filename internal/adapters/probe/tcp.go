// Package probe provides the outbound health probe used by the monitor.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPProber reports a service healthy when a TCP connection to its assigned
// port completes within the probe deadline. The connection is closed
// immediately; no application payload is exchanged.
type TCPProber struct {
	dialer net.Dialer
}

func NewTCPProber() *TCPProber {
	return &TCPProber{}
}

// Probe dials addr and returns the observed connect latency. The context
// carries the probe deadline.
func (p *TCPProber) Probe(ctx context.Context, addr string) (time.Duration, error) {
	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, fmt.Errorf("probe %s: %w", addr, err)
	}
	_ = conn.Close()
	return elapsed, nil
}
