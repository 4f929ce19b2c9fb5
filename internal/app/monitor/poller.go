package monitor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/platform/telemetry"
)

// poller drives the health state machine for one service. All fields past
// cancel are owned by the run goroutine; nothing else touches them.
type poller struct {
	monitor  *Monitor
	name     string
	interval time.Duration
	cancel   context.CancelFunc

	state        service.HealthState
	startedAt    time.Time
	sinceHealthy int // consecutive failures since leaving HEALTHY (or since start)
	sinceFailing int // consecutive failures since entering FAILING
}

func (p *poller) run(ctx context.Context) {
	p.startedAt = time.Now()
	p.transition(ctx, service.HealthStarting, 0, "registered")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First probe fires immediately rather than one interval in.
	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *poller) poll(ctx context.Context) {
	addr, err := p.monitor.probeAddr(p.name)
	var latency time.Duration
	if err == nil {
		probeCtx, cancel := context.WithTimeout(ctx, p.monitor.cfg.ProbeTimeout)
		latency, err = p.monitor.prober.Probe(probeCtx, addr)
		cancel()
	}

	if p.monitor.metrics != nil {
		p.monitor.metrics.ProbeDuration.Record(ctx, latency.Seconds(), metric.WithAttributes(
			telemetry.AttrService.String(p.name),
		))
	}

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.onFailure(ctx, latency, err)
		return
	}
	p.onSuccess(ctx, latency)
}

// onSuccess applies the fast-recovery rule: any clean probe returns the
// service to HEALTHY from any state. A slow probe only degrades a HEALTHY
// service; it never advances condemnation elsewhere.
func (p *poller) onSuccess(ctx context.Context, latency time.Duration) {
	p.sinceHealthy = 0
	p.sinceFailing = 0

	// A slow success breaks the failure streak but only a clean probe
	// promotes; a slow probe in any non-HEALTHY state holds position.
	slow := p.monitor.cfg.LatencyThreshold > 0 && latency > p.monitor.cfg.LatencyThreshold
	switch {
	case slow && p.state == service.HealthHealthy:
		p.transition(ctx, service.HealthDegraded, latency,
			fmt.Sprintf("probe latency %s exceeds threshold %s", latency, p.monitor.cfg.LatencyThreshold))
	case !slow && p.state != service.HealthHealthy:
		p.transition(ctx, service.HealthHealthy, latency, "probe succeeded")
	}
}

func (p *poller) onFailure(ctx context.Context, latency time.Duration, err error) {
	cfg := &p.monitor.cfg
	p.sinceHealthy++
	reason := err.Error()

	switch p.state {
	case service.HealthStarting:
		if time.Since(p.startedAt) > cfg.StartupGrace {
			p.transition(ctx, service.HealthDown, latency,
				fmt.Sprintf("startup grace %s exceeded without a successful probe: %s", cfg.StartupGrace, reason))
		} else if p.sinceHealthy >= cfg.StartupFailures {
			p.sinceFailing = 0
			p.transition(ctx, service.HealthFailing, latency, reason)
		}
	case service.HealthHealthy:
		p.transition(ctx, service.HealthDegraded, latency, reason)
	case service.HealthDegraded:
		if p.sinceHealthy >= cfg.DegradedFailures {
			p.sinceFailing = 0
			p.transition(ctx, service.HealthFailing, latency, reason)
		}
	case service.HealthFailing:
		p.sinceFailing++
		if p.sinceFailing >= cfg.FailingFailures {
			p.transition(ctx, service.HealthDown, latency, reason)
		}
	case service.HealthDown:
		// Stay put; the healer owns recovery from here. Polling continues so
		// a restarted service is promoted on its first clean probe.
	}
}

func (p *poller) transition(ctx context.Context, to service.HealthState, latency time.Duration, reason string) {
	from := p.state
	p.state = to
	p.monitor.emit(ctx, service.Event{
		Service:      p.name,
		From:         from,
		To:           to,
		Timestamp:    time.Now().UTC(),
		ProbeLatency: latency,
		Reason:       reason,
	})
}
