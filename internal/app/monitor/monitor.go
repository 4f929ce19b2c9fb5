// Package monitor implements the Health Monitor: one independent poller per
// registered service, each probing the service on its category's cadence and
// classifying health through the transition rules below. Every transition
// emits exactly one immutable health event, consumed by the auto-healer and
// retained in a bounded per-service window for the read API.
//
// Classification is deliberately asymmetric: recovery is immediate (any clean
// successful probe returns a service to HEALTHY from any state) while
// condemnation is gradual (single failure -> DEGRADED, M consecutive
// failures -> FAILING, K more -> DOWN). Fast recovery and slow condemnation
// avoid restart storms on noisy probes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/platform/telemetry"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Config holds polling cadence and classification thresholds.
type Config struct {
	ProbeHost        string
	ProbeTimeout     time.Duration
	PollInterval     time.Duration
	PollIntervals    map[string]time.Duration
	StartupGrace     time.Duration
	StartupFailures  int // N: consecutive failures within grace before STARTING -> FAILING
	DegradedFailures int // M: consecutive failures since leaving HEALTHY before FAILING
	FailingFailures  int // K: consecutive failures since entering FAILING before DOWN
	LatencyThreshold time.Duration
	EventWindow      int
	EventBuffer      int
}

// pollIntervalFor returns the per-category poll interval or the default.
func (c *Config) pollIntervalFor(category string) time.Duration {
	if iv, ok := c.PollIntervals[category]; ok {
		return iv
	}
	return c.PollInterval
}

// Monitor runs the pollers and owns the health event stream.
type Monitor struct {
	cfg      Config
	prober   ports.Prober
	catalog  ports.ServiceRegistry
	writer   ports.RegistryWriter
	eventsCh chan service.Event

	mu      sync.Mutex
	pollers map[string]*poller
	history map[string][]service.Event
	closed  bool

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New creates a Monitor. Events are delivered on a bounded channel obtained
// from Events; the healer must consume it for polling to keep pace.
func New(cfg Config, prober ports.Prober, catalog ports.ServiceRegistry, writer ports.RegistryWriter,
	logger *slog.Logger, metrics *telemetry.Metrics,
) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		cfg:      cfg,
		prober:   prober,
		catalog:  catalog,
		writer:   writer,
		eventsCh: make(chan service.Event, cfg.EventBuffer),
		pollers:  make(map[string]*poller),
		history:  make(map[string][]service.Event),
		logger:   logger,
		metrics:  metrics,
	}
}

// Events returns the stream of health transitions. Events for one service are
// strictly ordered; events for different services interleave arbitrarily.
func (m *Monitor) Events() <-chan service.Event {
	return m.eventsCh
}

// Watch starts a poller for the named service. The UNKNOWN -> STARTING
// transition is emitted immediately, before the first probe completes.
// Watching an already-watched service is a no-op.
func (m *Monitor) Watch(name, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if _, exists := m.pollers[name]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{
		monitor:  m,
		name:     name,
		interval: m.cfg.pollIntervalFor(category),
		state:    service.HealthUnknown,
		cancel:   cancel,
	}
	m.pollers[name] = p

	go p.run(ctx)
}

// Unwatch stops the named service's poller and drops its event history.
func (m *Monitor) Unwatch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pollers[name]; ok {
		p.cancel()
		delete(m.pollers, name)
	}
	delete(m.history, name)
}

// History returns the retained health events for one service, oldest first.
func (m *Monitor) History(name string) []service.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.Event(nil), m.history[name]...)
}

// Close stops all pollers. Events already emitted remain readable through
// History; the events channel is not closed since pollers may still be
// draining their final transitions.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for name, p := range m.pollers {
		p.cancel()
		delete(m.pollers, name)
	}
}

// emit records one transition: descriptor health, bounded history, the event
// stream, and metrics. Exactly one event per transition.
func (m *Monitor) emit(ctx context.Context, ev service.Event) {
	m.writer.SetHealth(ev.Service, ev.To)

	m.mu.Lock()
	history := append(m.history[ev.Service], ev)
	if excess := len(history) - m.cfg.EventWindow; excess > 0 {
		history = history[excess:]
	}
	m.history[ev.Service] = history
	m.mu.Unlock()

	m.logger.Info("health transition",
		slog.String("service", ev.Service),
		slog.String("from", ev.From.String()),
		slog.String("to", ev.To.String()),
		slog.Duration("probe_latency", ev.ProbeLatency),
		slog.String("reason", ev.Reason),
	)

	if m.metrics != nil {
		m.metrics.HealthTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
			telemetry.AttrService.String(ev.Service),
			telemetry.AttrToState.String(ev.To.String()),
		))
	}

	select {
	case m.eventsCh <- ev:
	case <-ctx.Done():
	}
}

// probeAddr resolves the service's current probe target. The descriptor read
// is a brief lock-free copy; no lock is held during the probe itself.
func (m *Monitor) probeAddr(name string) (string, error) {
	desc, err := m.catalog.Get(name)
	if err != nil {
		return "", err
	}
	if desc.AssignedPort == 0 {
		return "", errors.New("no port assigned")
	}
	return fmt.Sprintf("%s:%d", m.cfg.ProbeHost, desc.AssignedPort), nil
}
