// Package healer consumes health events and restarts services that reach
// FAILING or DOWN. Restarts are paced by exponential backoff, capped by a
// rolling-window ceiling, deferred while a dependency is unhealthy, and may
// reassign the service's port when the failure is a port conflict.
package healer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/platform/telemetry"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Config holds restart pacing and escalation limits.
type Config struct {
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RestartCeiling int
	RestartWindow  time.Duration
	AttemptTimeout time.Duration
}

// Healer owns remediation. At most one remediation loop runs per service;
// repeated FAILING/DOWN events for a service already being remediated fold
// into the running loop.
type Healer struct {
	cfg        Config
	supervisor ports.Supervisor
	catalog    ports.ServiceRegistry
	writer     ports.RegistryWriter
	ledger     ports.PortLedger

	mu       sync.Mutex
	inflight map[string]bool
	attempts map[string][]time.Time // restart timestamps, pruned to RestartWindow
	waiters  map[string][]chan struct{}

	logger  *slog.Logger
	metrics *telemetry.Metrics
	wg      sync.WaitGroup
}

func New(cfg Config, supervisor ports.Supervisor, catalog ports.ServiceRegistry,
	writer ports.RegistryWriter, ledger ports.PortLedger,
	logger *slog.Logger, metrics *telemetry.Metrics,
) *Healer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Healer{
		cfg:        cfg,
		supervisor: supervisor,
		catalog:    catalog,
		writer:     writer,
		ledger:     ledger,
		inflight:   make(map[string]bool),
		attempts:   make(map[string][]time.Time),
		waiters:    make(map[string][]chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run consumes health events until the context is cancelled or the stream
// closes, then waits for in-flight remediations to wind down.
func (h *Healer) Run(ctx context.Context, events <-chan service.Event) {
	defer h.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.handle(ctx, ev)
		}
	}
}

func (h *Healer) handle(ctx context.Context, ev service.Event) {
	switch ev.To {
	case service.HealthHealthy:
		h.notifyHealthy(ev.Service)
	case service.HealthFailing, service.HealthDown:
		h.begin(ctx, ev)
	}
}

// begin launches a remediation loop unless one is already running.
func (h *Healer) begin(ctx context.Context, ev service.Event) {
	h.mu.Lock()
	if h.inflight[ev.Service] {
		h.mu.Unlock()
		return
	}
	h.inflight[ev.Service] = true
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.inflight, ev.Service)
			h.mu.Unlock()
		}()
		h.remediate(ctx, ev.Service, ev.Reason)
	}()
}

// remediate retries restarts until the service recovers, is deregistered,
// hits the restart ceiling, or the context ends.
func (h *Healer) remediate(ctx context.Context, name, reason string) {
	log := h.logger.With(slog.String("service", name))
	failedPlainRestart := false

	for {
		desc, err := h.catalog.Get(name)
		if err != nil {
			return // deregistered mid-remediation
		}
		if desc.Health == service.HealthHealthy {
			return
		}

		if h.ceilingReached(name) {
			log.Error("restart ceiling reached, leaving service down",
				slog.Int("ceiling", h.cfg.RestartCeiling),
				slog.Duration("window", h.cfg.RestartWindow),
			)
			return
		}

		if !h.awaitDependencies(ctx, log, desc) {
			return
		}

		if !sleep(ctx, h.backoff(desc.RestartCount)) {
			return
		}

		port := desc.AssignedPort
		// Reassign only after a plain restart on the conflicted port has
		// already failed once.
		if failedPlainRestart && domain.ReasonIsPortConflict(reason) {
			if reassigned, rerr := h.reassignPort(ctx, desc); rerr != nil {
				log.Warn("port reassignment failed", slog.String("error", rerr.Error()))
			} else {
				log.Info("reassigned port after conflict",
					slog.Int("old_port", port), slog.Int("new_port", reassigned))
				port = reassigned
			}
		}

		rerr := h.restart(ctx, name, port)
		h.recordAttempt(ctx, name, desc.Category)
		if rerr != nil {
			log.Warn("restart attempt failed", slog.String("error", rerr.Error()))
			failedPlainRestart = true
			if domain.ReasonIsPortConflict(rerr.Error()) {
				reason = rerr.Error()
			}
			continue
		}

		// Give the monitor a chance to observe the restarted process before
		// deciding whether another attempt is needed.
		if !sleep(ctx, h.cfg.AttemptTimeout) {
			return
		}
	}
}

func (h *Healer) restart(ctx context.Context, name string, port int) error {
	attemptCtx, cancel := context.WithTimeout(ctx, h.cfg.AttemptTimeout)
	defer cancel()

	if err := h.supervisor.Stop(attemptCtx, name); err != nil {
		h.logger.Debug("stop before restart failed",
			slog.String("service", name), slog.String("error", err.Error()))
	}
	if err := h.supervisor.Start(attemptCtx, name, port); err != nil {
		return fmt.Errorf("start %s on port %d: %w", name, port, err)
	}
	return nil
}

// reassignPort releases the conflicted port and claims a fresh one from the
// same pool, confirming it immediately since the process is started on it.
func (h *Healer) reassignPort(ctx context.Context, desc service.Descriptor) (int, error) {
	if desc.AssignedPort != 0 {
		if err := h.ledger.Release(desc.AssignedPort, desc.Name); err != nil {
			return 0, fmt.Errorf("release port %d: %w", desc.AssignedPort, err)
		}
	}
	newPort, err := h.ledger.Allocate(ctx, desc.Name, desc.Category, 0)
	if err != nil {
		return 0, fmt.Errorf("allocate replacement port: %w", err)
	}
	if err := h.ledger.Confirm(newPort, desc.Name); err != nil {
		return 0, fmt.Errorf("confirm replacement port %d: %w", newPort, err)
	}
	if err := h.writer.SetPort(desc.Name, newPort); err != nil {
		return 0, err
	}
	return newPort, nil
}

// awaitDependencies blocks until every registered dependency is HEALTHY.
// Returns false if the context ended or the service vanished while waiting.
func (h *Healer) awaitDependencies(ctx context.Context, log *slog.Logger, desc service.Descriptor) bool {
	for {
		dep, healthy := h.unhealthyDependency(desc)
		if healthy {
			return true
		}

		ready := h.addWaiter(dep)
		log.Info("deferring restart until dependency recovers", slog.String("dependency", dep))
		select {
		case <-ctx.Done():
			return false
		case <-ready:
		}
		if _, err := h.catalog.Get(desc.Name); err != nil {
			return false
		}
	}
}

// unhealthyDependency reports the first registered dependency that is not
// HEALTHY. Dependencies that are not registered impose no ordering.
func (h *Healer) unhealthyDependency(desc service.Descriptor) (string, bool) {
	for _, dep := range desc.Dependencies {
		d, err := h.catalog.Get(dep)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err == nil && d.Health != service.HealthHealthy {
			return dep, false
		}
	}
	return "", true
}

func (h *Healer) addWaiter(dep string) chan struct{} {
	ch := make(chan struct{})
	h.mu.Lock()
	h.waiters[dep] = append(h.waiters[dep], ch)
	h.mu.Unlock()
	return ch
}

func (h *Healer) notifyHealthy(name string) {
	h.mu.Lock()
	chans := h.waiters[name]
	delete(h.waiters, name)
	h.mu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

// backoff returns base * 2^restarts capped at BackoffCap.
func (h *Healer) backoff(restarts int) time.Duration {
	d := h.cfg.BackoffBase
	for i := 0; i < restarts; i++ {
		d *= 2
		if d >= h.cfg.BackoffCap {
			return h.cfg.BackoffCap
		}
	}
	if d > h.cfg.BackoffCap {
		return h.cfg.BackoffCap
	}
	return d
}

// ceilingReached reports whether the rolling-window restart budget is spent.
func (h *Healer) ceilingReached(name string) bool {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.attempts[name][:0]
	for _, t := range h.attempts[name] {
		if now.Sub(t) <= h.cfg.RestartWindow {
			kept = append(kept, t)
		}
	}
	h.attempts[name] = kept
	return len(kept) >= h.cfg.RestartCeiling
}

func (h *Healer) recordAttempt(ctx context.Context, name, category string) {
	h.mu.Lock()
	h.attempts[name] = append(h.attempts[name], time.Now())
	h.mu.Unlock()

	if err := h.writer.RecordRestart(name); err != nil {
		h.logger.Debug("recording restart attempt",
			slog.String("service", name), slog.String("error", err.Error()))
	}
	if h.metrics != nil {
		h.metrics.RestartsTotal.Add(ctx, 1, metric.WithAttributes(
			telemetry.AttrService.String(name),
			telemetry.AttrPool.String(category),
		))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
