// Package app wires the port ledger, service registry, health monitor, and
// auto-healer into the orchestrator facade consumed by the control API.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/aurora-nexus/portward/internal/app/healer"
	"github.com/aurora-nexus/portward/internal/app/ledger"
	"github.com/aurora-nexus/portward/internal/app/monitor"
	"github.com/aurora-nexus/portward/internal/app/registry"
	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Compile-time interface check.
var _ ports.Orchestrator = (*Orchestrator)(nil)

// Orchestrator composes the core components and runs their background work:
// ledger sweeps, the healer's event loop, and periodic snapshot persistence.
//
// The snapshot store is optional; a nil store means nothing survives a
// restart of the orchestrator process.
type Orchestrator struct {
	ledger   *ledger.Ledger
	registry *registry.Registry
	monitor  *monitor.Monitor
	healer   *healer.Healer

	store         ports.SnapshotStore
	flushInterval time.Duration

	logger *slog.Logger
}

func NewOrchestrator(
	led *ledger.Ledger,
	reg *registry.Registry,
	mon *monitor.Monitor,
	heal *healer.Healer,
	store ports.SnapshotStore,
	flushInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		ledger:        led,
		registry:      reg,
		monitor:       mon,
		healer:        heal,
		store:         store,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Restore loads the persisted snapshot and resumes health polling for every
// restored service. Health is never trusted across restarts; every service
// comes back UNKNOWN and earns its state through fresh probes.
func (o *Orchestrator) Restore(ctx context.Context) error {
	if o.store == nil {
		return nil
	}

	snap, err := o.store.Load(ctx)
	if err != nil {
		return err
	}

	o.ledger.Restore(snap.Ports)
	o.registry.Restore(snap.Services)
	for _, desc := range snap.Services {
		o.monitor.Watch(desc.Name, desc.Category)
	}

	o.logger.Info("restored snapshot",
		slog.Int("ports", len(snap.Ports)),
		slog.Int("services", len(snap.Services)),
	)
	return nil
}

// Run drives all background work until ctx is cancelled: the ledger's recycle
// and leak sweeps, the healer's event loop, and the periodic snapshot flush.
// A final snapshot is written on the way out.
func (o *Orchestrator) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.healer.Run(ctx, o.monitor.Events())
	}()

	go o.ledger.Run(ctx)
	go o.flushLoop(ctx)

	<-ctx.Done()
	o.monitor.Close()
	<-done
	o.saveSnapshot(context.Background())
}

func (o *Orchestrator) flushLoop(ctx context.Context) {
	if o.store == nil || o.flushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(o.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.saveSnapshot(ctx)
		}
	}
}

func (o *Orchestrator) saveSnapshot(ctx context.Context) {
	if o.store == nil {
		return
	}
	snap := ports.Snapshot{
		Ports:    o.ledger.Snapshot(),
		Services: o.registry.List(),
	}
	if err := o.store.Save(ctx, snap); err != nil {
		o.logger.Error("snapshot save failed", slog.String("error", err.Error()))
	}
}

// RegisterService registers the service and begins health polling for it.
func (o *Orchestrator) RegisterService(ctx context.Context, spec ports.RegisterSpec) (service.Descriptor, error) {
	desc, err := o.registry.Register(ctx, spec)
	if err != nil {
		return service.Descriptor{}, err
	}
	o.monitor.Watch(desc.Name, desc.Category)
	return desc, nil
}

// DeregisterService stops polling and removes the service; its port is
// released by the registry.
func (o *Orchestrator) DeregisterService(_ context.Context, name string, force bool) error {
	if err := o.registry.Deregister(name, force); err != nil {
		return err
	}
	o.monitor.Unwatch(name)
	return nil
}

func (o *Orchestrator) ListServices(context.Context) []service.Descriptor {
	return o.registry.List()
}

func (o *Orchestrator) ServiceHealth(_ context.Context, name string) (ports.ServiceHealthView, error) {
	desc, err := o.registry.Get(name)
	if err != nil {
		return ports.ServiceHealthView{}, err
	}
	return ports.ServiceHealthView{
		Service: desc,
		Events:  o.monitor.History(name),
	}, nil
}

// ConfirmPort marks the service's assigned port IN_USE after the service
// reports a successful bind.
func (o *Orchestrator) ConfirmPort(_ context.Context, name string) error {
	desc, err := o.registry.Get(name)
	if err != nil {
		return err
	}
	if desc.AssignedPort == 0 {
		return domain.ErrConflict
	}
	return o.ledger.Confirm(desc.AssignedPort, name)
}

// ReleasePort releases the service's assigned port without deregistering it.
// The service keeps polling and will show up unreachable until it is assigned
// a new port or deregistered.
func (o *Orchestrator) ReleasePort(_ context.Context, name string) error {
	desc, err := o.registry.Get(name)
	if err != nil {
		return err
	}
	if desc.AssignedPort == 0 {
		return domain.ErrConflict
	}
	if err := o.ledger.Release(desc.AssignedPort, name); err != nil {
		return err
	}
	return o.registry.SetPort(name, 0)
}

func (o *Orchestrator) StartOrder(context.Context) []string {
	return o.registry.StartOrder()
}

// Ports builds the ledger read-model: per-pool occupancy counts, plus the
// individual records when requested.
func (o *Orchestrator) Ports(_ context.Context, includeRecords bool) ports.LedgerView {
	records := o.ledger.Snapshot()
	pools := o.ledger.Pools()

	byPool := make(map[string]*ports.PoolStatus, len(pools))
	statuses := make([]*ports.PoolStatus, 0, len(pools))
	for _, rng := range pools {
		st := &ports.PoolStatus{
			Pool:     rng.Name,
			Capacity: rng.Size(),
			ByState:  make(map[port.State]int),
		}
		byPool[rng.Name] = st
		statuses = append(statuses, st)
	}

	for _, rec := range records {
		if st, ok := byPool[rec.Pool]; ok {
			st.ByState[rec.State]++
			if rec.State == port.StateAvailable {
				st.Available++
			}
		}
	}

	view := ports.LedgerView{Pools: make([]ports.PoolStatus, 0, len(statuses))}
	for _, st := range statuses {
		view.Pools = append(view.Pools, *st)
	}
	if includeRecords {
		view.Records = records
	}
	return view
}

func (o *Orchestrator) AvailablePorts(_ context.Context, pool string) ([]int, error) {
	return o.ledger.Available(pool)
}
