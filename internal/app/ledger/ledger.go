// Package ledger implements the Port Ledger: the single source of truth for
// port allocation state. Every mutation goes through a per-port critical
// section, so two concurrent Allocate calls can never both claim the same
// port number. Ports abandoned by dead processes are reclaimed by the
// background sweeps in sweep.go.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/aurora-nexus/portward/internal/domain"
	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/platform/telemetry"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Compile-time interface check.
var _ ports.PortLedger = (*Ledger)(nil)

// Config holds the ledger's pool ranges and sweep cadence.
type Config struct {
	Pools            []port.Range
	AllocationWait   time.Duration
	RecycleInterval  time.Duration
	LeakScanInterval time.Duration
	LeakScanWorkers  int
}

// record pairs one port's Record with its single-writer lock. The records map
// itself is built once at construction and never mutated, so lookups need no
// table-level lock.
type record struct {
	mu  sync.Mutex
	rec port.Record
}

// waiter is one queued allocation request. The sweep hands a reclaimed port
// to the head of the queue by claiming it on the waiter's behalf and sending
// the number on ch (buffered, so the handoff never blocks the sweep).
type waiter struct {
	owner string
	ch    chan int
}

// Ledger tracks every port in the configured pool ranges.
type Ledger struct {
	cfg     Config
	records map[int]*record
	pools   []port.Range
	checker ports.PortChecker

	waitMu  sync.Mutex
	waiters map[string][]*waiter

	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithChecker replaces the OS-level port occupancy check used by the
// leak-detection sweep. Tests use this to simulate dead owners.
func WithChecker(c ports.PortChecker) Option {
	return func(l *Ledger) {
		l.checker = c
	}
}

// WithMetrics attaches pre-registered metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithClock replaces the time source. Tests use this to control
// recycling timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger with one AVAILABLE record per port in every configured
// pool range. Pool ranges are assumed disjoint (enforced by config validation).
func New(cfg Config, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	l := &Ledger{
		cfg:     cfg,
		records: make(map[int]*record),
		pools:   append([]port.Range(nil), cfg.Pools...),
		checker: listenCheck,
		waiters: make(map[string][]*waiter),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, pool := range l.pools {
		for n := pool.Start; n <= pool.End; n++ {
			l.records[n] = &record{rec: port.Record{
				Number: n,
				State:  port.StateAvailable,
				Pool:   pool.Name,
			}}
		}
	}

	return l
}

// Allocate reserves a port from the named pool for owner. See
// ports.PortLedger for the full contract.
func (l *Ledger) Allocate(ctx context.Context, owner, pool string, preferred int) (int, error) {
	start := l.now()

	poolRange, ok := l.poolRange(pool)
	if !ok {
		return 0, fmt.Errorf("pool %q: %w", pool, domain.ErrNotFound)
	}

	// A non-empty wait queue means earlier requests are still unserved;
	// joining behind them preserves arrival order.
	if !l.hasWaiters(pool) {
		if n, ok := l.tryClaim(owner, poolRange, preferred); ok {
			l.recordAllocation(ctx, pool, "ok", start)
			return n, nil
		}
	}

	// Nothing AVAILABLE right now. Without a wait budget this is permanent
	// until a release occurs.
	if l.cfg.AllocationWait <= 0 {
		l.recordAllocation(ctx, pool, "exhausted", start)
		return 0, fmt.Errorf("pool %q has no available port: %w", pool, domain.ErrPoolExhausted)
	}

	n, err := l.await(ctx, owner, pool)
	if err != nil {
		l.recordAllocation(ctx, pool, "timeout", start)
		return 0, err
	}
	l.recordAllocation(ctx, pool, "ok", start)
	return n, nil
}

// tryClaim attempts an immediate AVAILABLE -> ALLOCATED transition. The
// preferred port is tried first when it lies inside the pool's range; then
// the scan walks the range in ascending order so the lowest-numbered
// AVAILABLE port wins.
func (l *Ledger) tryClaim(owner string, poolRange port.Range, preferred int) (int, bool) {
	if preferred != 0 && poolRange.Contains(preferred) {
		if l.claim(preferred, owner) {
			return preferred, true
		}
	}
	for n := poolRange.Start; n <= poolRange.End; n++ {
		if l.claim(n, owner) {
			return n, true
		}
	}
	return 0, false
}

// claim transitions one port AVAILABLE -> ALLOCATED under its lock.
func (l *Ledger) claim(number int, owner string) bool {
	r := l.records[number]
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec.State != port.StateAvailable {
		return false
	}
	now := l.now()
	r.rec.State = port.StateAllocated
	r.rec.Owner = owner
	r.rec.AllocatedAt = now
	r.rec.LastSeenActiveAt = now
	return true
}

// await parks the caller in the pool's FIFO wait queue until the sweep hands
// it a reclaimed port, the wait budget elapses, or ctx is canceled.
func (l *Ledger) await(ctx context.Context, owner, pool string) (int, error) {
	w := &waiter{owner: owner, ch: make(chan int, 1)}

	l.waitMu.Lock()
	l.waiters[pool] = append(l.waiters[pool], w)
	l.waitMu.Unlock()

	timer := time.NewTimer(l.cfg.AllocationWait)
	defer timer.Stop()

	select {
	case n := <-w.ch:
		return n, nil
	case <-timer.C:
		if n, ok := l.abandon(pool, w); ok {
			// The sweep handed us a port in the same instant the timer
			// fired. Keep it rather than leak it.
			return n, nil
		}
		return 0, fmt.Errorf("pool %q: waited %s: %w", pool, l.cfg.AllocationWait, domain.ErrAllocationTimeout)
	case <-ctx.Done():
		if n, ok := l.abandon(pool, w); ok {
			return n, nil
		}
		return 0, ctx.Err()
	}
}

// abandon removes w from the pool's queue. If w is gone the sweep already
// claimed a port on its behalf; the pending handoff is received and returned
// so the port is not stranded in ALLOCATED with a departed owner.
func (l *Ledger) abandon(pool string, w *waiter) (int, bool) {
	l.waitMu.Lock()
	queue := l.waiters[pool]
	for i, queued := range queue {
		if queued == w {
			l.waiters[pool] = append(queue[:i], queue[i+1:]...)
			l.waitMu.Unlock()
			return 0, false
		}
	}
	l.waitMu.Unlock()

	// Not in the queue anymore: a handoff is in flight. ch is buffered, so
	// the send has either landed or is about to.
	return <-w.ch, true
}

// handoff serves the pool's wait queue in FIFO order from whatever became
// AVAILABLE. The claim-and-send happens under waitMu so that a waiter absent
// from the queue is guaranteed to have a handoff in its channel; abandon
// relies on that invariant.
func (l *Ledger) handoff(poolRange port.Range) {
	l.waitMu.Lock()
	defer l.waitMu.Unlock()

	for {
		queue := l.waiters[poolRange.Name]
		if len(queue) == 0 {
			return
		}
		head := queue[0]
		n, ok := l.tryClaim(head.owner, poolRange, 0)
		if !ok {
			return
		}
		l.waiters[poolRange.Name] = queue[1:]
		head.ch <- n
	}
}

// Confirm transitions ALLOCATED -> IN_USE after the owner reports a
// successful bind.
func (l *Ledger) Confirm(number int, owner string) error {
	r, ok := l.records[number]
	if !ok {
		return fmt.Errorf("port %d: %w", number, domain.ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec.Owner != owner {
		return fmt.Errorf("port %d is not owned by %q: %w", number, owner, domain.ErrConflict)
	}
	if r.rec.State != port.StateAllocated {
		return fmt.Errorf("port %d is %s, not %s: %w", number, r.rec.State, port.StateAllocated, domain.ErrConflict)
	}

	r.rec.State = port.StateInUse
	r.rec.LastSeenActiveAt = l.now()
	return nil
}

// Release transitions ALLOCATED or IN_USE -> RELEASED. The recycle sweep
// returns the port to AVAILABLE later.
func (l *Ledger) Release(number int, owner string) error {
	r, ok := l.records[number]
	if !ok {
		return fmt.Errorf("port %d: %w", number, domain.ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec.Owner != owner {
		return fmt.Errorf("port %d is not owned by %q: %w", number, owner, domain.ErrConflict)
	}
	switch r.rec.State {
	case port.StateAllocated, port.StateInUse:
		r.rec.State = port.StateReleased
		return nil
	default:
		return fmt.Errorf("port %d is %s: %w", number, r.rec.State, domain.ErrConflict)
	}
}

// Record returns a copy of one port's record.
func (l *Ledger) Record(number int) (port.Record, error) {
	r, ok := l.records[number]
	if !ok {
		return port.Record{}, fmt.Errorf("port %d: %w", number, domain.ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec, nil
}

// Snapshot returns a copy of every record, ordered by port number.
func (l *Ledger) Snapshot() []port.Record {
	out := make([]port.Record, 0, len(l.records))
	for _, r := range l.records {
		r.mu.Lock()
		out = append(out, r.rec)
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Available returns the AVAILABLE port numbers in the named pool, ascending.
func (l *Ledger) Available(pool string) ([]int, error) {
	poolRange, ok := l.poolRange(pool)
	if !ok {
		return nil, fmt.Errorf("pool %q: %w", pool, domain.ErrNotFound)
	}

	var out []int
	for n := poolRange.Start; n <= poolRange.End; n++ {
		r := l.records[n]
		r.mu.Lock()
		if r.rec.State == port.StateAvailable {
			out = append(out, n)
		}
		r.mu.Unlock()
	}
	return out, nil
}

// Pools returns the configured pool ranges.
func (l *Ledger) Pools() []port.Range {
	return append([]port.Range(nil), l.pools...)
}

// Restore overwrites records from a persisted snapshot. Records outside the
// currently configured pools are dropped with a warning; the configuration
// may legitimately have changed between runs. Must be called before the
// sweeps start.
func (l *Ledger) Restore(records []port.Record) {
	for _, rec := range records {
		r, ok := l.records[rec.Number]
		if !ok {
			l.logger.Warn("dropping persisted record outside configured pools",
				slog.Int("port", rec.Number),
				slog.String("pool", rec.Pool),
			)
			continue
		}
		r.mu.Lock()
		r.rec = rec
		r.mu.Unlock()
	}
}

func (l *Ledger) hasWaiters(pool string) bool {
	l.waitMu.Lock()
	defer l.waitMu.Unlock()
	return len(l.waiters[pool]) > 0
}

func (l *Ledger) poolRange(name string) (port.Range, bool) {
	for _, p := range l.pools {
		if p.Name == name {
			return p, true
		}
	}
	return port.Range{}, false
}

func (l *Ledger) recordAllocation(ctx context.Context, pool, result string, start time.Time) {
	if l.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		telemetry.AttrPool.String(pool),
		telemetry.AttrResult.String(result),
	)
	l.metrics.PortAllocationsTotal.Add(ctx, 1, attrs)
	l.metrics.AllocationWaitDuration.Record(ctx, l.now().Sub(start).Seconds(), attrs)
}

// listenCheck is the default occupancy probe: if a loopback listen succeeds
// the port is free, so nothing holds it anymore.
func listenCheck(number int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", number))
	if err != nil {
		return true
	}
	_ = ln.Close()
	return false
}
