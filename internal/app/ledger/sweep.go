package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/aurora-nexus/portward/internal/app/fanout"
	"github.com/aurora-nexus/portward/internal/domain/port"
)

// Run drives the ledger's two background sweeps until ctx is canceled:
//
//   - recycle: RELEASED -> AVAILABLE. The delay between release and reuse
//     exists so a just-freed port is not reassigned while OS-level socket
//     teardown may still be in progress.
//   - leak scan: probes each IN_USE port and transitions it to RELEASED when
//     no process holds it anymore, recovering ports leaked by crashed
//     services without waiting for an explicit release.
//
// Run blocks; callers start it in its own goroutine. In-flight transitions
// complete before Run returns.
func (l *Ledger) Run(ctx context.Context) {
	recycle := time.NewTicker(l.cfg.RecycleInterval)
	defer recycle.Stop()
	leak := time.NewTicker(l.cfg.LeakScanInterval)
	defer leak.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-recycle.C:
			l.sweepRecycle()
		case <-leak.C:
			l.sweepLeaked(ctx)
		}
	}
}

// sweepRecycle returns every RELEASED port to AVAILABLE, then serves each
// pool's wait queue from the reclaimed capacity.
func (l *Ledger) sweepRecycle() {
	recycled := 0
	for _, r := range l.records {
		r.mu.Lock()
		if r.rec.State == port.StateReleased {
			r.rec.State = port.StateAvailable
			r.rec.Owner = ""
			r.rec.AllocatedAt = time.Time{}
			r.rec.LastSeenActiveAt = time.Time{}
			recycled++
		}
		r.mu.Unlock()
	}

	if recycled > 0 {
		l.logger.Debug("recycle sweep returned ports to pool", slog.Int("count", recycled))
	}

	for _, poolRange := range l.pools {
		l.handoff(poolRange)
	}
}

// sweepLeaked probes all IN_USE ports concurrently with a bounded worker
// count and releases the ones no process holds. Occupancy checks run outside
// the per-port locks so a slow check never blocks Allocate or Release.
func (l *Ledger) sweepLeaked(ctx context.Context) {
	var inUse []int
	for n, r := range l.records {
		r.mu.Lock()
		if r.rec.State == port.StateInUse {
			inUse = append(inUse, n)
		}
		r.mu.Unlock()
	}
	if len(inUse) == 0 {
		return
	}

	results := fanout.Map(ctx, l.cfg.LeakScanWorkers, inUse,
		func(_ context.Context, number int) (bool, error) {
			return l.checker(number), nil
		})

	for i, res := range results {
		if res.Err != nil || res.Value {
			continue // still held, or the scan was canceled
		}
		l.reclaimLeaked(inUse[i])
	}
}

// reclaimLeaked transitions one leaked port IN_USE -> RELEASED, re-checking
// state under the lock since the owner may have released or confirmed
// activity while the occupancy check ran.
func (l *Ledger) reclaimLeaked(number int) {
	r := l.records[number]
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec.State != port.StateInUse {
		return
	}
	l.logger.Info("reclaiming leaked port",
		slog.Int("port", number),
		slog.String("owner", r.rec.Owner),
		slog.String("pool", r.rec.Pool),
	)
	r.rec.State = port.StateReleased
}
