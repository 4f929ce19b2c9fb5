// Package fanout runs a function over a batch of items with a fixed worker
// count, preserving input order in the results. The ledger's leak sweep uses
// it to probe every IN_USE port without spawning unbounded goroutines.
package fanout

import (
	"context"
	"sync"
)

// Result is the outcome for one input item: Value on success, Err otherwise.
type Result[R any] struct {
	Value R
	Err   error
}

// Map applies fn to every item using at most workers goroutines and returns
// one Result per item, in input order.
//
// Dispatch stops when ctx is canceled: items not yet handed to a worker are
// marked with ctx.Err() and fn is never called for them. Items already being
// processed run to completion; fn checks ctx itself if it can be interrupted.
//
// Map blocks until all dispatched work finishes. An empty input returns an
// empty non-nil slice. A workers value below 1 is treated as 1.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	if len(items) == 0 {
		return []Result[R]{}
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]Result[R], len(items))
	next := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for idx := range next {
				val, err := fn(ctx, items[idx])
				results[idx] = Result[R]{Value: val, Err: err}
			}
		}()
	}

	for i := range items {
		select {
		case next <- i:
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				results[j] = Result[R]{Err: ctx.Err()}
			}
			close(next)
			wg.Wait()
			return results
		}
	}
	close(next)
	wg.Wait()
	return results
}
