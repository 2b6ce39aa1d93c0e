package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marco/cinedex/internal/endpoint"
)

// TargetResult holds the outcome of fetching a single target.
type TargetResult struct {
	Target endpoint.Target
	Result *Result
	Err    error
}

// TargetFunc fetches one target.
type TargetFunc func(ctx context.Context, t endpoint.Target) (*Result, error)

// Prefetch warms the cache for targets using up to workers concurrent
// fetches. Already-cached targets are served from cache. Each worker waits
// the configured rate limit delay after every upstream request.
func (c *Client) Prefetch(ctx context.Context, targets []endpoint.Target, workers int, processed *int64) []TargetResult {
	return RunConcurrently(ctx, targets, paced(c.Fetch, c.rateDelay), workers, processed)
}

// paced wraps fn so that a worker pauses for delay after each result that
// came from upstream. Cache hits are not delayed.
func paced(fn TargetFunc, delay time.Duration) TargetFunc {
	if delay <= 0 {
		return fn
	}
	return func(ctx context.Context, t endpoint.Target) (*Result, error) {
		res, err := fn(ctx, t)
		if res != nil && res.FromCache {
			return res, err
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		return res, err
	}
}

// RunConcurrently fans fn out across N workers.
// The processed pointer, when non-nil, is atomically incremented after each
// target completes (success or failure), enabling external progress reporting.
// Results are returned in no guaranteed order.
func RunConcurrently(
	ctx context.Context,
	targets []endpoint.Target,
	fn TargetFunc,
	workers int,
	processed *int64,
) []TargetResult {
	if workers <= 0 {
		workers = 1
	}
	if processed == nil {
		processed = new(int64)
	}

	jobs := make(chan endpoint.Target, len(targets))
	results := make(chan TargetResult, len(targets))

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				// Check for cancellation before fetching
				if ctx.Err() != nil {
					results <- TargetResult{Target: t, Err: ctx.Err()}
					atomic.AddInt64(processed, 1)
					continue
				}

				res, err := fn(ctx, t)
				results <- TargetResult{Target: t, Result: res, Err: err}
				atomic.AddInt64(processed, 1)
			}
		}()
	}

	for _, t := range targets {
		jobs <- t
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []TargetResult
	for r := range results {
		out = append(out, r)
	}
	return out
}
