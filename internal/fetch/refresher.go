package fetch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marco/cinedex/internal/endpoint"
)

// Refresher periodically re-fetches a fixed set of targets so their cache
// entries never go stale.
type Refresher struct {
	client   *Client
	targets  []endpoint.Target
	interval time.Duration
	workers  int
	log      *slog.Logger

	running atomic.Bool
}

// RefreshSummary is the outcome of one refresh cycle.
type RefreshSummary struct {
	Refreshed int
	Failed    int
	Skipped   bool
	Duration  time.Duration
}

// NewRefresher creates a refresher for targets.
func NewRefresher(client *Client, targets []endpoint.Target, interval time.Duration, workers int) *Refresher {
	return &Refresher{
		client:   client,
		targets:  targets,
		interval: interval,
		workers:  workers,
		log:      client.log,
	}
}

// Run refreshes every interval until ctx is done. When runOnStart is set the
// first cycle starts immediately.
func (r *Refresher) Run(ctx context.Context, runOnStart bool) {
	r.log.Info("cache refresher started",
		"interval", r.interval,
		"targets", len(r.targets),
		"run_on_start", runOnStart,
	)

	if runOnStart {
		r.RefreshOnce(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RefreshOnce(ctx)
		case <-ctx.Done():
			r.log.Info("cache refresher stopped")
			return
		}
	}
}

// RefreshOnce runs a single cycle. If a previous cycle is still running the
// call returns immediately with Skipped set.
func (r *Refresher) RefreshOnce(ctx context.Context) RefreshSummary {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("cache refresh skipped: previous refresh still running",
			"interval", r.interval,
			"suggestion", "consider increasing refresh.interval_minutes")
		return RefreshSummary{Skipped: true}
	}
	defer r.running.Store(false)

	start := time.Now()
	var summary RefreshSummary
	for _, res := range RunConcurrently(ctx, r.targets, paced(r.client.Refetch, r.client.rateDelay), r.workers, nil) {
		if res.Err != nil {
			summary.Failed++
			r.log.Error("failed to refresh target", "path", res.Target.Path, "error", res.Err)
			continue
		}
		summary.Refreshed++
	}
	summary.Duration = time.Since(start)

	r.log.Info("cache refresh completed",
		"refreshed", summary.Refreshed,
		"failed", summary.Failed,
		"duration_sec", summary.Duration.Seconds(),
	)
	return summary
}
