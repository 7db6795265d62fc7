package worker

import (
	"context"
	"log/slog"
	"time"

	"opscord.app/pipeline/common/logger"
	"opscord.app/pipeline/internal/store"
)

type ReclaimerConfig struct {
	// Lease is how long a processing job may sit before its worker is
	// presumed dead.
	Lease    time.Duration
	Interval time.Duration
}

// Reclaimer periodically returns expired processing jobs to pending. This
// handles the crash recovery scenario where a worker dies after claiming
// but before resolving a job.
type Reclaimer struct {
	jobs store.JobStore
	cfg  ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(jobs store.JobStore, cfg ReclaimerConfig) *Reclaimer {
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reclaimer{
		jobs:      jobs,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaim loop. Blocks until Stop is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pipeline.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"lease", r.cfg.Lease,
		"interval", r.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			reclaimed, err := r.jobs.ReclaimStuck(ctx, r.cfg.Lease)
			if err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
				continue
			}
			if reclaimed > 0 {
				slog.WarnContext(ctx, "reclaimed stuck jobs", "count", reclaimed)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}
