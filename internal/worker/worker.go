package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"opscord.app/pipeline/common/logger"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/store"
)

type Config struct {
	BatchSize    int
	PollInterval time.Duration
}

type RunResult struct {
	ProcessedCount int `json:"processedCount"`
	FailedCount    int `json:"failedCount"`
}

// Worker polls the job queue, claims batches, and dispatches each job to
// its registered handler. Multiple workers may run concurrently; the
// store's atomic claim is the only coordination between them.
type Worker struct {
	jobs     store.JobStore
	registry *Registry
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(jobs store.JobStore, registry *Registry, cfg Config) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Worker{
		jobs:      jobs,
		registry:  registry,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx is canceled. A full batch re-polls
// immediately; an empty one waits out the poll interval.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pipeline.worker.dispatcher",
	})

	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started",
		"batch_size", w.cfg.BatchSize,
		"poll_interval", w.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
		}

		result, err := w.RunOnce(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "claim cycle error", "error", err)
			w.sleep(ctx, time.Second)
			continue
		}

		if result.ProcessedCount+result.FailedCount < w.cfg.BatchSize {
			w.sleep(ctx, w.cfg.PollInterval)
		}
	}
}

// Stop signals the worker to stop and waits for the current batch to drain.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

// RunOnce claims and processes one batch. Shared by the polling loop and
// the HTTP processing trigger.
func (w *Worker) RunOnce(ctx context.Context) (*RunResult, error) {
	jobs, err := w.jobs.ClaimBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claiming batch: %w", err)
	}

	result := &RunResult{}
	for i := range jobs {
		if w.processJob(ctx, &jobs[i]) {
			result.ProcessedCount++
		} else {
			result.FailedCount++
		}
	}
	return result, nil
}

// processJob resolves one claimed job to completed, pending-with-backoff,
// or terminally failed. Returns true when the job completed.
func (w *Worker) processJob(ctx context.Context, job *model.Job) bool {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:   &job.ID,
		RepoID:  job.RepoID,
		UserID:  &job.UserID,
		JobKind: logger.Ptr(string(job.Kind)),
	})

	slog.InfoContext(ctx, "processing job", "retry_count", job.RetryCount)
	start := time.Now()

	err := w.runHandlerSafe(ctx, job)
	if err == nil {
		if err := w.jobs.Complete(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark job completed", "error", err)
			return false
		}
		slog.InfoContext(ctx, "job completed", "duration_ms", time.Since(start).Milliseconds())
		return true
	}

	if IsNonRetryable(err) {
		slog.ErrorContext(ctx, "job failed terminally", "error", err)
		if failErr := w.jobs.FailTerminal(ctx, job.ID, err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark job terminally failed", "error", failErr)
		}
		return false
	}

	slog.WarnContext(ctx, "job attempt failed",
		"error", err,
		"retry_count", job.RetryCount,
		"max_retries", job.MaxRetries)
	if failErr := w.jobs.Fail(ctx, job.ID, err.Error()); failErr != nil {
		slog.ErrorContext(ctx, "failed to record job failure", "error", failErr)
	}
	return false
}

// runHandlerSafe isolates one job: a panicking handler fails its own job
// without taking the batch or the loop down with it.
func (w *Worker) runHandlerSafe(ctx context.Context, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in job handler", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	handler, ok := w.registry.Lookup(job.Kind)
	if !ok {
		return NonRetryable(fmt.Errorf("no handler registered for job type %q", job.Kind))
	}
	return handler.Handle(ctx, job)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-timer.C:
	}
}
