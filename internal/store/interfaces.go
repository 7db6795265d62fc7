package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"opscord.app/pipeline/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// EventStore defines the contract for webhook event records.
type EventStore interface {
	// Upsert inserts the event or, when a row already exists for
	// (repo_id, kind, number), updates its mutable fields. The returned
	// bool is true when a new row was created.
	Upsert(ctx context.Context, event *model.Event) (*model.Event, bool, error)
	GetByNaturalKey(ctx context.Context, repoID int64, kind model.EventKind, number int64) (*model.Event, error)
	SetAISummary(ctx context.Context, repoID int64, kind model.EventKind, number int64, summary json.RawMessage) error
}

// JobStore owns every status transition of the job_queue table. Nothing
// else writes status or retry_count.
type JobStore interface {
	Enqueue(ctx context.Context, job *model.Job) (*model.Job, error)
	// ClaimBatch atomically moves up to limit eligible pending jobs to
	// processing and returns them. Safe under concurrent callers: each
	// job is handed to exactly one claimer.
	ClaimBatch(ctx context.Context, limit int) ([]model.Job, error)
	Complete(ctx context.Context, id int64) error
	// Fail records a failed attempt. A job that has exhausted its
	// retries becomes terminally failed with the error preserved;
	// otherwise it returns to pending with exponential backoff.
	Fail(ctx context.Context, id int64, errMsg string) error
	// FailTerminal marks a job failed immediately, bypassing remaining
	// retries. For errors a retry cannot fix (malformed payload, unknown
	// job type).
	FailTerminal(ctx context.Context, id int64, errMsg string) error
	GetByID(ctx context.Context, id int64) (*model.Job, error)
	// Retry resets a terminally failed job to pending with a clean
	// retry count.
	Retry(ctx context.Context, id int64) error
	StatsByUser(ctx context.Context, userID int64) (map[model.JobStatus]int, error)
	// ReclaimStuck returns processing jobs whose lease expired (their
	// worker likely died) to pending, without charging a retry.
	ReclaimStuck(ctx context.Context, lease time.Duration) (int64, error)
}

// RepoStore defines read access to repository registrations.
type RepoStore interface {
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	GetByID(ctx context.Context, id int64) (*model.Repository, error)
}

// ChannelStore defines read access to notification channel bindings.
type ChannelStore interface {
	ListByRepoAndKind(ctx context.Context, repoID int64, kind model.ChannelKind) ([]model.ChannelBinding, error)
}
