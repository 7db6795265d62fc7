package service

import (
	"context"
	"encoding/json"
	"fmt"

	"opscord.app/pipeline/common/id"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/store"
)

type EnqueueParams struct {
	UserID     int64           `json:"user_id"`
	RepoID     *int64          `json:"repo_id,omitempty"`
	Kind       model.JobKind   `json:"job_type"`
	Payload    json.RawMessage `json:"job_data"`
	Priority   int             `json:"priority"`
	MaxRetries int             `json:"max_retries"`
}

// QueueService is the API-facing surface of the job queue. Claiming and
// status transitions during processing stay with the worker; this service
// covers enqueueing, inspection, and operator-initiated retries.
type QueueService interface {
	Enqueue(ctx context.Context, params EnqueueParams) (*model.Job, error)
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	Retry(ctx context.Context, jobID int64) (*model.Job, error)
	Stats(ctx context.Context, userID int64) (map[model.JobStatus]int, error)
}

type queueService struct {
	jobs store.JobStore
}

func NewQueueService(jobs store.JobStore) QueueService {
	return &queueService{jobs: jobs}
}

func (s *queueService) Enqueue(ctx context.Context, params EnqueueParams) (*model.Job, error) {
	if params.UserID == 0 {
		return nil, fmt.Errorf("user_id is required")
	}
	switch params.Kind {
	case model.JobKindSummarizePR, model.JobKindCategorizeIssue, model.JobKindPushProcessed:
	default:
		return nil, fmt.Errorf("unknown job type %q", params.Kind)
	}
	if len(params.Payload) == 0 {
		return nil, fmt.Errorf("job_data is required")
	}

	return s.jobs.Enqueue(ctx, &model.Job{
		ID:         id.New(),
		UserID:     params.UserID,
		RepoID:     params.RepoID,
		Kind:       params.Kind,
		Payload:    params.Payload,
		Priority:   params.Priority,
		MaxRetries: params.MaxRetries,
	})
}

func (s *queueService) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// Retry resets a terminally failed job so the worker picks it up again.
// Only failed jobs are eligible; anything else is reported as not found by
// the store's guarded update.
func (s *queueService) Retry(ctx context.Context, jobID int64) (*model.Job, error) {
	if err := s.jobs.Retry(ctx, jobID); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(ctx, jobID)
}

func (s *queueService) Stats(ctx context.Context, userID int64) (map[model.JobStatus]int, error) {
	return s.jobs.StatsByUser(ctx, userID)
}
