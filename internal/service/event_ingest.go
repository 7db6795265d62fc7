package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"opscord.app/pipeline/common/id"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/signature"
	"opscord.app/pipeline/internal/store"
)

var (
	ErrRepoNotFound     = errors.New("repository not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type IngestParams struct {
	// Body is the exact raw request body; signature verification runs over
	// these bytes, not a re-serialization.
	Body      []byte
	Signature string
}

type IngestResult struct {
	Event    *model.Event
	Created  bool
	Enqueued bool
	JobID    int64
}

type EventIngestService interface {
	Ingest(ctx context.Context, params IngestParams) (*IngestResult, error)
}

type eventIngestService struct {
	repos    store.RepoStore
	jobs     store.JobStore
	txRunner TxRunner
	logger   *slog.Logger
}

func NewEventIngestService(repos store.RepoStore, jobs store.JobStore, txRunner TxRunner, logger *slog.Logger) EventIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventIngestService{
		repos:    repos,
		jobs:     jobs,
		txRunner: txRunner,
		logger:   logger,
	}
}

// Ingest authenticates and records one webhook delivery, then enqueues
// follow-up work when the transition warrants it. Runs on the request path:
// it never executes AI or delivery work inline.
func (s *eventIngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	if len(params.Body) == 0 {
		return nil, fmt.Errorf("request body is required")
	}

	// The repository is resolved from the body before verification because
	// each repository carries its own webhook secret.
	fullName, err := repoFullName(params.Body)
	if err != nil {
		return nil, err
	}

	repo, err := s.repos.GetByFullName(ctx, fullName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRepoNotFound
		}
		return nil, fmt.Errorf("fetching repository: %w", err)
	}

	if !signature.Verify(params.Body, params.Signature, repo.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	parsed, err := ParseWebhook(params.Body)
	if err != nil {
		return nil, err
	}

	var (
		event   *model.Event
		created bool
	)
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		event, created, err = sp.Events().Upsert(ctx, &model.Event{
			ID:      id.New(),
			RepoID:  repo.ID,
			Kind:    parsed.Kind,
			Number:  parsed.Number,
			Action:  parsed.Action,
			Title:   parsed.Title,
			State:   parsed.State,
			Body:    parsed.Body,
			Author:  parsed.Author,
			Payload: json.RawMessage(params.Body),
		})
		if err != nil {
			return fmt.Errorf("upserting event: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	result := &IngestResult{Event: event, Created: created}

	kind, ok := ShouldEnqueue(parsed.Kind, parsed.Action, repo)
	if !ok {
		return result, nil
	}
	// A delivery that matched an existing row is a redelivery, not new
	// activity, with one exception: a reopened PR reuses the row created
	// when it was opened.
	if !created && parsed.Action != "reopened" {
		return result, nil
	}

	payload, err := jobPayload(kind, repo, parsed)
	if err != nil {
		return nil, fmt.Errorf("building job payload: %w", err)
	}

	// The queue, not provider redelivery, is the retry mechanism: once the
	// event row is durable the webhook is acknowledged even if the enqueue
	// fails.
	job, err := s.jobs.Enqueue(ctx, &model.Job{
		ID:         id.New(),
		UserID:     repo.UserID,
		RepoID:     &repo.ID,
		Kind:       kind,
		Payload:    payload,
		MaxRetries: model.DefaultMaxRetries,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "enqueue after event upsert failed",
			"error", err, "event_id", event.ID, "job_type", kind)
		return result, nil
	}

	result.Enqueued = true
	result.JobID = job.ID
	return result, nil
}

// ShouldEnqueue decides whether an event transition warrants follow-up work.
// Pure function of (kind, action, repository configuration).
func ShouldEnqueue(kind model.EventKind, action string, repo *model.Repository) (model.JobKind, bool) {
	switch kind {
	case model.EventKindPullRequest:
		if (action == "opened" || action == "reopened") && repo.AutoSummarize {
			return model.JobKindSummarizePR, true
		}
	case model.EventKindIssue:
		if action == "opened" && repo.AutoCategorize {
			return model.JobKindCategorizeIssue, true
		}
	case model.EventKindPush:
		return model.JobKindPushProcessed, true
	}
	return "", false
}

func jobPayload(kind model.JobKind, repo *model.Repository, parsed *ParsedWebhook) (json.RawMessage, error) {
	switch kind {
	case model.JobKindSummarizePR:
		return json.Marshal(model.SummarizePRPayload{
			RepoID:       repo.ID,
			RepoFullName: repo.FullName,
			PRNumber:     parsed.Number,
			ChangedFiles: parsed.ChangedFiles,
		})
	case model.JobKindCategorizeIssue:
		return json.Marshal(model.CategorizeIssuePayload{
			RepoID:       repo.ID,
			RepoFullName: repo.FullName,
			IssueNumber:  parsed.Number,
		})
	case model.JobKindPushProcessed:
		return json.Marshal(model.PushProcessedPayload{
			RepoID:       repo.ID,
			RepoFullName: repo.FullName,
			Branch:       parsed.Branch,
			CommitCount:  parsed.CommitCount,
		})
	}
	return nil, fmt.Errorf("no payload shape for job type %q", kind)
}

func repoFullName(body []byte) (string, error) {
	var probe struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if probe.Repository.FullName == "" {
		return "", fmt.Errorf("%w: no repository", ErrMalformedPayload)
	}
	return probe.Repository.FullName, nil
}
