package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobKind enumerates the units of deferred work the worker knows how to run.
// Dispatch is keyed on this type, not on raw strings.
type JobKind string

const (
	JobKindSummarizePR     JobKind = "summarize-pr"
	JobKindCategorizeIssue JobKind = "categorize-issue"
	JobKindPushProcessed   JobKind = "push-processed"
)

const DefaultMaxRetries = 3

// Job is one row of the job_queue table. Status and retry bookkeeping are
// owned exclusively by the job store; handlers only report an outcome.
type Job struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	RepoID       *int64          `json:"repo_id,omitempty"`
	Kind         JobKind         `json:"job_type"`
	Payload      json.RawMessage `json:"job_data"`
	Status       JobStatus       `json:"status"`
	Priority     int             `json:"priority"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	AvailableAt  time.Time       `json:"available_at"`
}

// SummarizePRPayload is the job_data shape for summarize-pr jobs.
type SummarizePRPayload struct {
	RepoID       int64  `json:"repo_id"`
	RepoFullName string `json:"repo_full_name"`
	PRNumber     int64  `json:"pr_number"`
	ChangedFiles int    `json:"changed_files"`
}

// CategorizeIssuePayload is the job_data shape for categorize-issue jobs.
type CategorizeIssuePayload struct {
	RepoID       int64  `json:"repo_id"`
	RepoFullName string `json:"repo_full_name"`
	IssueNumber  int64  `json:"issue_number"`
}

// PushProcessedPayload is the job_data shape for push-processed jobs.
type PushProcessedPayload struct {
	RepoID       int64  `json:"repo_id"`
	RepoFullName string `json:"repo_full_name"`
	Branch       string `json:"branch"`
	CommitCount  int    `json:"commit_count"`
}
