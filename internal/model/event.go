package model

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventKindPullRequest EventKind = "pull_request"
	EventKindIssue       EventKind = "issue"
	EventKindPush        EventKind = "push"
)

// Event is the durable record of one inbound webhook delivery.
// (RepoID, Kind, Number) is unique: a re-delivered webhook updates the
// existing row instead of creating a second one. Rows are never deleted
// here; retention is handled elsewhere.
type Event struct {
	ID        int64           `json:"id"`
	RepoID    int64           `json:"repo_id"`
	Kind      EventKind       `json:"kind"`
	Number    int64           `json:"number"`
	Action    string          `json:"action"`
	Title     *string         `json:"title,omitempty"`
	State     *string         `json:"state,omitempty"`
	Body      *string         `json:"body,omitempty"`
	Author    *string         `json:"author,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	AISummary json.RawMessage `json:"ai_summary,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
