package model

import "time"

// Repository is the registration of one GitHub repository with the pipeline.
// The webhook secret and the auto-* flags are maintained by the integration
// setup flows; the core only reads them.
type Repository struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	FullName       string    `json:"full_name"` // "owner/name"
	WebhookSecret  string    `json:"-"`
	AutoSummarize  bool      `json:"auto_summarize"`
	AutoCategorize bool      `json:"auto_categorize"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChannelKind string

const (
	ChannelKindPR    ChannelKind = "pr"
	ChannelKindIssue ChannelKind = "issue"
)

// ChannelBinding maps a repository and a notification kind to one Discord
// channel. A repository may have several bindings per kind; fan-out delivers
// to each independently.
type ChannelBinding struct {
	ID        int64       `json:"id"`
	RepoID    int64       `json:"repo_id"`
	Kind      ChannelKind `json:"kind"`
	ChannelID string      `json:"channel_id"`
	BotToken  string      `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}
