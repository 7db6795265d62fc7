package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"opscord.app/pipeline/internal/model"
)

// ErrUnsupportedEvent is returned for payload shapes the pipeline does not
// record (ping, star, workflow runs, ...). The webhook endpoint treats it as
// an accepted no-op.
var ErrUnsupportedEvent = errors.New("unsupported event payload")

// ErrMalformedPayload is returned when the body is not usable JSON or lacks
// the fields every delivery must carry.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// ParsedWebhook is the provider-neutral view of one GitHub webhook delivery.
// Number is the event's natural key within (repo, kind): the PR or issue
// number, or a derived key for pushes.
type ParsedWebhook struct {
	Kind         model.EventKind
	Action       string
	Number       int64
	RepoFullName string
	Title        *string
	State        *string
	Body         *string
	Author       *string

	// Pull-request-only field: GitHub's changed_files count.
	ChangedFiles int

	// Push-only fields.
	Branch      string
	CommitCount int
}

type webhookEnvelope struct {
	Action      string `json:"action"`
	PullRequest *struct {
		Number       int64  `json:"number"`
		Title        string `json:"title"`
		Body         string `json:"body"`
		State        string `json:"state"`
		ChangedFiles int    `json:"changed_files"`
		User         struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"pull_request"`
	Issue *struct {
		Number int64  `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		State  string `json:"state"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"issue"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`

	// Push deliveries have no action; they carry ref and commits instead.
	Ref     string `json:"ref"`
	After   string `json:"after"`
	Commits []struct {
		ID string `json:"id"`
	} `json:"commits"`
	Pusher *struct {
		Name string `json:"name"`
	} `json:"pusher"`
}

// ParseWebhook detects the event kind from the payload shape and extracts
// the natural key plus the mutable fields worth recording. The kind is taken
// from the body rather than the X-GitHub-Event header so a recorded payload
// stays self-describing.
func ParseWebhook(raw json.RawMessage) (*ParsedWebhook, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Repository.FullName == "" {
		return nil, fmt.Errorf("%w: no repository", ErrMalformedPayload)
	}

	switch {
	case env.PullRequest != nil:
		return &ParsedWebhook{
			Kind:         model.EventKindPullRequest,
			Action:       env.Action,
			Number:       env.PullRequest.Number,
			RepoFullName: env.Repository.FullName,
			Title:        nonEmpty(env.PullRequest.Title),
			State:        nonEmpty(env.PullRequest.State),
			Body:         nonEmpty(env.PullRequest.Body),
			Author:       nonEmpty(env.PullRequest.User.Login),
			ChangedFiles: env.PullRequest.ChangedFiles,
		}, nil

	case env.Issue != nil:
		return &ParsedWebhook{
			Kind:         model.EventKindIssue,
			Action:       env.Action,
			Number:       env.Issue.Number,
			RepoFullName: env.Repository.FullName,
			Title:        nonEmpty(env.Issue.Title),
			State:        nonEmpty(env.Issue.State),
			Body:         nonEmpty(env.Issue.Body),
			Author:       nonEmpty(env.Issue.User.Login),
		}, nil

	case env.Ref != "" && env.After != "":
		parsed := &ParsedWebhook{
			Kind:         model.EventKindPush,
			Action:       "pushed",
			Number:       pushNaturalKey(env.Ref, env.After),
			RepoFullName: env.Repository.FullName,
			Branch:       strings.TrimPrefix(env.Ref, "refs/heads/"),
			CommitCount:  len(env.Commits),
		}
		if env.Pusher != nil {
			parsed.Author = nonEmpty(env.Pusher.Name)
		}
		return parsed, nil
	}

	return nil, ErrUnsupportedEvent
}

// pushNaturalKey derives a stable key for a push from its ref and head SHA.
// A redelivered push maps to the same key and upserts the same row.
func pushNaturalKey(ref, after string) int64 {
	h := fnv.New64a()
	h.Write([]byte(ref))
	h.Write([]byte{0})
	h.Write([]byte(after))
	return int64(h.Sum64() & math.MaxInt64)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
