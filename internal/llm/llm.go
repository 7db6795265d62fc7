package llm

import (
	"context"
	"time"

	"opscord.app/pipeline/internal/model"
)

// Client exposes the AI capabilities used by the job handlers. Call
// failures (network, auth, provider errors) surface as errors and are
// retryable at the job level; malformed model output is normalized into a
// degraded-but-usable result instead.
type Client interface {
	// Summarize analyzes a pull request and returns a structured summary.
	Summarize(ctx context.Context, req SummarizeRequest) (*model.PRSummary, error)
	// Categorize triages an issue into a category and severity.
	Categorize(ctx context.Context, title, body string) (*model.IssueTriage, error)
}

type Config struct {
	APIKey  string
	BaseURL string // optional custom endpoint
	Model   string
	Timeout time.Duration // per-call deadline so a stuck call can't wedge the worker
}

type SummarizeRequest struct {
	Title        string
	Body         string
	Diff         string
	FilesChanged int
}

// maxDiffChars bounds how much of the diff goes into the prompt.
const maxDiffChars = 5000
