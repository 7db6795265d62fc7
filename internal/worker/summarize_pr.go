package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/llm"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/service"
	"opscord.app/pipeline/internal/store"
)

// SummarizePRHandler generates an AI summary for a recorded pull request,
// persists it on the event, and fans it out to the repository's PR channels.
type SummarizePRHandler struct {
	events store.EventStore
	llm    llm.Client
	notify service.NotifyService
	logger *slog.Logger
}

func NewSummarizePRHandler(events store.EventStore, llmClient llm.Client, notify service.NotifyService, logger *slog.Logger) *SummarizePRHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummarizePRHandler{
		events: events,
		llm:    llmClient,
		notify: notify,
		logger: logger,
	}
}

func (h *SummarizePRHandler) Kind() model.JobKind {
	return model.JobKindSummarizePR
}

func (h *SummarizePRHandler) Handle(ctx context.Context, job *model.Job) error {
	var payload model.SummarizePRPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return NonRetryable(fmt.Errorf("decoding job payload: %w", err))
	}

	event, err := h.events.GetByNaturalKey(ctx, payload.RepoID, model.EventKindPullRequest, payload.PRNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The event row is written before the job; if it is gone now,
			// it will not reappear on a retry.
			return NonRetryable(fmt.Errorf("pull request event %s#%d not found", payload.RepoFullName, payload.PRNumber))
		}
		return fmt.Errorf("fetching pull request event: %w", err)
	}

	// Diff text would need an API fetch; the webhook payload only carries
	// the changed-files count.
	summary, err := h.llm.Summarize(ctx, llm.SummarizeRequest{
		Title:        deref(event.Title),
		Body:         deref(event.Body),
		FilesChanged: payload.ChangedFiles,
	})
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return NonRetryable(fmt.Errorf("encoding summary: %w", err))
	}
	if err := h.events.SetAISummary(ctx, payload.RepoID, model.EventKindPullRequest, payload.PRNumber, raw); err != nil {
		return fmt.Errorf("persisting summary: %w", err)
	}

	// Delivery problems never fail the job: the summary is already durable
	// and fan-out is best-effort per channel.
	embed := discord.PRSummaryEmbed(payload.PRNumber, deref(event.Title), deref(event.Author), summary)
	result, err := h.notify.Notify(ctx, payload.RepoID, model.ChannelKindPR, embed)
	if err != nil {
		h.logger.WarnContext(ctx, "summary fan-out failed", "error", err)
		return nil
	}
	h.logger.InfoContext(ctx, "summary delivered",
		"channel_count", result.ChannelCount, "sent_count", result.SentCount)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
