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

// CategorizeIssueHandler triages a recorded issue with the AI service and
// announces the result on the repository's issue channels.
type CategorizeIssueHandler struct {
	events store.EventStore
	llm    llm.Client
	notify service.NotifyService
	logger *slog.Logger
}

func NewCategorizeIssueHandler(events store.EventStore, llmClient llm.Client, notify service.NotifyService, logger *slog.Logger) *CategorizeIssueHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategorizeIssueHandler{
		events: events,
		llm:    llmClient,
		notify: notify,
		logger: logger,
	}
}

func (h *CategorizeIssueHandler) Kind() model.JobKind {
	return model.JobKindCategorizeIssue
}

func (h *CategorizeIssueHandler) Handle(ctx context.Context, job *model.Job) error {
	var payload model.CategorizeIssuePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return NonRetryable(fmt.Errorf("decoding job payload: %w", err))
	}

	event, err := h.events.GetByNaturalKey(ctx, payload.RepoID, model.EventKindIssue, payload.IssueNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NonRetryable(fmt.Errorf("issue event %s#%d not found", payload.RepoFullName, payload.IssueNumber))
		}
		return fmt.Errorf("fetching issue event: %w", err)
	}

	triage, err := h.llm.Categorize(ctx, deref(event.Title), deref(event.Body))
	if err != nil {
		return fmt.Errorf("categorizing issue: %w", err)
	}

	raw, err := json.Marshal(triage)
	if err != nil {
		return NonRetryable(fmt.Errorf("encoding triage: %w", err))
	}
	if err := h.events.SetAISummary(ctx, payload.RepoID, model.EventKindIssue, payload.IssueNumber, raw); err != nil {
		return fmt.Errorf("persisting triage: %w", err)
	}

	embed := discord.IssueTriageEmbed(payload.IssueNumber, deref(event.Title), deref(event.Author), triage)
	result, err := h.notify.Notify(ctx, payload.RepoID, model.ChannelKindIssue, embed)
	if err != nil {
		h.logger.WarnContext(ctx, "triage fan-out failed", "error", err)
		return nil
	}
	h.logger.InfoContext(ctx, "triage delivered",
		"channel_count", result.ChannelCount, "sent_count", result.SentCount)
	return nil
}
