package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/service"
)

// PushProcessedHandler announces recorded push activity. Pushes share the
// PR channel bindings; repositories without them simply produce no
// notification.
type PushProcessedHandler struct {
	notify service.NotifyService
	logger *slog.Logger
}

func NewPushProcessedHandler(notify service.NotifyService, logger *slog.Logger) *PushProcessedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushProcessedHandler{notify: notify, logger: logger}
}

func (h *PushProcessedHandler) Kind() model.JobKind {
	return model.JobKindPushProcessed
}

func (h *PushProcessedHandler) Handle(ctx context.Context, job *model.Job) error {
	var payload model.PushProcessedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return NonRetryable(fmt.Errorf("decoding job payload: %w", err))
	}

	embed := discord.PushEmbed(payload.RepoFullName, payload.Branch, payload.CommitCount)
	result, err := h.notify.Notify(ctx, payload.RepoID, model.ChannelKindPR, embed)
	if err != nil {
		return fmt.Errorf("push fan-out: %w", err)
	}

	h.logger.InfoContext(ctx, "push notification delivered",
		"channel_count", result.ChannelCount, "sent_count", result.SentCount)
	return nil
}
