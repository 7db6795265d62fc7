package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"opscord.app/pipeline/internal/service"
	"opscord.app/pipeline/internal/signature"
)

const maxBodyBytes = 1 << 20

// GitHubWebhookHandler is the single inbound edge of the pipeline. It stays
// thin: read the raw body, hand it to the ingest service, map its errors to
// status codes.
type GitHubWebhookHandler struct {
	eventIngest service.EventIngestService
}

func NewGitHubWebhookHandler(eventIngest service.EventIngestService) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{eventIngest: eventIngest}
}

func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	sig := c.GetHeader(signature.Header)
	if sig == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	result, err := h.eventIngest.Ingest(ctx, service.IngestParams{Body: body, Signature: sig})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRepoNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		case errors.Is(err, service.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(err, service.ErrUnsupportedEvent):
			// Acknowledged no-op so the provider does not retry event types
			// the pipeline does not record.
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "event type not supported"})
		case errors.Is(err, service.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		default:
			slog.ErrorContext(ctx, "webhook ingestion failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	slog.InfoContext(ctx, "webhook ingested",
		"event_id", result.Event.ID,
		"kind", result.Event.Kind,
		"created", result.Created,
		"enqueued", result.Enqueued)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
