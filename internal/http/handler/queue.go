package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"opscord.app/pipeline/internal/service"
	"opscord.app/pipeline/internal/store"
	"opscord.app/pipeline/internal/worker"
)

// JobRunner is the slice of the worker the processing trigger needs.
type JobRunner interface {
	RunOnce(ctx context.Context) (*worker.RunResult, error)
}

// QueueHandler exposes queue management: a manual processing trigger, job
// inspection, retries, and per-user stats.
type QueueHandler struct {
	queue  service.QueueService
	runner JobRunner
}

func NewQueueHandler(queue service.QueueService, runner JobRunner) *QueueHandler {
	return &QueueHandler{queue: queue, runner: runner}
}

// Process claims and runs one batch inline. Lets a scheduler (or an
// operator) drive the queue without waiting for the polling worker.
func (h *QueueHandler) Process(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.runner.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "processing trigger failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process jobs"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *QueueHandler) Enqueue(c *gin.Context) {
	var params service.EnqueueParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	job, err := h.queue.Enqueue(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *QueueHandler) Stats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	stats, err := h.queue.Stats(c.Request.Context(), userID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "queue stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *QueueHandler) GetJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "job lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// RetryJob resets a terminally failed job to pending. Jobs in any other
// status are reported as not found.
func (h *QueueHandler) RetryJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.queue.Retry(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no failed job with that id"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "job retry failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry job"})
		return
	}

	c.JSON(http.StatusOK, job)
}
