package router

import (
	"github.com/gin-gonic/gin"

	"opscord.app/pipeline/internal/http/handler"
	"opscord.app/pipeline/internal/http/handler/webhook"
	"opscord.app/pipeline/internal/http/middleware"
	"opscord.app/pipeline/internal/service"
)

type RouterConfig struct {
	// QueueSecret gates the /api/v1 queue management surface.
	QueueSecret string
}

func SetupRoutes(router *gin.Engine, services *service.Services, runner handler.JobRunner, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	githubHandler := webhook.NewGitHubWebhookHandler(services.EventIngest())
	router.POST("/webhooks/github", githubHandler.HandleEvent)

	queueHandler := handler.NewQueueHandler(services.Queue(), runner)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireQueueSecret(cfg.QueueSecret))
	{
		v1.POST("/jobs", queueHandler.Enqueue)
		v1.POST("/jobs/process", queueHandler.Process)
		v1.GET("/jobs/:id", queueHandler.GetJob)
		v1.POST("/jobs/:id/retry", queueHandler.RetryJob)
		v1.GET("/queue/stats", queueHandler.Stats)
	}
}
