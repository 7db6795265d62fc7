package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"opscord.app/pipeline/common/id"
	"opscord.app/pipeline/common/logger"
	"opscord.app/pipeline/common/otel"
	"opscord.app/pipeline/core/config"
	"opscord.app/pipeline/core/db"
	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/http/middleware"
	httprouter "opscord.app/pipeline/internal/http/router"
	"opscord.app/pipeline/internal/llm"
	"opscord.app/pipeline/internal/service"
	"opscord.app/pipeline/internal/store"
	"opscord.app/pipeline/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses the OTel provider in
	// production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "pipeline server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	stores := store.NewStores(database.Pool())
	discordClient := discord.NewClient(discord.Config{
		BaseURL: cfg.Discord.BaseURL,
		Timeout: cfg.Discord.Timeout,
	})
	services := service.NewServices(stores, service.NewTxRunner(database), discordClient, slog.Default())

	// The server embeds a runner for the on-demand processing endpoint;
	// continuous polling stays with the worker binary.
	runner, err := newJobRunner(cfg, stores, services)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build job runner", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, runner)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func newJobRunner(cfg config.Config, stores *store.Stores, services *service.Services) (*worker.Worker, error) {
	llmClient, err := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return nil, err
	}

	registry, err := worker.NewRegistry(
		worker.NewSummarizePRHandler(stores.Events(), llmClient, services.Notify(), slog.Default()),
		worker.NewCategorizeIssueHandler(stores.Events(), llmClient, services.Notify(), slog.Default()),
		worker.NewPushProcessedHandler(services.Notify(), slog.Default()),
	)
	if err != nil {
		return nil, err
	}

	return worker.New(stores.Jobs(), registry, worker.Config{
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
	}), nil
}

func setupRouter(cfg config.Config, services *service.Services, runner *worker.Worker) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates the span, Recovery catches panics,
	// Logger logs with trace context.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, runner, httprouter.RouterConfig{
		QueueSecret: cfg.Queue.Secret,
	})

	return router
}

const banner = `
 ██████╗ ██████╗ ███████╗ ██████╗ ██████╗ ██████╗ ██████╗
██╔═══██╗██╔══██╗██╔════╝██╔════╝██╔═══██╗██╔══██╗██╔══██╗
██║   ██║██████╔╝███████╗██║     ██║   ██║██████╔╝██║  ██║
██║   ██║██╔═══╝ ╚════██║██║     ██║   ██║██╔══██╗██║  ██║
╚██████╔╝██║     ███████║╚██████╗╚██████╔╝██║  ██║██████╔╝
 ╚═════╝ ╚═╝     ╚══════╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚═════╝
`
