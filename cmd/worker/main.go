package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opscord.app/pipeline/common/id"
	"opscord.app/pipeline/common/logger"
	"opscord.app/pipeline/common/otel"
	"opscord.app/pipeline/core/config"
	"opscord.app/pipeline/core/db"
	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/llm"
	"opscord.app/pipeline/internal/service"
	"opscord.app/pipeline/internal/store"
	"opscord.app/pipeline/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
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

	slog.InfoContext(ctx, "pipeline worker starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	// Different node ID than the server so both can mint snowflakes.
	if err := id.Init(2); err != nil {
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

	llmClient, err := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build llm client", "error", err)
		os.Exit(1)
	}

	registry, err := worker.NewRegistry(
		worker.NewSummarizePRHandler(stores.Events(), llmClient, services.Notify(), slog.Default()),
		worker.NewCategorizeIssueHandler(stores.Events(), llmClient, services.Notify(), slog.Default()),
		worker.NewPushProcessedHandler(services.Notify(), slog.Default()),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build handler registry", "error", err)
		os.Exit(1)
	}

	w := worker.New(stores.Jobs(), registry, worker.Config{
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
	})
	reclaimer := worker.NewReclaimer(stores.Jobs(), worker.ReclaimerConfig{
		Lease:    cfg.Queue.Lease,
		Interval: cfg.Queue.ReclaimInterval,
	})

	go func() {
		if err := w.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "worker stopped with error", "error", err)
		}
	}()
	go reclaimer.Run(ctx)
	slog.InfoContext(ctx, "worker running",
		"batch_size", cfg.Queue.BatchSize,
		"poll_interval", cfg.Queue.PollInterval.String(),
		"lease", cfg.Queue.Lease.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	// Stop the reclaimer first so it cannot hand jobs back while the
	// dispatcher is draining.
	reclaimer.Stop()
	w.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

const banner = `
 ██████╗ ██████╗ ███████╗ ██████╗ ██████╗ ██████╗ ██████╗
██╔═══██╗██╔══██╗██╔════╝██╔════╝██╔═══██╗██╔══██╗██╔══██╗
██║   ██║██████╔╝███████╗██║     ██║   ██║██████╔╝██║  ██║
██║   ██║██╔═══╝ ╚════██║██║     ██║   ██║██╔══██╗██║  ██║
╚██████╔╝██║     ███████║╚██████╗╚██████╔╝██║  ██║██████╔╝
 ╚═════╝ ╚═╝     ╚══════╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚═════╝
                                          worker
`
