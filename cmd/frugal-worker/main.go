package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"frugal/internal/amqp"
	"frugal/internal/backend"
	"frugal/internal/config"
	applog "frugal/internal/log"
	"frugal/internal/summary"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.Setup(cfg.LogLevel, "frugal-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize remote backend", "error", err, "backend", cfg.RemoteBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	summarizer := summary.NewSummarizer(result.Store, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The scheduler handles the first-of-month catch-up; the consumer
	// handles on-demand recomputation requests from the API.
	scheduler := summary.NewScheduler(summarizer, cfg.OwnerID, cfg.SummaryInterval, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start summary scheduler", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeSummaryRuns(gctx, func(msg *amqp.SummaryRunMessage) error {
			_, err := summarizer.Run(gctx, msg.OwnerID, msg.Period)
			return err
		})
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	logger.Info("Worker started",
		"backend", cfg.RemoteBackend,
		"queue", cfg.AMQPQueue,
		"owner", cfg.OwnerID)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", "error", err)
	}

	logger.Info("Worker shutdown complete")
}
