package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"frugal/internal/amqp"
	"frugal/internal/backend"
	"frugal/internal/config"
	"frugal/internal/connectivity"
	apphttp "frugal/internal/http"
	"frugal/internal/ledger"
	applog "frugal/internal/log"
	"frugal/internal/storage"
	"frugal/internal/summary"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.Setup(cfg.LogLevel, "frugal")

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

	cacheStore, err := storage.NewCacheStore(cfg.CacheDBPath)
	if err != nil {
		logger.Error("Failed to open local cache", "error", err, "path", cfg.CacheDBPath)
		os.Exit(1)
	}
	defer cacheStore.Close()

	// Start offline; the first probe flips us online as soon as the
	// remote answers.
	monitor := connectivity.NewMonitor(connectivity.Offline)
	prober := connectivity.NewProber(monitor, result.Store, cfg.ProbeInterval, logger)
	if err := prober.Start(ctx); err != nil {
		logger.Error("Failed to start connectivity prober", "error", err)
		os.Exit(1)
	}

	engine := ledger.NewEngine(result.Store, cacheStore, monitor, logger)

	reconciler := ledger.NewReconciler(engine, monitor)
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", "error", err)
		os.Exit(1)
	}

	watcher := ledger.NewWatcher(engine)
	if err := watcher.Start(ctx, cfg.OwnerID); err != nil {
		logger.Error("Failed to start remote change watcher", "error", err)
		os.Exit(1)
	}

	summarizer := summary.NewSummarizer(result.Store, logger)

	// AMQP is optional: without a broker, summary runs compute inline.
	var publisher apphttp.SummaryPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, summary runs will execute inline", "error", err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
			logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, cfg.OwnerID, engine, summarizer, monitor, publisher)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := reconciler.Stop(shutdownCtx); err != nil {
			logger.Error("Reconciler shutdown error", "error", err)
		}
		if err := watcher.Stop(shutdownCtx); err != nil {
			logger.Error("Watcher shutdown error", "error", err)
		}
		if err := prober.Stop(shutdownCtx); err != nil {
			logger.Error("Prober shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting frugal server",
		"port", cfg.Port,
		"backend", cfg.RemoteBackend,
		"owner", cfg.OwnerID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
