package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetwise/internal/amqp"
	"budgetwise/internal/cache"
	"budgetwise/internal/config"
	apphttp "budgetwise/internal/http"
	"budgetwise/internal/log"
	"budgetwise/internal/middleware/ratelimit"
	"budgetwise/internal/services"
	"budgetwise/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.DefaultMonthlyIncome)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without it recommendations are still generated,
	// only the export hand-off falls back to the worker's pending scan.
	var publisher services.ExportPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, export messages disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewBudgetService(repo, repo, repo, publisher, services.BudgetServiceOptions{
		MinTransactions:   cfg.MinTransactions,
		LookbackMonths:    cfg.LookbackMonths,
		RecommendationTTL: cfg.RecommendationTTL,
		AnalysisTTL:       cfg.AnalysisTTL,
		AdherenceTTL:      cfg.AdherenceTTL,
	})

	cacheManager := cache.NewManager()
	for _, c := range svc.Caches() {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		cancel()
	}()

	logger.Info("Starting budgetwise server", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
