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

	"budgetwise/internal/amqp"
	"budgetwise/internal/config"
	"budgetwise/internal/log"
	"budgetwise/internal/sheets"
	gsheet "budgetwise/internal/sheets/google"
	"budgetwise/internal/sheets/memory"
	"budgetwise/internal/storage"
	"budgetwise/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting budgetwise-worker")

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Reports land in the configured spreadsheet; without one the worker
	// still drains the queue into an in-memory store so exports complete
	// in local development.
	var reports sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleReportSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		reports = client
		logger.Info("Google Sheets report writer initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		reports = memory.New()
		logger.Info("No GOOGLE_SPREADSHEET_ID provided, reports kept in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, reports, cfg.ExportBatchSize)

	// Recommendations that went pending while the worker was down.
	if err := exportWorker.StartupExportCheck(ctx); err != nil {
		logger.Error("Startup export check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeRecommendationExports(ctx, func(msg *amqp.RecommendationExportMessage) error {
			return exportWorker.HandleExportMessage(ctx, msg)
		})
	})

	// Periodic pending scan covers export messages lost in transit.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := exportWorker.ProcessPendingRecommendations(ctx); err != nil {
					logger.Error("Pending export scan failed", "error", err)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
