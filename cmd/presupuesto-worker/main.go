package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"presupuesto/internal/backend"
	"presupuesto/internal/cli"
	"presupuesto/internal/log"
	"presupuesto/internal/sheets"
	gsheet "presupuesto/internal/sheets/google"
	mem "presupuesto/internal/sheets/memory"
	"presupuesto/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting presupuesto-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend == string(backend.MemoryBackend) {
		logger.Warn("Memory backend is private to each process; the worker will only see snapshots it saves itself")
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var exporter sheets.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			ExpensesSheet:   cfg.GoogleSheetName,
			SummarySheet:    cfg.GoogleSummarySheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	exportWorker := worker.NewExportWorker(result.Store, exporter, logger)

	// On startup, export whatever was saved while the worker was down
	if err := exportWorker.ExportNow(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exportWorker.Run(gctx, cfg.ExportInterval)
	})
	if result.AMQP != nil {
		g.Go(func() error {
			return result.AMQP.ConsumeWithRetry(gctx, exportWorker.HandleLedgerEvent)
		})
	} else {
		logger.Info("Skipping AMQP event consumption - no broker configured")
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", "exports", exportWorker.Exports())
}
