package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"presupuesto/internal/backend"
	"presupuesto/internal/cache"
	"presupuesto/internal/cli"
	apphttp "presupuesto/internal/http"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	result, err := backend.NewFactory(logger).CreateBackend(startupCtx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	reports := cache.NewLRUCache[services.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reports)

	ledger := services.NewLedgerService(services.Options{
		Snapshots: result.Store,
		Events:    result.Publisher(),
		Reports:   reports,
		Logger:    logger,
	})
	if err := ledger.Load(startupCtx); err != nil {
		logger.Error("Failed to load ledger snapshot", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}
	if cfg.SeedDemoData {
		seeded, err := ledger.SeedDemo(startupCtx)
		if err != nil {
			logger.Error("Failed to seed demo data", log.FieldError, err)
		} else if seeded {
			logger.Info("Seeded demo data")
		}
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               net.JoinHostPort("", cfg.Port),
		Ledger:             ledger,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	cacheCtx, stopCacheCleanup := context.WithCancel(context.Background())
	go cacheManager.Run(cacheCtx, 10*time.Minute)

	ctx, done := cli.GracefulShutdown(logger, func(shutdownCtx context.Context) error {
		stopCacheCleanup()
		serverErr := srv.Shutdown(shutdownCtx)
		metrics := srv.Metrics()
		logger.Info("HTTP server stopped",
			"requests", metrics.Requests.TotalRequests,
			"server_errors", metrics.Requests.ServerErrors,
			"rate_limited_clients", metrics.RateLimit.ClientCount,
			"suspicious_requests", metrics.Security.SuspiciousRequests)
		return errors.Join(serverErr, result.Cleanup())
	})

	logger.Info("Starting presupuesto server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"events_enabled", result.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
