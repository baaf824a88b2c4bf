package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"presupuesto/internal/admin"
	"presupuesto/internal/cli"
	"presupuesto/internal/log"
)

func main() {
	cli.LoadEnvFile()

	// Stdout carries command output such as snapshot exports, so logs go to
	// stderr and default to warnings only.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := log.New(log.Config{
		Component: log.ComponentAdmin,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: log.ParseLevel(level)}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := admin.NewRootCommand(admin.BackendOpener(logger)).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
