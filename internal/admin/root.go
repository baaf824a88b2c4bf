// Package admin implements presupuesto-admin, an operator CLI that works on
// the configured snapshot store directly instead of going through HTTP.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"presupuesto/internal/backend"
	"presupuesto/internal/cli"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
)

// Opener loads the ledger a command works on. The returned func releases
// whatever backs it.
type Opener func(ctx context.Context) (*services.LedgerService, func() error, error)

// NewRootCommand wires every subcommand to open.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "presupuesto-admin",
		Short:         "Inspect and maintain the presupuesto ledger",
		Long:          "Reads and changes the ledger held by the configured DATA_BACKEND. Changes are saved and announced the same way the server does.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	r := &runner{open: open}
	root.AddCommand(
		r.summaryCmd(),
		r.listCmd(),
		r.reportCmd(),
		r.budgetCmd(),
		r.snapshotCmd(),
		r.seedCmd(),
	)
	return root
}

// BackendOpener opens the store and event client described by the
// environment, the way cmd/presupuesto does at startup.
func BackendOpener(logger *log.Logger) Opener {
	return func(ctx context.Context) (*services.LedgerService, func() error, error) {
		cfg, err := cli.ValidatedConfig()
		if err != nil {
			return nil, nil, err
		}
		backendConfig, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
		}
		ledger := services.NewLedgerService(services.Options{
			Snapshots: result.Store,
			Events:    result.Publisher(),
			Logger:    logger,
		})
		if err := ledger.Load(ctx); err != nil {
			return nil, nil, errors.Join(err, result.Cleanup())
		}
		return ledger, result.Cleanup, nil
	}
}

type runner struct {
	open Opener
}

// with opens the ledger, runs fn and releases the ledger again.
func (r *runner) with(cmd *cobra.Command, fn func(ctx context.Context, ledger *services.LedgerService) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ledger, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close backend: %w", cerr))
		}
	}()
	return fn(ctx, ledger)
}

// saved turns a failed snapshot save into a command error. The service only
// logs it, which is right for a server but not for a one-shot command.
func saved(ctx context.Context, ledger *services.LedgerService) error {
	if err := ledger.Ready(ctx); err != nil {
		return fmt.Errorf("change applied but not saved: %w", err)
	}
	return nil
}
