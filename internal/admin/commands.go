package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"presupuesto/internal/cli"
	"presupuesto/internal/core"
	apphttp "presupuesto/internal/http"
	"presupuesto/internal/ledger"
	"presupuesto/internal/services"
)

const dateLayout = "2006-01-02 15:04"

func (r *runner) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the budget, total spent and balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				printSummary(cmd.OutOrStdout(), l.Summary(ctx))
				return nil
			})
		},
	}
}

func printSummary(w io.Writer, s services.BudgetSummary) {
	balance := core.FormatAmount(s.Balance)
	if s.Balance.IsNegative() {
		balance = cli.RenderNegative(balance)
	}
	fmt.Fprintln(w, cli.RenderTitle(s.Description))
	fmt.Fprint(w, cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Budget", core.FormatAmount(s.Budget)},
			{"Spent", core.FormatAmount(s.TotalSpent)},
			cli.Separator,
			{"Balance", balance},
			{"Expenses", fmt.Sprint(s.Expenses)},
		},
	}))
}

func (r *runner) listCmd() *cobra.Command {
	var from, to, minAmount, maxAmount, text string
	var tags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			setIf(q, "from", from)
			setIf(q, "to", to)
			setIf(q, "min", minAmount)
			setIf(q, "max", maxAmount)
			setIf(q, "q", text)
			for _, t := range tags {
				q.Add("tags", t)
			}
			criteria, err := apphttp.ParseCriteria(q)
			if err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				views := l.ListExpenses(ctx, criteria)
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						fmt.Sprint(v.ID),
						v.Timestamp.Format(dateLayout),
						v.Description,
						strings.Join(v.Tags, ", "),
						core.FormatAmount(v.Amount),
					})
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No expenses match.")
					return nil
				}
				fmt.Fprint(out, cli.RenderTable(cli.Table{
					Title:   fmt.Sprintf("%d expenses", len(rows)),
					Headers: []string{"ID", "Date", "Description", "Tags", "Amount"},
					Rows:    rows,
				}))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "Earliest timestamp (date, RFC 3339 or Unix millis)")
	f.StringVar(&to, "to", "", "Latest timestamp; a bare date covers the whole day")
	f.StringVar(&minAmount, "min", "", "Smallest amount")
	f.StringVar(&maxAmount, "max", "", "Largest amount")
	f.StringVarP(&text, "query", "q", "", "Case-insensitive description substring")
	f.StringSliceVarP(&tags, "tags", "t", nil, "Match expenses carrying any of these tags")
	return cmd
}

func (r *runner) reportCmd() *cobra.Command {
	var from, to string
	var tags []string
	cmd := &cobra.Command{
		Use:   "report <day|month|year>",
		Short: "Total spending per period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIf(q, "from", from)
			setIf(q, "to", to)
			start, end, err := apphttp.ParseReportRange(q)
			if err != nil {
				return err
			}
			period := core.ParsePeriod(args[0])
			if !period.Valid() {
				return fmt.Errorf("unknown period %q: must be day, month or year", args[0])
			}
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				report := l.Report(ctx, period, tags, start, end)
				rows := make([][]string, 0, len(report.Buckets)+2)
				for _, b := range report.Buckets {
					rows = append(rows, []string{b.Key, core.FormatAmount(b.Total)})
				}
				rows = append(rows, cli.Separator, []string{"Total", core.FormatAmount(report.Total)})
				fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(cli.Table{
					Title:   "Spending by " + string(period),
					Headers: []string{strings.ToUpper(string(period[:1])) + string(period[1:]), "Total"},
					Rows:    rows,
				}))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "Earliest timestamp")
	f.StringVar(&to, "to", "", "Latest timestamp")
	f.StringSliceVarP(&tags, "tags", "t", nil, "Only expenses carrying any of these tags")
	return cmd
}

func (r *runner) budgetCmd() *cobra.Command {
	budget := &cobra.Command{
		Use:   "budget",
		Short: "Manage the budget",
	}
	budget.AddCommand(&cobra.Command{
		Use:   "set <amount>",
		Short: "Replace the budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				summary, err := l.SetBudget(ctx, args[0])
				if err != nil {
					return fmt.Errorf("set budget %q: %w", args[0], err)
				}
				if err := saved(ctx, l); err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	})
	return budget
}

func (r *runner) snapshotCmd() *cobra.Command {
	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or restore the whole ledger as JSON",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				data, err := json.MarshalIndent(l.Snapshot(ctx), "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot: %w", err)
				}
				data = append(data, '\n')
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Snapshot written to %s\n", output)
				return nil
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")

	restore := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the ledger with a JSON snapshot",
		Long:  "Replaces the budget and every expense with the snapshot in <file> (use - for stdin). An inconsistent snapshot is rejected and nothing changes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				if err := l.Restore(ctx, snap); err != nil {
					return fmt.Errorf("restore snapshot: %w", err)
				}
				if err := saved(ctx, l); err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), l.Summary(ctx))
				return nil
			})
		},
	}

	snapshot.AddCommand(export, restore)
	return snapshot
}

func (r *runner) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty ledger with demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd, func(ctx context.Context, l *services.LedgerService) error {
				seeded, err := l.SeedDemo(ctx)
				if err != nil {
					return fmt.Errorf("seed demo data: %w", err)
				}
				out := cmd.OutOrStdout()
				if !seeded {
					fmt.Fprintln(out, "Ledger is not empty, nothing seeded.")
					return nil
				}
				if err := saved(ctx, l); err != nil {
					return err
				}
				printSummary(out, l.Summary(ctx))
				return nil
			})
		},
	}
}

func readSnapshot(stdin io.Reader, path string) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return snap, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
