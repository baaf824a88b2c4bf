package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"presupuesto/internal/log"
	ports "presupuesto/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	expenseColumns = "A:E"
	summaryColumns = "A:B"
)

var _ ports.Exporter = (*Client)(nil)

// Options selects the spreadsheet and how to authenticate against it.
type Options struct {
	SpreadsheetID   string
	ExpensesSheet   string
	SummarySheet    string
	CredentialsJSON string
	CredentialsFile string
}

// Client writes ledger exports to a Google spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	summarySheet  string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts, logger), nil
}

// NewWithService wraps an existing service, applying default sheet names.
func NewWithService(svc *gsheet.Service, opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentSheets)
	}
	expenses := strings.TrimSpace(opts.ExpensesSheet)
	if expenses == "" {
		expenses = "Expenses"
	}
	summary := strings.TrimSpace(opts.SummarySheet)
	if summary == "" {
		summary = "Summary"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		expensesSheet: expenses,
		summarySheet:  summary,
		logger:        logger,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials
// from inline JSON, a file, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	credsJSON := strings.TrimSpace(opts.CredentialsJSON)
	credsFile := strings.TrimSpace(opts.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case credsJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentials = []byte(credsJSON)
	case credsFile != "":
		data, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read credentials file", "path", credsFile, "size", len(data))
		credentials = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export clears both sheets and rewrites them in a single batch update.
func (c *Client) Export(ctx context.Context, data ports.ExportData) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	for _, rng := range []string{
		fmt.Sprintf("%s!%s", c.expensesSheet, expenseColumns),
		fmt.Sprintf("%s!%s", c.summarySheet, summaryColumns),
	} {
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", rng, err)
		}
	}

	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data: []*gsheet.ValueRange{
			{Range: fmt.Sprintf("%s!A1", c.expensesSheet), Values: ports.ExpenseRows(data)},
			{Range: fmt.Sprintf("%s!A1", c.summarySheet), Values: ports.SummaryRows(data)},
		},
	}
	resp, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	c.logger.InfoContext(ctx, "Exported ledger to spreadsheet",
		log.FieldRecords, len(data.Expenses),
		"updated_cells", resp.TotalUpdatedCells)
	return nil
}
