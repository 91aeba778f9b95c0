package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Exporter writes a report somewhere and returns where.
type Exporter interface {
	Export(ctx context.Context, report *Report) (string, error)
}

// Writer exports reports to a Google spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(service, config, logger), nil
}

// NewWriterWithService creates a writer around an existing Sheets service.
func NewWriterWithService(service *sheets.Service, config Config, logger *slog.Logger) *Writer {
	return &Writer{
		config:  config,
		service: service,
		logger:  common.ComponentLogger(logger, "sheets"),
	}
}

// Export replaces the contents of the Transactions and Deductions tabs and
// returns the spreadsheet id.
func (w *Writer) Export(ctx context.Context, report *Report) (string, error) {
	w.logger.Info("Starting tax export",
		"transactions", len(report.Transactions),
		"deductions", len(report.Deductions),
		"date_range", fmt.Sprintf("%s to %s", report.DateRange.Start.Format(time.DateOnly), report.DateRange.End.Format(time.DateOnly)))

	spreadsheetID, tabIDs, err := w.prepareSpreadsheet(ctx)
	if err != nil {
		return "", err
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	tabs := []struct {
		name   string
		values [][]any
	}{
		{TransactionsTab, transactionValues(report)},
		{DeductionsTab, deductionValues(report)},
	}

	for _, tab := range tabs {
		err := common.WithRetry(ctx, func() error {
			if err := w.clearTab(ctx, spreadsheetID, tab.name); err != nil {
				return err
			}
			return w.writeTab(ctx, spreadsheetID, tab.name, tab.values)
		}, retryOpts)
		if err != nil {
			return "", fmt.Errorf("failed to write %s tab: %w", tab.name, err)
		}
	}

	if w.config.EnableFormatting {
		err := common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, tabIDs)
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic.
			w.logger.Warn("Failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("Tax export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(tabs[0].values)+len(tabs[1].values))

	return spreadsheetID, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		tokenSource = oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// prepareSpreadsheet opens or creates the spreadsheet and makes sure both tabs
// exist. It returns the spreadsheet id and the sheet id of each tab.
func (w *Writer) prepareSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	if w.config.SpreadsheetID == "" {
		created, err := w.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: TransactionsTab}},
				{Properties: &sheets.SheetProperties{Title: DeductionsTab}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
		}
		w.logger.Info("Created new spreadsheet",
			"id", created.SpreadsheetId,
			"url", created.SpreadsheetUrl)
		return created.SpreadsheetId, tabIDs(created), nil
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}
	ids := tabIDs(existing)

	var requests []*sheets.Request
	for _, name := range []string{TransactionsTab, DeductionsTab} {
		if _, ok := ids[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
			})
		}
	}
	if len(requests) == 0 {
		return w.config.SpreadsheetID, ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.config.SpreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return w.config.SpreadsheetID, ids, nil
}

func tabIDs(s *sheets.Spreadsheet) map[string]int64 {
	ids := make(map[string]int64, len(s.Sheets))
	for _, sheet := range s.Sheets {
		if sheet.Properties != nil {
			ids[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	return ids
}

func (w *Writer) clearTab(ctx context.Context, spreadsheetID, tab string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, tab+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", tab, err)
	}
	return nil
}

// writeTab writes values in batches to stay under API request limits.
func (w *Writer) writeTab(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	batchSize := max(w.config.BatchSize, 1)
	for i := 0; i < len(values); i += batchSize {
		end := min(i+batchSize, len(values))

		rangeStr := fmt.Sprintf("%s!A%d", tab, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: values[i:end]}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write %s batch starting at row %d: %w", tab, i+1, err)
		}

		w.logger.Debug("Wrote batch", "tab", tab, "start_row", i+1, "rows", end-i)
	}
	return nil
}

func transactionValues(report *Report) [][]any {
	values := make([][]any, 0, len(report.Transactions)+1)
	values = append(values, []any{
		"Date", "Description", "Vendor", "Type", "Amount", "Category", "Tax Code", "Deductible", "Internal Transfer", "Review Note",
	})
	for _, row := range report.Transactions {
		values = append(values, []any{
			row.Date.Format(time.DateOnly),
			row.Description,
			row.Vendor,
			string(row.Type),
			row.Amount.StringFixed(2),
			row.Category,
			row.TaxCode,
			yesNo(row.IsDeductible),
			yesNo(row.IsInternalTransfer),
			row.ReviewNote,
		})
	}
	return values
}

func deductionValues(report *Report) [][]any {
	values := make([][]any, 0, len(report.Deductions)+8)
	values = append(values,
		[]any{
			"Deductions",
			fmt.Sprintf("%s - %s", report.DateRange.Start.Format("Jan 2, 2006"), report.DateRange.End.Format("Jan 2, 2006")),
		},
		[]any{},
		[]any{"Tax Code", "Category", "Transactions", "Total"},
	)
	for _, row := range report.Deductions {
		values = append(values, []any{row.TaxCode, row.Category, row.TransactionCount, row.TotalAmount.StringFixed(2)})
	}
	values = append(values,
		[]any{},
		[]any{"Total Income", "", "", report.TotalIncome.StringFixed(2)},
		[]any{"Total Expenses", "", "", report.TotalExpenses.StringFixed(2)},
		[]any{"Total Deductible", "", "", report.TotalDeductible.StringFixed(2)},
	)
	return values
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// applyFormatting bolds header rows, formats amount columns as currency and
// freezes the Transactions header.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, tabIDs map[string]int64) error {
	txnSheet, dedSheet := tabIDs[TransactionsTab], tabIDs[DeductionsTab]

	requests := []*sheets.Request{
		boldRows(txnSheet, 0, 1),
		boldRows(dedSheet, 0, 1),
		boldRows(dedSheet, 2, 3),
		currencyColumn(txnSheet, 4),
		currencyColumn(dedSheet, 3),
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        txnSheet,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{SheetId: txnSheet, Dimension: "COLUMNS", StartIndex: 0, EndIndex: 10},
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

func boldRows(sheetID, start, end int64) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: start, EndRowIndex: end},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
			},
			Fields: "userEnteredFormat.textFormat",
		},
	}
}

func currencyColumn(sheetID, column int64) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 1, StartColumnIndex: column, EndColumnIndex: column + 1},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					NumberFormat: &sheets.NumberFormat{Type: "CURRENCY", Pattern: "$#,##0.00"},
				},
			},
			Fields: "userEnteredFormat.numberFormat",
		},
	}
}

var _ Exporter = (*Writer)(nil)
