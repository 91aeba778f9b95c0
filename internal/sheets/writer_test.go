package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestConfig_Validate(t *testing.T) {
	valid := func(mod func(*Config)) Config {
		c := DefaultConfig()
		mod(&c)
		return c
	}

	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid oauth config",
			config: valid(func(c *Config) { c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "token" }),
		},
		{
			name:   "valid service account config",
			config: valid(func(c *Config) { c.ServiceAccountPath = "/path/to/key.json" }),
		},
		{
			name:    "partial oauth credentials",
			config:  valid(func(c *Config) { c.ClientID, c.RefreshToken = "id", "token" }),
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: valid(func(c *Config) {
				c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "token"
				c.ServiceAccountPath = "/path/to/key.json"
			}),
			wantErr: true,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name:    "invalid batch size",
			config:  valid(func(c *Config) { c.ServiceAccountPath = "k.json"; c.BatchSize = 0 }),
			wantErr: true,
			errMsg:  "batch size must be positive",
		},
		{
			name:    "negative retry attempts",
			config:  valid(func(c *Config) { c.ServiceAccountPath = "k.json"; c.RetryAttempts = -1 }),
			wantErr: true,
			errMsg:  "retry attempts cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.ErrorContains(t, err, tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func catID(id int64) *int64 { return &id }

func TestBuildReport(t *testing.T) {
	categories := []model.Category{
		{ID: 1, Name: "Supplies", Type: model.TypeExpense, IsDeductible: true, TaxCode: "22"},
		{ID: 2, Name: "Advertising", Type: model.TypeExpense, IsDeductible: true, TaxCode: "8"},
		{ID: 3, Name: "Service Revenue", Type: model.TypeIncome},
	}
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{Date: day, Description: "STAPLES", Amount: decimal.RequireFromString("40.00"), Type: model.TypeExpense, CategoryID: catID(1), IsDeductible: true},
		{Date: day, Description: "OFFICE DEPOT", Amount: decimal.RequireFromString("10.50"), Type: model.TypeExpense, CategoryID: catID(1), IsDeductible: true},
		{Date: day, Description: "FACEBOOK ADS", Amount: decimal.RequireFromString("99.99"), Type: model.TypeExpense, CategoryID: catID(2), IsDeductible: true},
		{Date: day, Description: "NETFLIX", Amount: decimal.RequireFromString("15.00"), Type: model.TypeExpense},
		{Date: day, Description: "INVOICE 7", Amount: decimal.RequireFromString("2000.00"), Type: model.TypeIncome, CategoryID: catID(3)},
		{Date: day, Description: "TRANSFER TO SAVINGS", Amount: decimal.RequireFromString("500.00"), Type: model.TypeExpense, IsInternalTransfer: true, IsDeductible: true},
	}

	report := BuildReport(txns, categories, TaxYear(2024))

	require.Len(t, report.Transactions, 6)
	assert.Equal(t, "Supplies", report.Transactions[0].Category)
	assert.Equal(t, "22", report.Transactions[0].TaxCode)
	assert.Equal(t, uncategorized, report.Transactions[3].Category)

	assert.Equal(t, "2000", report.TotalIncome.String())
	assert.Equal(t, "165.49", report.TotalExpenses.String())
	assert.Equal(t, "150.49", report.TotalDeductible.String())

	require.Len(t, report.Deductions, 2)
	assert.Equal(t, "Supplies", report.Deductions[0].Category)
	assert.Equal(t, "50.5", report.Deductions[0].TotalAmount.String())
	assert.Equal(t, 2, report.Deductions[0].TransactionCount)
	assert.Equal(t, "Advertising", report.Deductions[1].Category)
}

func TestTaxYear(t *testing.T) {
	r := TaxYear(2024)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, 2024, r.End.Year())
	assert.Equal(t, time.December, r.End.Month())
	assert.Equal(t, 31, r.End.Day())
}

func TestValues(t *testing.T) {
	report := &Report{
		DateRange:       TaxYear(2024),
		TotalIncome:     decimal.RequireFromString("100"),
		TotalExpenses:   decimal.RequireFromString("40"),
		TotalDeductible: decimal.RequireFromString("40"),
		Transactions: []TransactionRow{{
			Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Description: "STAPLES", Type: model.TypeExpense,
			Amount: decimal.RequireFromString("40"), Category: "Supplies", TaxCode: "22", IsDeductible: true,
		}},
		Deductions: []DeductionRow{{Category: "Supplies", TaxCode: "22", TotalAmount: decimal.RequireFromString("40"), TransactionCount: 1}},
	}

	txnValues := transactionValues(report)
	require.Len(t, txnValues, 2)
	assert.Equal(t, "Date", txnValues[0][0])
	assert.Equal(t, []any{"2024-03-01", "STAPLES", "", "expense", "40.00", "Supplies", "22", "Yes", "No", ""}, txnValues[1])

	dedValues := deductionValues(report)
	assert.Equal(t, []any{"22", "Supplies", 1, "40.00"}, dedValues[3])
	assert.Equal(t, []any{"Total Deductible", "", "", "40.00"}, dedValues[len(dedValues)-1])
}

// fakeSheetsAPI records every request and answers with a minimal spreadsheet.
type fakeSheetsAPI struct {
	paths []string
	mu    sync.Mutex
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			SpreadsheetId: "sheet-1",
			Sheets:        []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: TransactionsTab, SheetId: 0}}},
		})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateSpreadsheetResponse{
			Replies: []*sheets.Response{{AddSheet: &sheets.AddSheetResponse{
				Properties: &sheets.SheetProperties{Title: DeductionsTab, SheetId: 7},
			}}},
		})
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func TestWriter_Export(t *testing.T) {
	api := &fakeSheetsAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.SpreadsheetID = "sheet-1"
	cfg.RetryAttempts = 1
	writer := NewWriterWithService(svc, cfg, nil)

	report := BuildReport([]model.Transaction{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Description: "STAPLES", Amount: decimal.RequireFromString("40"), Type: model.TypeExpense},
	}, nil, TaxYear(2024))

	id, err := writer.Export(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	joined := strings.Join(api.paths, "\n")
	assert.Contains(t, joined, "Transactions!A:Z:clear")
	assert.Contains(t, joined, "Deductions!A:Z:clear")
	assert.Contains(t, joined, "PUT /v4/spreadsheets/sheet-1/values/Transactions!A1")
	assert.Contains(t, joined, "PUT /v4/spreadsheets/sheet-1/values/Deductions!A1")
	assert.Equal(t, 2, strings.Count(joined, ":batchUpdate"), "one to add the missing tab and one for formatting")
}

func TestExportRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := db.MustInsert(
		testutil.Txn("p-1", "25.00", "STAPLES", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)),
		testutil.Txn("p-2", "30.00", "LAST YEAR", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)),
	)
	supplies := db.MustCategory("Supplies")
	require.NoError(t, db.Storage.ApplyCategorization(context.Background(), db.UserID, txns[0].ID,
		service.CategoryUpdate{CategoryID: &supplies.ID, IsDeductible: true}))

	exporter := &MockExporter{}
	id, report, err := ExportRange(context.Background(), db.Storage, exporter, db.UserID, TaxYear(2024))
	require.NoError(t, err)
	assert.Equal(t, "mock-spreadsheet", id)
	assert.Equal(t, 1, exporter.Calls())
	require.Len(t, report.Transactions, 1)
	require.Len(t, report.Deductions, 1)
	assert.Equal(t, "Supplies", report.Deductions[0].Category)
	assert.Equal(t, "25", report.TotalDeductible.String())

	_, _, err = ExportRange(context.Background(), db.Storage, exporter, db.UserID, TaxYear(2020))
	require.Error(t, err)
	assert.Equal(t, 1, exporter.Calls())
}
