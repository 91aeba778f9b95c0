package sheets

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// Tab names.
const (
	TransactionsTab = "Transactions"
	DeductionsTab   = "Deductions"
)

const uncategorized = "Uncategorized"

// TransactionRow represents a single row in the Transactions tab.
type TransactionRow struct {
	Date               time.Time
	Amount             decimal.Decimal
	Description        string
	Vendor             string
	Type               model.TransactionType
	Category           string
	TaxCode            string
	ReviewNote         string
	IsDeductible       bool
	IsInternalTransfer bool
}

// DeductionRow is the total of deductible expenses in one category.
type DeductionRow struct {
	Category         string
	TaxCode          string
	TotalAmount      decimal.Decimal
	TransactionCount int
}

// DateRange represents the time period covered by the report.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Report holds everything written to the spreadsheet.
type Report struct {
	DateRange       DateRange
	TotalIncome     decimal.Decimal
	TotalExpenses   decimal.Decimal
	TotalDeductible decimal.Decimal
	Transactions    []TransactionRow
	Deductions      []DeductionRow
}

// BuildReport turns transactions into report rows. Internal transfers are listed
// but excluded from every total.
func BuildReport(txns []model.Transaction, categories []model.Category, dateRange DateRange) *Report {
	byID := make(map[int64]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	report := &Report{
		DateRange:    dateRange,
		Transactions: make([]TransactionRow, 0, len(txns)),
	}
	deductions := make(map[string]*DeductionRow)

	for _, txn := range txns {
		row := TransactionRow{
			Date:               txn.Date,
			Amount:             txn.Amount,
			Description:        txn.Description,
			Vendor:             txn.Vendor,
			Type:               txn.Type,
			Category:           uncategorized,
			ReviewNote:         txn.ReviewNote,
			IsDeductible:       txn.IsDeductible,
			IsInternalTransfer: txn.IsInternalTransfer,
		}
		if txn.CategoryID != nil {
			if cat, ok := byID[*txn.CategoryID]; ok {
				row.Category = cat.Name
				row.TaxCode = cat.TaxCode
			}
		}
		report.Transactions = append(report.Transactions, row)

		if txn.IsInternalTransfer {
			continue
		}
		if txn.Type == model.TypeIncome {
			report.TotalIncome = report.TotalIncome.Add(txn.Amount)
			continue
		}
		report.TotalExpenses = report.TotalExpenses.Add(txn.Amount)

		if !txn.IsDeductible {
			continue
		}
		report.TotalDeductible = report.TotalDeductible.Add(txn.Amount)
		d, ok := deductions[row.Category]
		if !ok {
			d = &DeductionRow{Category: row.Category, TaxCode: row.TaxCode}
			deductions[row.Category] = d
		}
		d.TotalAmount = d.TotalAmount.Add(txn.Amount)
		d.TransactionCount++
	}

	for _, d := range deductions {
		report.Deductions = append(report.Deductions, *d)
	}
	slices.SortFunc(report.Deductions, func(a, b DeductionRow) int {
		return cmp.Or(cmp.Compare(a.TaxCode, b.TaxCode), cmp.Compare(a.Category, b.Category))
	})

	return report
}

// LoadReport reads the user's transactions dated within dateRange and builds the report.
func LoadReport(ctx context.Context, store service.Storage, userID string, dateRange DateRange) (*Report, error) {
	txns, err := store.ListTransactions(ctx, service.TransactionFilter{
		UserID:    userID,
		StartDate: &dateRange.Start,
		EndDate:   &dateRange.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	categories, err := store.GetCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	return BuildReport(txns, categories, dateRange), nil
}

// TaxYear returns the calendar-year range for year.
func TaxYear(year int) DateRange {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}
