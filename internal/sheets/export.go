package sheets

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// ExportRange loads the user's report for dateRange and hands it to exporter.
func ExportRange(ctx context.Context, store service.Storage, exporter Exporter, userID string, dateRange DateRange) (string, *Report, error) {
	report, err := LoadReport(ctx, store, userID, dateRange)
	if err != nil {
		return "", nil, err
	}
	if len(report.Transactions) == 0 {
		return "", report, fmt.Errorf("no transactions between %s and %s",
			dateRange.Start.Format("2006-01-02"), dateRange.End.Format("2006-01-02"))
	}

	id, err := exporter.Export(ctx, report)
	if err != nil {
		return "", report, fmt.Errorf("export failed: %w", err)
	}
	return id, report, nil
}
