package sheets

import (
	"context"
	"sync"
)

// MockExporter is a mock implementation of Exporter for testing.
type MockExporter struct {
	ExportFunc func(ctx context.Context, report *Report) (string, error)
	Reports    []*Report
	mu         sync.Mutex
}

// Export implements Exporter.
func (m *MockExporter) Export(ctx context.Context, report *Report) (string, error) {
	m.mu.Lock()
	m.Reports = append(m.Reports, report)
	m.mu.Unlock()

	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, report)
	}
	return "mock-spreadsheet", nil
}

// Calls returns how many reports were exported.
func (m *MockExporter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Reports)
}

var _ Exporter = (*MockExporter)(nil)
