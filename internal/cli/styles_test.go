package cli

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{amount: "0", want: "$0.00"},
		{amount: "1234.5", want: "$1234.50"},
		{amount: "-12.345", want: "-$12.35"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Name", "Type"}, [][]string{
		{"Office Expense", "expense"},
		{"Sales Revenue"},
	})

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, out, "Office Expense")
	assert.Contains(t, out, "Sales Revenue")
	assert.Contains(t, lines[0], "Name")
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 transaction", Pluralize(1, "transaction"))
	assert.Equal(t, "3 transactions", Pluralize(3, "transaction"))
	assert.Equal(t, "0 accounts", Pluralize(0, "account"))
}

func TestFormatMessages(t *testing.T) {
	assert.Contains(t, FormatSuccess("done"), "done")
	assert.Contains(t, FormatError("failed"), ErrorIcon)
	assert.Contains(t, FormatTitle("Books"), "Books")
	assert.Contains(t, RenderBox("Summary", "3 synced"), "3 synced")
}
