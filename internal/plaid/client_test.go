package plaid

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		config  Config
		name    string
		errMsg  string
		wantErr bool
	}{
		{
			name:   "valid sandbox config",
			config: Config{ClientID: "test-client-id", Secret: "test-secret", Environment: "sandbox"},
		},
		{
			name:   "valid production config",
			config: Config{ClientID: "test-client-id", Secret: "test-secret", Environment: "production"},
		},
		{
			name:    "missing client ID",
			config:  Config{Secret: "test-secret", Environment: "sandbox"},
			wantErr: true,
			errMsg:  "plaid client ID is required",
		},
		{
			name:    "missing secret",
			config:  Config{ClientID: "test-client-id", Environment: "sandbox"},
			wantErr: true,
			errMsg:  "plaid secret is required",
		},
		{
			name:    "missing environment",
			config:  Config{ClientID: "test-client-id", Secret: "test-secret"},
			wantErr: true,
			errMsg:  "plaid environment is required",
		},
		{
			name:    "invalid environment",
			config:  Config{ClientID: "test-client-id", Secret: "test-secret", Environment: "development"},
			wantErr: true,
			errMsg:  "invalid Plaid environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Config{ClientID: "id", Secret: "secret", Environment: "sandbox"})
	require.NoError(t, err)
	assert.NotNil(t, client.client)
	assert.Equal(t, "Books", client.clientName)

	_, err = NewClient(Config{ClientID: "id"})
	require.Error(t, err)
}

func TestClient_Validation(t *testing.T) {
	client := &Client{logger: slog.Default().With("component", "plaid-test")}

	//nolint:staticcheck // nil context is the case under test
	_, err := client.GetTransactions(nil, "token", nil, time.Now().AddDate(0, -1, 0), time.Now())
	require.ErrorContains(t, err, "context cannot be nil")

	_, err = client.GetTransactions(context.Background(), "token", nil, time.Now(), time.Now().AddDate(0, -1, 0))
	require.ErrorContains(t, err, "start date must be before end date")

	_, err = client.CreateLinkToken(context.Background(), "")
	require.ErrorContains(t, err, "user ID is required")
}

func newPlaidTransaction(id string, amount float64, date string) plaid.Transaction {
	pt := plaid.Transaction{}
	pt.SetTransactionId(id)
	pt.SetAccountId("acct-1")
	pt.SetAmount(amount)
	pt.SetDate(date)
	pt.SetName("ACME SUPPLY INC 88812345")
	return pt
}

func TestMapPlaidTransaction(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		wantAmount string
		wantType   model.TransactionType
	}{
		{name: "negative amount is income", amount: -42.50, wantAmount: "42.5", wantType: model.TypeIncome},
		{name: "positive amount is expense", amount: 19.99, wantAmount: "19.99", wantType: model.TypeExpense},
		{name: "zero amount is expense", amount: 0, wantAmount: "0", wantType: model.TypeExpense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := mapPlaidTransaction(newPlaidTransaction("txn-1", tt.amount, "2025-03-14"))
			require.NoError(t, err)

			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(txn.Amount), "amount %s", txn.Amount)
			assert.False(t, txn.Amount.IsNegative())
			assert.Equal(t, tt.wantType, txn.Type)
			require.NotNil(t, txn.ProviderTransactionID)
			assert.Equal(t, "txn-1", *txn.ProviderTransactionID)
			assert.Equal(t, model.SourcePlaid, txn.Source)
			assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), txn.Date)
			assert.Equal(t, "ACME SUPPLY INC 88812345", txn.Description)
			assert.Equal(t, "Acme Supply", txn.Vendor)
		})
	}
}

func TestMapPlaidTransaction_PrefersMerchantName(t *testing.T) {
	pt := newPlaidTransaction("txn-2", 12, "2025-01-02")
	pt.SetMerchantName("Github")

	txn, err := mapPlaidTransaction(pt)
	require.NoError(t, err)
	assert.Equal(t, "Github", txn.Vendor)
}

func TestMapPlaidTransaction_Invalid(t *testing.T) {
	_, err := mapPlaidTransaction(newPlaidTransaction("txn-3", 1, "03/14/2025"))
	require.Error(t, err)

	_, err = mapPlaidTransaction(newPlaidTransaction("", 1, "2025-03-14"))
	require.Error(t, err)
}

func TestCleanMerchantName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "basic name", input: "Starbucks", expected: "Starbucks"},
		{name: "lowercase to title case", input: "starbucks coffee", expected: "Starbucks Coffee"},
		{name: "remove LLC suffix", input: "Amazon LLC", expected: "Amazon"},
		{name: "remove Inc suffix", input: "Apple Inc", expected: "Apple"},
		{name: "remove stacked suffixes", input: "Widget Co Ltd", expected: "Widget"},
		{name: "remove transaction ID", input: "PAYPAL 123456789", expected: "Paypal"},
		{name: "preserve short numbers", input: "STORE 2345", expected: "Store 2345"},
		{name: "extra spaces", input: "  Google   Cloud   ", expected: "Google Cloud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanMerchantName(tt.input))
		})
	}
}

func TestIsAllDigits(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"123456", true},
		{"12a456", false},
		{"", true},
		{"12.34", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, isAllDigits(tt.input))
		})
	}
}

func TestWrapPlaidError(t *testing.T) {
	err := wrapPlaidError("fetch transactions", errors.New("connection reset"))
	require.ErrorIs(t, err, common.ErrPlaidConnection)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient()
	start := time.Now().AddDate(-1, 0, 0)
	end := time.Now()

	expected := []model.Transaction{{Description: "Test Transaction", Amount: decimal.NewFromFloat(10.5)}}
	mock.GetTransactionsFn = func(_ context.Context, _ string, _ []string, _, _ time.Time) ([]model.Transaction, error) {
		return expected, nil
	}

	txns, err := mock.GetTransactions(context.Background(), "token", []string{"acct-1"}, start, end)
	require.NoError(t, err)
	assert.Equal(t, expected, txns)
	require.Len(t, mock.GetTransactionsCalls, 1)
	assert.Equal(t, "token", mock.GetTransactionsCalls[0].AccessToken)
	assert.Equal(t, []string{"acct-1"}, mock.GetTransactionsCalls[0].AccountIDs)

	access, item, err := mock.ExchangePublicToken(context.Background(), "public-1")
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-public-1", access)
	assert.Equal(t, "item-public-1", item)

	mock.Reset()
	assert.Empty(t, mock.GetTransactionsCalls)
}
