package plaid

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// MockClient is a mock implementation of Provider for testing.
type MockClient struct {
	GetTransactionsFn     func(ctx context.Context, accessToken string, accountIDs []string, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccountsFn         func(ctx context.Context, accessToken string) ([]Account, error)
	CreateLinkTokenFn     func(ctx context.Context, userID string) (string, error)
	ExchangePublicTokenFn func(ctx context.Context, publicToken string) (string, string, error)

	GetTransactionsCalls []GetTransactionsCall
	GetAccountsCalls     int
	mu                   sync.Mutex
}

// GetTransactionsCall records the parameters of a GetTransactions call.
type GetTransactionsCall struct {
	StartDate   time.Time
	EndDate     time.Time
	AccessToken string
	AccountIDs  []string
}

// NewMockClient creates a new mock Plaid client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GetTransactions implements Provider.GetTransactions.
func (m *MockClient) GetTransactions(ctx context.Context, accessToken string, accountIDs []string, startDate, endDate time.Time) ([]model.Transaction, error) {
	m.mu.Lock()
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, GetTransactionsCall{
		AccessToken: accessToken,
		AccountIDs:  accountIDs,
		StartDate:   startDate,
		EndDate:     endDate,
	})
	m.mu.Unlock()

	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, accessToken, accountIDs, startDate, endDate)
	}
	return []model.Transaction{}, nil
}

// GetAccounts implements Provider.GetAccounts.
func (m *MockClient) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	m.mu.Lock()
	m.GetAccountsCalls++
	m.mu.Unlock()

	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx, accessToken)
	}
	return []Account{}, nil
}

// CreateLinkToken implements Provider.CreateLinkToken.
func (m *MockClient) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if m.CreateLinkTokenFn != nil {
		return m.CreateLinkTokenFn(ctx, userID)
	}
	return "link-sandbox-" + userID, nil
}

// ExchangePublicToken implements Provider.ExchangePublicToken.
func (m *MockClient) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	if m.ExchangePublicTokenFn != nil {
		return m.ExchangePublicTokenFn(ctx, publicToken)
	}
	return "access-sandbox-" + publicToken, "item-" + publicToken, nil
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetTransactionsCalls = nil
	m.GetAccountsCalls = 0
}

var _ Provider = (*MockClient)(nil)
