package plaid

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Account is a bank account reachable through a Plaid item.
type Account struct {
	ID   string
	Name string
	Mask string
	Type string
}

// Provider defines the contract for the bank-data provider.
// This interface allows for easy mocking in tests.
type Provider interface {
	GetTransactions(ctx context.Context, accessToken string, accountIDs []string, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
}
