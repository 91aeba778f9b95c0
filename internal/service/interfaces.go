// Package service defines the interfaces shared by the application's services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	UserID        string
	IDs           []string
	Limit         int
	Uncategorized bool
}

// CategoryUpdate is the result of categorizing one transaction.
type CategoryUpdate struct {
	CategoryID   *int64
	Type         model.TransactionType
	Confidence   float64
	IsDeductible bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Profile operations
	CreateProfile(ctx context.Context, profile *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)

	// Transaction operations
	InsertTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error)
	CreateTransaction(ctx context.Context, transaction *model.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	ProviderTransactionIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	ApplyCategorization(ctx context.Context, userID, transactionID string, update CategoryUpdate) error
	FlipTransactionType(ctx context.Context, userID, transactionID string) (*model.Transaction, error)
	FlagDuplicate(ctx context.Context, userID, transactionID, note string) error
	FlagInternalTransfer(ctx context.Context, userID, transactionID string) error
	AcceptReviewFlag(ctx context.Context, userID, transactionID string) error
	GetReviewCandidates(ctx context.Context, userID string, patterns []string) ([]model.Transaction, error)
	TransactionsBefore(ctx context.Context, cutoff time.Time) ([]model.Transaction, error)
	DeleteTransactions(ctx context.Context, ids []string) (int64, error)

	// Category operations
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, userID string, id int64) (*model.Category, error)
	GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	SeedDefaultCategories(ctx context.Context, userID string) error

	// Bank account operations
	CreateBankAccount(ctx context.Context, account *model.BankAccount) error
	GetBankAccount(ctx context.Context, userID, id string) (*model.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID string, activeOnly bool) ([]model.BankAccount, error)
	MarkAccountSynced(ctx context.Context, id string, syncedAt time.Time) error
	DeactivateAccount(ctx context.Context, id, reason string) error
	SaveCredential(ctx context.Context, sealed []byte) (string, error)
	GetCredential(ctx context.Context, ref string) ([]byte, error)

	// Audit operations
	RecordAudit(ctx context.Context, entry *model.AuditLog) error
	ListAuditLogs(ctx context.Context, userID string, limit int) ([]model.AuditLog, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
