// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the bookkeeping direction of a transaction.
type TransactionType string

const (
	// TypeIncome represents money coming into the business.
	TypeIncome TransactionType = "income"
	// TypeExpense represents money leaving the business.
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Opposite returns the other transaction type.
func (t TransactionType) Opposite() TransactionType {
	if t == TypeIncome {
		return TypeExpense
	}
	return TypeIncome
}

// ParseTransactionType converts a user or model supplied string into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid transaction type %q", s)
	}
	return t, nil
}

// TransactionSource indicates how a transaction entered the system.
type TransactionSource string

const (
	// SourcePlaid marks rows imported by the bank sync job.
	SourcePlaid TransactionSource = "plaid"
	// SourceManual marks rows entered by hand.
	SourceManual TransactionSource = "manual"
	// SourceOFX marks rows imported from an OFX/QFX statement.
	SourceOFX TransactionSource = "ofx"
)

// Transaction represents a single bookkeeping transaction owned by one user.
type Transaction struct {
	Date                  time.Time         `db:"date" json:"date"`
	CreatedAt             time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updated_at"`
	CategoryID            *int64            `db:"category_id" json:"category_id,omitempty"`
	BankAccountID         *string           `db:"bank_account_id" json:"bank_account_id,omitempty"`
	ProviderTransactionID *string           `db:"provider_transaction_id" json:"provider_transaction_id,omitempty"`
	ID                    string            `db:"id" json:"id"`
	UserID                string            `db:"user_id" json:"user_id"`
	Description           string            `db:"description" json:"description"`
	Vendor                string            `db:"vendor" json:"vendor"`
	Type                  TransactionType   `db:"type" json:"type"`
	Source                TransactionSource `db:"source" json:"source"`
	ProviderCategory      string            `db:"provider_category" json:"provider_category,omitempty"`
	ReviewNote            string            `db:"review_note" json:"review_note,omitempty"`
	Amount                decimal.Decimal   `db:"amount" json:"amount"`
	AIConfidence          float64           `db:"ai_confidence" json:"ai_confidence"`
	IsDeductible          bool              `db:"is_deductible" json:"is_deductible"`
	NeedsReview           bool              `db:"needs_review" json:"needs_review"`
	IsInternalTransfer    bool              `db:"is_internal_transfer" json:"is_internal_transfer"`
}

// Validation errors for transactions.
var (
	ErrNegativeAmount = errors.New("amount must be non-negative")
	ErrInvalidType    = errors.New("type must be income or expense")
)

// Validate checks the invariants every stored transaction must satisfy.
func (t *Transaction) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("transaction %s: missing user ID", t.ID)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction %s: missing date", t.ID)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrNegativeAmount)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidType)
	}
	return nil
}

// IsCategorized reports whether a category has been assigned.
func (t *Transaction) IsCategorized() bool {
	return t.CategoryID != nil
}

// TypeFromProviderAmount derives the stored amount and type from a signed provider amount.
// Plaid reports money leaving the account as positive and money arriving as negative.
// A zero amount is treated as an expense.
func TypeFromProviderAmount(amount decimal.Decimal) (decimal.Decimal, TransactionType) {
	if amount.IsNegative() {
		return amount.Neg(), TypeIncome
	}
	return amount, TypeExpense
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
