// Package storage provides the data persistence layer for the books application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidAccount     = errors.New("invalid bank account")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if txn.ProviderTransactionID != nil && strings.TrimSpace(*txn.ProviderTransactionID) == "" {
		return fmt.Errorf("%w: empty provider transaction ID", ErrInvalidTransaction)
	}
	return nil
}

// validateCategory validates a category before insert.
func validateCategory(cat *model.Category) error {
	if cat == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(cat.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidCategory)
	}
	if strings.TrimSpace(cat.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if !cat.Type.Valid() {
		return fmt.Errorf("%w: type must be income or expense", ErrInvalidCategory)
	}
	return nil
}

// validateAccount validates a bank account before insert.
func validateAccount(acct *model.BankAccount) error {
	if acct == nil {
		return fmt.Errorf("%w: bank account", ErrNilParameter)
	}
	if strings.TrimSpace(acct.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidAccount)
	}
	if strings.TrimSpace(acct.ProviderAccountID) == "" {
		return fmt.Errorf("%w: missing provider account ID", ErrInvalidAccount)
	}
	if strings.TrimSpace(acct.CredentialsRef) == "" {
		return fmt.Errorf("%w: missing credentials reference", ErrInvalidAccount)
	}
	return nil
}
