// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound             = errors.New("not found")
	ErrDuplicateEntry       = errors.New("duplicate entry")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")

	// Provider errors.
	ErrPlaidConnection = errors.New("plaid connection failed")
	ErrAccountInactive = errors.New("bank account is inactive")

	// Classification errors.
	ErrNoTransactions       = errors.New("no transactions to classify")
	ErrNoCategories         = errors.New("no categories configured")
	ErrClassificationFailed = errors.New("classification failed")
	ErrReconciliationFailed = errors.New("reconciliation failed")

	// Review errors.
	ErrNotFlagged = errors.New("transaction is not flagged for review")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
