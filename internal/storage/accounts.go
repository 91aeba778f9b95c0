package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/google/uuid"
)

const bankAccountColumns = `id, user_id, provider_item_id, provider_account_id, institution_name,
	name, credentials_ref, last_synced_at, is_active, last_error, created_at`

// CreateBankAccount stores a newly linked bank account.
func (s *SQLiteStorage) CreateBankAccount(ctx context.Context, account *model.BankAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = s.timestamp()
	account.IsActive = true

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO bank_accounts (`+bankAccountColumns+`)
		 VALUES (:id, :user_id, :provider_item_id, :provider_account_id, :institution_name,
		 :name, :credentials_ref, :last_synced_at, :is_active, :last_error, :created_at)`, account)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bank account %s: %w", account.ProviderAccountID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	return nil
}

// GetBankAccount returns one of the user's bank accounts.
func (s *SQLiteStorage) GetBankAccount(ctx context.Context, userID, id string) (*model.BankAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var account model.BankAccount
	err := s.db.GetContext(ctx, &account,
		`SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bank account %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	return &account, nil
}

// ListBankAccounts returns the user's bank accounts, optionally only active ones.
func (s *SQLiteStorage) ListBankAccounts(ctx context.Context, userID string, activeOnly bool) ([]model.BankAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY institution_name, name`

	var accounts []model.BankAccount
	if err := s.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	return accounts, nil
}

// MarkAccountSynced records a successful sync and clears any previous error.
func (s *SQLiteStorage) MarkAccountSynced(ctx context.Context, id string, syncedAt time.Time) error {
	return s.updateAccount(ctx, id,
		`last_synced_at = ?, last_error = ''`, syncedAt.UTC())
}

// DeactivateAccount marks an account inactive and records why.
func (s *SQLiteStorage) DeactivateAccount(ctx context.Context, id, reason string) error {
	return s.updateAccount(ctx, id, `is_active = 0, last_error = ?`, reason)
}

func (s *SQLiteStorage) updateAccount(ctx context.Context, id, set string, args ...any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx, `UPDATE bank_accounts SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update bank account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bank account %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// SaveCredential stores sealed provider credentials and returns their reference.
func (s *SQLiteStorage) SaveCredential(ctx context.Context, sealed []byte) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if len(sealed) == 0 {
		return "", fmt.Errorf("%w: sealed credential", ErrNilParameter)
	}

	ref := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, ciphertext, created_at) VALUES (?, ?, ?)`,
		ref, sealed, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("failed to save credential: %w", err)
	}
	return ref, nil
}

// GetCredential returns the sealed credential for ref.
func (s *SQLiteStorage) GetCredential(ctx context.Context, ref string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var sealed []byte
	err := s.db.GetContext(ctx, &sealed, `SELECT ciphertext FROM credentials WHERE id = ?`, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", ref, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return sealed, nil
}
