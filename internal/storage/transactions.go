package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const transactionColumns = `id, user_id, bank_account_id, provider_transaction_id, date, description,
	vendor, amount, type, source, provider_category, category_id, is_deductible, ai_confidence,
	needs_review, review_note, is_internal_transfer, created_at, updated_at`

const insertTransactionSQL = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES (:id, :user_id, :bank_account_id, :provider_transaction_id, :date, :description,
	:vendor, :amount, :type, :source, :provider_category, :category_id, :is_deductible, :ai_confidence,
	:needs_review, :review_note, :is_internal_transfer, :created_at, :updated_at)`

// prepareTransaction fills ids and timestamps and validates the row.
func (s *SQLiteStorage) prepareTransaction(txn *model.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Source == "" {
		txn.Source = model.SourceManual
	}
	now := s.timestamp()
	txn.Date = txn.Date.UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	return validateTransaction(txn)
}

// InsertTransactions inserts provider transactions, silently skipping any whose
// provider transaction ID is already stored. It returns the rows that were inserted.
func (s *SQLiteStorage) InsertTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}

	var inserted []model.Transaction
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := range transactions {
			txn := transactions[i]
			if err := s.prepareTransaction(&txn); err != nil {
				return err
			}

			result, err := tx.NamedExecContext(ctx,
				insertTransactionSQL+` ON CONFLICT(provider_transaction_id) DO NOTHING`, &txn)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check insert result: %w", err)
			}
			if affected == 1 {
				inserted = append(inserted, txn)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return inserted, nil
}

// CreateTransaction inserts a single transaction, typically a manual entry.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if transaction == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := s.prepareTransaction(transaction); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if transaction.CategoryID != nil {
			if err := checkCategoryType(ctx, tx, transaction.UserID, *transaction.CategoryID, transaction.Type); err != nil {
				return err
			}
		}
		if _, err := tx.NamedExecContext(ctx, insertTransactionSQL, transaction); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("transaction %s: %w", transaction.ID, common.ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		return nil
	})
}

// GetTransaction retrieves a single transaction owned by userID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getTransaction(ctx, s.db, userID, id)
}

func getTransaction(ctx context.Context, q queryable, userID, id string) (*model.Transaction, error) {
	var txn model.Transaction
	err := sqlx.GetContext(ctx, q, &txn,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

// ListTransactions returns transactions matching the filter, oldest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.UserID, "userID"); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	where := []string{"user_id = ?"}
	args := []any{filter.UserID}

	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.Uncategorized {
		where = append(where, "category_id IS NULL")
	}
	if len(filter.IDs) > 0 {
		where = append(where, "id IN (?)")
		args = append(args, filter.IDs)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date ASC, created_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	if len(filter.IDs) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to expand id filter: %w", err)
		}
	}

	var transactions []model.Transaction
	if err := sqlx.SelectContext(ctx, s.db, &transactions, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// ProviderTransactionIDs returns the set of provider ids already stored for userID.
func (s *SQLiteStorage) ProviderTransactionIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT provider_transaction_id FROM transactions
		 WHERE user_id = ? AND provider_transaction_id IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider transaction ids: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ApplyCategorization writes a categorization result back to a transaction.
// The assigned category must have the same type as the resulting transaction type.
func (s *SQLiteStorage) ApplyCategorization(ctx context.Context, userID, transactionID string, update service.CategoryUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		txn, err := getTransaction(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}

		newType := txn.Type
		if update.Type != "" {
			if !update.Type.Valid() {
				return fmt.Errorf("%w: %s", model.ErrInvalidType, update.Type)
			}
			newType = update.Type
		}

		if update.CategoryID != nil {
			if err := checkCategoryType(ctx, tx, userID, *update.CategoryID, newType); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE transactions
			 SET type = ?, category_id = ?, is_deductible = ?, ai_confidence = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			newType, update.CategoryID, update.IsDeductible, update.Confidence, s.timestamp(),
			transactionID, userID)
		if err != nil {
			return fmt.Errorf("failed to apply categorization: %w", err)
		}
		return nil
	})
}

// FlipTransactionType switches income and expense, clearing the category and
// deductibility so the transaction can be recategorized.
func (s *SQLiteStorage) FlipTransactionType(ctx context.Context, userID, transactionID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var flipped *model.Transaction
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		txn, err := getTransaction(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}

		now := s.timestamp()
		txn.Type = txn.Type.Opposite()
		txn.CategoryID = nil
		txn.IsDeductible = false
		txn.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`UPDATE transactions
			 SET type = ?, category_id = NULL, is_deductible = 0, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			txn.Type, now, transactionID, userID)
		if err != nil {
			return fmt.Errorf("failed to flip transaction type: %w", err)
		}
		flipped = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flipped, nil
}

// FlagDuplicate marks a transaction as a probable duplicate awaiting review.
func (s *SQLiteStorage) FlagDuplicate(ctx context.Context, userID, transactionID, note string) error {
	return s.updateFlags(ctx, userID, transactionID,
		`needs_review = 1, review_note = ?`, note)
}

// FlagInternalTransfer marks a transaction as money moving between the user's own accounts.
func (s *SQLiteStorage) FlagInternalTransfer(ctx context.Context, userID, transactionID string) error {
	return s.updateFlags(ctx, userID, transactionID, `is_internal_transfer = 1`)
}

// AcceptReviewFlag clears the review flag. The review note is kept.
func (s *SQLiteStorage) AcceptReviewFlag(ctx context.Context, userID, transactionID string) error {
	return s.updateFlags(ctx, userID, transactionID, `needs_review = 0`)
}

func (s *SQLiteStorage) updateFlags(ctx context.Context, userID, transactionID, set string, args ...any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	args = append(args, s.timestamp(), transactionID, userID)
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+set+`, updated_at = ? WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction flags: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", transactionID, common.ErrNotFound)
	}
	return nil
}

// GetReviewCandidates returns transactions whose description contains any of the
// patterns (case-insensitive) or that carry a review flag, newest first.
func (s *SQLiteStorage) GetReviewCandidates(ctx context.Context, userID string, patterns []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	conditions := []string{"needs_review = 1"}
	args := []any{userID}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		conditions = append(conditions, `LOWER(description) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(p))+"%")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = ? AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY date DESC, created_at DESC`

	var transactions []model.Transaction
	if err := s.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get review candidates: %w", err)
	}
	return transactions, nil
}

// TransactionsBefore returns every transaction dated before cutoff, across all users.
func (s *SQLiteStorage) TransactionsBefore(ctx context.Context, cutoff time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	err := s.db.SelectContext(ctx, &transactions,
		`SELECT `+transactionColumns+` FROM transactions WHERE date < ? ORDER BY date ASC`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	return transactions, nil
}

// deleteBatchSize keeps each DELETE well under SQLite's bound-variable limit.
var deleteBatchSize = 500

// DeleteTransactions hard-deletes transactions by id in one database
// transaction. Only the retention job calls this.
func (s *SQLiteStorage) DeleteTransactions(ctx context.Context, ids []string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for chunk := range slices.Chunk(ids, deleteBatchSize) {
			query, args, err := sqlx.In(`DELETE FROM transactions WHERE id IN (?)`, chunk)
			if err != nil {
				return fmt.Errorf("failed to build delete query: %w", err)
			}
			result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
			if err != nil {
				return fmt.Errorf("failed to delete transactions: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count deleted transactions: %w", err)
			}
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// checkCategoryType ensures a category exists for the user and matches txnType.
func checkCategoryType(ctx context.Context, q queryable, userID string, categoryID int64, txnType model.TransactionType) error {
	cat, err := getCategoryByID(ctx, q, userID, categoryID)
	if err != nil {
		return err
	}
	if !cat.Matches(txnType) {
		return fmt.Errorf("category %q is %s, transaction is %s: %w",
			cat.Name, cat.Type, txnType, common.ErrCategoryTypeMismatch)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
