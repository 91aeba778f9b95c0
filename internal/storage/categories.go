package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/jmoiron/sqlx"
)

const categoryColumns = `id, user_id, name, type, is_deductible, tax_code, created_at`

// GetCategories returns all categories for a user ordered by type then name.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var categories []model.Category
	err := s.db.SelectContext(ctx, &categories,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY type, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	return categories, nil
}

// GetCategoryByID returns one of the user's categories.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, userID string, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategoryByID(ctx, s.db, userID, id)
}

func getCategoryByID(ctx context.Context, q queryable, userID string, id int64) (*model.Category, error) {
	var cat model.Category
	err := sqlx.GetContext(ctx, q, &cat,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// GetCategoryByName looks a category up by its exact name, case-insensitively.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var cat model.Category
	err := s.db.GetContext(ctx, &cat,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ? COLLATE NOCASE`,
		userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// CreateCategory inserts a new category and sets its ID.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return createCategory(ctx, s.db, category, s.timestamp())
}

func createCategory(ctx context.Context, q queryable, category *model.Category, now time.Time) error {
	category.CreatedAt = now
	result, err := sqlx.NamedExecContext(ctx, q,
		`INSERT INTO categories (user_id, name, type, is_deductible, tax_code, created_at)
		 VALUES (:user_id, :name, :type, :is_deductible, :tax_code, :created_at)`, category)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", category.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category ID: %w", err)
	}
	category.ID = id
	return nil
}

// SeedDefaultCategories creates the default catalogue for a user, skipping names
// that already exist.
func (s *SQLiteStorage) SeedDefaultCategories(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	created := 0
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := s.timestamp()
		for _, cat := range model.DefaultCategories() {
			cat.UserID = userID
			err := createCategory(ctx, tx, &cat, now)
			if errors.Is(err, common.ErrDuplicateEntry) {
				continue
			}
			if err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	slog.Debug("Seeded default categories", "user_id", userID, "created", created)
	return nil
}
