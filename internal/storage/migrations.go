package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS profiles (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL DEFAULT '',
					business_name TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL REFERENCES profiles(id),
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
					is_deductible BOOLEAN NOT NULL DEFAULT 0,
					tax_code TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					UNIQUE (user_id, name)
				)`,

				`CREATE TABLE IF NOT EXISTS credentials (
					id TEXT PRIMARY KEY,
					ciphertext BLOB NOT NULL,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS bank_accounts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES profiles(id),
					provider_item_id TEXT NOT NULL,
					provider_account_id TEXT NOT NULL,
					institution_name TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL DEFAULT '',
					credentials_ref TEXT NOT NULL REFERENCES credentials(id),
					last_synced_at DATETIME,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					last_error TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					UNIQUE (provider_account_id)
				)`,
				`CREATE INDEX idx_bank_accounts_user ON bank_accounts(user_id, is_active)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES profiles(id),
					bank_account_id TEXT REFERENCES bank_accounts(id),
					provider_transaction_id TEXT UNIQUE,
					date DATETIME NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					vendor TEXT NOT NULL DEFAULT '',
					amount TEXT NOT NULL CHECK (CAST(amount AS REAL) >= 0),
					type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
					source TEXT NOT NULL DEFAULT 'manual',
					provider_category TEXT NOT NULL DEFAULT '',
					category_id INTEGER REFERENCES categories(id),
					is_deductible BOOLEAN NOT NULL DEFAULT 0,
					ai_confidence REAL NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add reconciliation and review flags",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions ADD COLUMN needs_review BOOLEAN NOT NULL DEFAULT 0`,
				`ALTER TABLE transactions ADD COLUMN review_note TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN is_internal_transfer BOOLEAN NOT NULL DEFAULT 0`,
				`CREATE INDEX idx_transactions_needs_review ON transactions(user_id, needs_review)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add audit log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS audit_logs (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					action TEXT NOT NULL,
					entity_type TEXT NOT NULL DEFAULT '',
					entity_id TEXT NOT NULL DEFAULT '',
					details TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_audit_logs_user ON audit_logs(user_id, created_at)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
