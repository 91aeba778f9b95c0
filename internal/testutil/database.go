// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/shopspring/decimal"
)

// DefaultUserID is the profile created by SetupTestDB.
const DefaultUserID = "user-test"

// TestDB is a migrated in-memory database with one profile and the default categories.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	UserID  string
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations, seeding and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := store.CreateProfile(ctx, &model.Profile{ID: DefaultUserID, Email: "owner@example.com"}); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	if err := store.SeedDefaultCategories(ctx, DefaultUserID); err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}

	return &TestDB{Storage: store, UserID: DefaultUserID, t: t}
}

// MustCategory returns the user's category with the given name or fails the test.
func (db *TestDB) MustCategory(name string) model.Category {
	db.t.Helper()
	cat, err := db.Storage.GetCategoryByName(context.Background(), db.UserID, name)
	if err != nil {
		db.t.Fatalf("category %q: %v", name, err)
	}
	return *cat
}

// MustInsert stores transactions and returns them as inserted, in order.
func (db *TestDB) MustInsert(txns ...model.Transaction) []model.Transaction {
	db.t.Helper()
	for i := range txns {
		if txns[i].UserID == "" {
			txns[i].UserID = db.UserID
		}
	}
	inserted, err := db.Storage.InsertTransactions(context.Background(), txns)
	if err != nil {
		db.t.Fatalf("failed to insert transactions: %v", err)
	}
	if len(inserted) != len(txns) {
		db.t.Fatalf("inserted %d of %d transactions", len(inserted), len(txns))
	}
	return inserted
}

// MustGet reloads a transaction.
func (db *TestDB) MustGet(id string) model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransaction(context.Background(), db.UserID, id)
	if err != nil {
		db.t.Fatalf("failed to get transaction %s: %v", id, err)
	}
	return *txn
}

// Txn builds a provider transaction using the provider's signed amount convention.
func Txn(providerID, signedAmount, description string, date time.Time) model.Transaction {
	amount, txnType := model.TypeFromProviderAmount(decimal.RequireFromString(signedAmount))
	return model.Transaction{
		ProviderTransactionID: model.StringPtr(providerID),
		Date:                  date,
		Description:           description,
		Vendor:                description,
		Amount:                amount,
		Type:                  txnType,
		Source:                model.SourcePlaid,
	}
}
