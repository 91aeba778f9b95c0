// Package bankfeed pulls transactions for linked bank accounts from the provider
// and stores the ones that are new.
package bankfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/plaid"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/vault"
)

// DefaultLookbackMonths is how far back each sync asks the provider for transactions.
const DefaultLookbackMonths = 12

// Categorizer categorizes freshly imported transactions.
type Categorizer interface {
	Categorize(ctx context.Context, userID string, txns []model.Transaction) (categorize.Summary, error)
}

// Options control a single sync.
type Options struct {
	Force bool
}

// Result reports what happened to one account.
type Result struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Fetched     int    `json:"fetched"`
	Existing    int    `json:"existing"`
	Inserted    int    `json:"inserted"`
	Categorized int    `json:"categorized"`
	Skipped     bool   `json:"skipped"`
}

// Config holds the Syncer's tunables.
type Config struct {
	LookbackMonths int
	MinInterval    time.Duration
}

// Syncer imports transactions from the bank-data provider.
type Syncer struct {
	storage     service.Storage
	provider    plaid.Provider
	vault       *vault.Vault
	categorizer Categorizer
	logger      *slog.Logger
	now         func() time.Time
	cfg         Config
}

// NewSyncer creates a Syncer. categorizer may be nil, in which case new
// transactions are left uncategorized.
func NewSyncer(storage service.Storage, provider plaid.Provider, v *vault.Vault, categorizer Categorizer, cfg Config, logger *slog.Logger) *Syncer {
	if cfg.LookbackMonths <= 0 {
		cfg.LookbackMonths = DefaultLookbackMonths
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = model.SyncInterval
	}
	return &Syncer{
		storage:     storage,
		provider:    provider,
		vault:       v,
		categorizer: categorizer,
		cfg:         cfg,
		logger:      common.ComponentLogger(logger, "bankfeed"),
		now:         time.Now,
	}
}

// SyncAccount imports new transactions for one account. Provider failures
// deactivate the account and are returned; there is no retry.
func (s *Syncer) SyncAccount(ctx context.Context, account model.BankAccount, opts Options) (Result, error) {
	result := Result{AccountID: account.ID, AccountName: account.Name}
	now := s.now()

	if !account.IsActive {
		return result, fmt.Errorf("%w: %s", common.ErrAccountInactive, account.ID)
	}

	if !opts.Force && account.SyncedWithin(now, s.cfg.MinInterval) {
		s.logger.Info("Skipping recently synced account",
			"account_id", account.ID,
			"last_synced_at", account.LastSyncedAt)
		result.Skipped = true
		return result, nil
	}

	accessToken, err := s.accessToken(ctx, account)
	if err != nil {
		return result, err
	}

	start := now.AddDate(0, -s.cfg.LookbackMonths, 0)
	fetched, err := s.provider.GetTransactions(ctx, accessToken, []string{account.ProviderAccountID}, start, now)
	if err != nil {
		s.deactivate(ctx, account, err)
		return result, fmt.Errorf("sync of account %s failed: %w", account.ID, err)
	}
	result.Fetched = len(fetched)

	existing, err := s.storage.ProviderTransactionIDs(ctx, account.UserID)
	if err != nil {
		return result, fmt.Errorf("failed to load existing transaction ids: %w", err)
	}

	accountID := account.ID
	fresh := make([]model.Transaction, 0, len(fetched))
	for _, txn := range fetched {
		if txn.ProviderTransactionID != nil {
			if _, ok := existing[*txn.ProviderTransactionID]; ok {
				result.Existing++
				continue
			}
		}
		txn.UserID = account.UserID
		txn.BankAccountID = &accountID
		txn.Source = model.SourcePlaid
		fresh = append(fresh, txn)
	}

	inserted, err := s.storage.InsertTransactions(ctx, fresh)
	if err != nil {
		return result, fmt.Errorf("failed to store transactions: %w", err)
	}
	result.Inserted = len(inserted)
	result.Existing += len(fresh) - len(inserted)

	if err := s.storage.MarkAccountSynced(ctx, account.ID, now); err != nil {
		return result, fmt.Errorf("failed to mark account synced: %w", err)
	}

	s.audit(ctx, account.UserID, model.ActionTransactionsImported, account.ID, result)

	s.logger.Info("Account synced",
		"account_id", account.ID,
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"existing", result.Existing)

	if s.categorizer != nil && len(inserted) > 0 {
		summary, err := s.categorizer.Categorize(ctx, account.UserID, inserted)
		if err != nil {
			s.logger.Warn("Categorization after sync failed",
				"account_id", account.ID,
				"error", err)
		}
		result.Categorized = summary.Applied
	}

	return result, nil
}

// SyncUser syncs every active account of the user in order. A failing account
// does not stop the others; all failures are returned joined.
func (s *Syncer) SyncUser(ctx context.Context, userID string, opts Options) ([]Result, error) {
	accounts, err := s.storage.ListBankAccounts(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}

	results := make([]Result, 0, len(accounts))
	var errs []error
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := s.SyncAccount(ctx, account, opts)
		if err != nil {
			errs = append(errs, err)
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

func (s *Syncer) accessToken(ctx context.Context, account model.BankAccount) (string, error) {
	sealed, err := s.storage.GetCredential(ctx, account.CredentialsRef)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials for account %s: %w", account.ID, err)
	}
	token, err := s.vault.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to open credentials for account %s: %w", account.ID, err)
	}
	return token, nil
}

func (s *Syncer) deactivate(ctx context.Context, account model.BankAccount, cause error) {
	s.logger.Error("Provider call failed, deactivating account",
		"account_id", account.ID,
		"institution", account.InstitutionName,
		"error", cause)

	if err := s.storage.DeactivateAccount(ctx, account.ID, cause.Error()); err != nil {
		s.logger.Error("Failed to deactivate account", "account_id", account.ID, "error", err)
		return
	}
	s.audit(ctx, account.UserID, model.ActionAccountDeactivated, account.ID, map[string]string{"error": cause.Error()})
}

func (s *Syncer) audit(ctx context.Context, userID, action, accountID string, details any) {
	data, err := json.Marshal(details)
	if err != nil {
		data = []byte("{}")
	}
	if err := s.storage.RecordAudit(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "bank_account",
		EntityID:   accountID,
		Details:    string(data),
	}); err != nil {
		s.logger.Warn("Failed to record audit log", "action", action, "error", err)
	}
}
