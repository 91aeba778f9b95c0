package model

import "time"

// SyncInterval is the minimum time between two automatic syncs of the same account.
const SyncInterval = time.Hour

// BankAccount is a provider-linked account owned by one user.
type BankAccount struct {
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	LastSyncedAt      *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	ProviderItemID    string     `db:"provider_item_id" json:"provider_item_id"`
	ProviderAccountID string     `db:"provider_account_id" json:"provider_account_id"`
	InstitutionName   string     `db:"institution_name" json:"institution_name"`
	Name              string     `db:"name" json:"name"`
	CredentialsRef    string     `db:"credentials_ref" json:"-"`
	LastError         string     `db:"last_error" json:"last_error,omitempty"`
	IsActive          bool       `db:"is_active" json:"is_active"`
}

// SyncedWithin reports whether the account was synced less than d before now.
func (a *BankAccount) SyncedWithin(now time.Time, d time.Duration) bool {
	if a.LastSyncedAt == nil {
		return false
	}
	return now.Sub(*a.LastSyncedAt) < d
}

// Profile is the owner of all user-scoped rows.
type Profile struct {
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	BusinessName string    `db:"business_name" json:"business_name"`
}

// AuditLog records a mutation performed on behalf of a user.
type AuditLog struct {
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Details    string    `db:"details" json:"details"`
}

// Audit actions.
const (
	ActionTransactionsImported = "transactions.imported"
	ActionTransactionCreated   = "transaction.created"
	ActionTransactionTyped     = "transaction.type_flipped"
	ActionFlagAccepted         = "transaction.flag_accepted"
	ActionCategorized          = "transactions.categorized"
	ActionReconciled           = "transactions.reconciled"
	ActionAccountLinked        = "bank_account.linked"
	ActionAccountDeactivated   = "bank_account.deactivated"
	ActionRetentionPurge       = "transactions.purged"
)
