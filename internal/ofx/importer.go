package ofx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// ImportResult reports what an import stored.
type ImportResult struct {
	Accounts []string `json:"accounts"`
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Existing int      `json:"existing"`
}

// Import parses a statement file and stores its transactions for the user.
// bankAccountID is optional and links the rows to a known bank account.
// Re-importing the same file stores nothing new.
func (p *Parser) Import(ctx context.Context, store service.Storage, userID, bankAccountID string, reader io.Reader) (ImportResult, error) {
	var result ImportResult

	statements, err := p.Parse(ctx, reader)
	if err != nil {
		return result, err
	}

	var txns []model.Transaction
	for _, s := range statements {
		result.Accounts = append(result.Accounts, s.AccountID)
		for _, txn := range s.Transactions {
			txn.UserID = userID
			txn.BankAccountID = model.StringPtr(bankAccountID)
			txns = append(txns, txn)
		}
	}
	result.Parsed = len(txns)

	inserted, err := store.InsertTransactions(ctx, txns)
	if err != nil {
		return result, fmt.Errorf("failed to store OFX transactions: %w", err)
	}
	result.Inserted = len(inserted)
	result.Existing = result.Parsed - result.Inserted

	details, err := json.Marshal(result)
	if err != nil {
		details = []byte("{}")
	}
	if err := store.RecordAudit(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     model.ActionTransactionsImported,
		EntityType: "ofx_file",
		Details:    string(details),
	}); err != nil {
		p.logger.Warn("Failed to record audit log", "error", err)
	}

	return result, nil
}
