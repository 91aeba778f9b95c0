// Package reconcile asks a language model to find duplicate and internal-transfer
// transactions in a recent window and flags the groups it is sure about.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/llm"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// DefaultWindowDays is how far back from now transactions are considered.
const DefaultWindowDays = 90

// ConfidenceHigh is the only confidence label that is acted on.
const ConfidenceHigh = "high"

const systemPrompt = "You are a bookkeeping assistant reconciling bank transactions for a small business. " +
	"You MUST respond with ONLY a valid JSON object."

// Report summarizes a reconciliation run.
type Report struct {
	Candidates        int `json:"candidates"`
	DuplicatesFlagged int `json:"duplicates_flagged"`
	TransfersFlagged  int `json:"transfers_flagged"`
	GroupsSkipped     int `json:"groups_skipped"`
}

// Group is one set of transactions the model believes belong together.
type Group struct {
	Confidence     string   `json:"confidence"`
	Reason         string   `json:"reason"`
	TransactionIDs []string `json:"transaction_ids"`
}

type reply struct {
	Duplicates []Group `json:"duplicates"`
	Transfers  []Group `json:"transfers"`
}

// Reconciler flags duplicates and internal transfers.
type Reconciler struct {
	storage    service.Storage
	client     llm.Client
	logger     *slog.Logger
	windowDays int
}

// New creates a Reconciler. A non-positive windowDays falls back to DefaultWindowDays.
func New(storage service.Storage, client llm.Client, windowDays int, logger *slog.Logger) *Reconciler {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Reconciler{
		storage:    storage,
		client:     client,
		windowDays: windowDays,
		logger:     common.ComponentLogger(logger, "reconcile"),
	}
}

// Reconcile examines the user's transactions dated within the window ending at now.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, now time.Time) (Report, error) {
	var report Report

	// Provider dates carry no time of day, so the window starts at midnight UTC.
	y, m, d := now.UTC().AddDate(0, 0, -r.windowDays).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	txns, err := r.storage.ListTransactions(ctx, service.TransactionFilter{
		UserID:    userID,
		StartDate: &start,
		EndDate:   &now,
	})
	if err != nil {
		return report, fmt.Errorf("failed to load transactions: %w", err)
	}
	report.Candidates = len(txns)
	if len(txns) < 2 {
		r.logger.Info("Not enough transactions to reconcile", "user_id", userID, "count", len(txns))
		return report, nil
	}

	// Short ids keep the prompt small; positions follow ListTransactions order,
	// which is oldest first.
	byShortID := make(map[string]int, len(txns))
	for i := range txns {
		byShortID[shortID(i)] = i
	}

	prompt, err := buildPrompt(txns)
	if err != nil {
		return report, err
	}

	raw, err := r.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return report, fmt.Errorf("%w: %w", common.ErrReconciliationFailed, err)
	}

	var parsed reply
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return report, fmt.Errorf("%w: %w", common.ErrReconciliationFailed, err)
	}

	for _, g := range parsed.Duplicates {
		members, ok := r.accept(g, byShortID, "duplicate")
		if !ok {
			report.GroupsSkipped++
			continue
		}
		kept := txns[members[0]]
		note := fmt.Sprintf("Possible duplicate of %s (%s, %s): %s",
			kept.ID, kept.Date.Format(time.DateOnly), kept.Description, g.Reason)
		for _, idx := range members[1:] {
			if err := r.storage.FlagDuplicate(ctx, userID, txns[idx].ID, note); err != nil {
				r.logger.Warn("Failed to flag duplicate", "transaction_id", txns[idx].ID, "error", err)
				continue
			}
			report.DuplicatesFlagged++
		}
	}

	for _, g := range parsed.Transfers {
		members, ok := r.accept(g, byShortID, "transfer")
		if !ok {
			report.GroupsSkipped++
			continue
		}
		for _, idx := range members {
			if err := r.storage.FlagInternalTransfer(ctx, userID, txns[idx].ID); err != nil {
				r.logger.Warn("Failed to flag transfer", "transaction_id", txns[idx].ID, "error", err)
				continue
			}
			report.TransfersFlagged++
		}
	}

	r.logger.Info("Reconciliation complete",
		"user_id", userID,
		"candidates", report.Candidates,
		"duplicates_flagged", report.DuplicatesFlagged,
		"transfers_flagged", report.TransfersFlagged,
		"groups_skipped", report.GroupsSkipped)

	if report.DuplicatesFlagged > 0 || report.TransfersFlagged > 0 {
		r.recordAudit(ctx, userID, report)
	}
	return report, nil
}

// accept returns the positions of a group's known members, oldest first.
// Groups that are not high confidence or have fewer than two known members are rejected.
func (r *Reconciler) accept(g Group, byShortID map[string]int, kind string) ([]int, bool) {
	if !strings.EqualFold(strings.TrimSpace(g.Confidence), ConfidenceHigh) {
		r.logger.Debug("Skipping group below high confidence",
			"kind", kind,
			"confidence", g.Confidence,
			"ids", g.TransactionIDs)
		return nil, false
	}

	seen := make(map[int]bool, len(g.TransactionIDs))
	members := make([]int, 0, len(g.TransactionIDs))
	for _, id := range g.TransactionIDs {
		idx, ok := byShortID[strings.TrimSpace(id)]
		if !ok {
			r.logger.Warn("Ignoring unknown transaction id", "kind", kind, "id", id)
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		members = append(members, idx)
	}

	if len(members) < 2 {
		r.logger.Debug("Skipping group with fewer than two known transactions", "kind", kind, "ids", g.TransactionIDs)
		return nil, false
	}

	slices.Sort(members)
	return members, true
}

func shortID(i int) string {
	return "t" + strconv.Itoa(i+1)
}

type promptTransaction struct {
	ID                 string `json:"id"`
	Date               string `json:"date"`
	Description        string `json:"description"`
	Amount             string `json:"amount"`
	Type               string `json:"type"`
	Account            string `json:"account,omitempty"`
	IsInternalTransfer bool   `json:"is_internal_transfer,omitempty"`
}

func buildPrompt(txns []model.Transaction) (string, error) {
	items := make([]promptTransaction, len(txns))
	for i, txn := range txns {
		item := promptTransaction{
			ID:                 shortID(i),
			Date:               txn.Date.Format(time.DateOnly),
			Description:        txn.Description,
			Amount:             txn.Amount.StringFixed(2),
			Type:               string(txn.Type),
			IsInternalTransfer: txn.IsInternalTransfer,
		}
		if txn.BankAccountID != nil {
			item.Account = *txn.BankAccountID
		}
		items[i] = item
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode transactions: %w", err)
	}

	return fmt.Sprintf(`Review these bank transactions and find:
1. Duplicates: the same real-world charge or deposit recorded more than once.
2. Internal transfers: money moved between the business's own accounts
   (an expense in one account matched by income of the same amount in another).

Transactions:
%s

Use "high" confidence only when you are certain.

Respond with:
{"duplicates":[{"transaction_ids":["t1","t2"],"confidence":"high|medium|low","reason":"..."}],
 "transfers":[{"transaction_ids":["t3","t4"],"confidence":"high|medium|low","reason":"..."}]}
`, string(data)), nil
}

func (r *Reconciler) recordAudit(ctx context.Context, userID string, report Report) {
	details, err := json.Marshal(report)
	if err != nil {
		details = []byte("{}")
	}
	if err := r.storage.RecordAudit(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     model.ActionReconciled,
		EntityType: "transaction",
		Details:    string(details),
	}); err != nil {
		r.logger.Warn("Failed to record audit log", "error", err)
	}
}
