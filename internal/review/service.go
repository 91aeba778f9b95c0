// Package review exposes transactions that need a human decision and the two
// decisions a reviewer can make.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// DefaultPatterns are the description fragments that mark a transaction for review.
var DefaultPatterns = []string{"venmo", "transfer", "payment"}

// Service lists review candidates and applies reviewer decisions.
type Service struct {
	storage  service.Storage
	logger   *slog.Logger
	patterns []string
}

// NewService creates a review Service. An empty pattern list uses DefaultPatterns.
func NewService(storage service.Storage, patterns []string, logger *slog.Logger) *Service {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Service{
		storage:  storage,
		patterns: patterns,
		logger:   common.ComponentLogger(logger, "review"),
	}
}

// Patterns returns the description fragments in use.
func (s *Service) Patterns() []string {
	return s.patterns
}

// Candidates returns the user's transactions that match a pattern or carry a
// review flag, newest first.
func (s *Service) Candidates(ctx context.Context, userID string) ([]model.Transaction, error) {
	txns, err := s.storage.GetReviewCandidates(ctx, userID, s.patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to load review candidates: %w", err)
	}
	return txns, nil
}

// FlipType switches a transaction between income and expense. The category and
// deductibility are cleared because they belonged to the old type.
func (s *Service) FlipType(ctx context.Context, userID, txnID string) (*model.Transaction, error) {
	before, err := s.storage.GetTransaction(ctx, userID, txnID)
	if err != nil {
		return nil, err
	}

	txn, err := s.storage.FlipTransactionType(ctx, userID, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to flip transaction type: %w", err)
	}

	s.logger.Info("Flipped transaction type",
		"transaction_id", txnID,
		"from", before.Type,
		"to", txn.Type)

	s.audit(ctx, userID, model.ActionTransactionTyped, txnID, map[string]any{
		"from":             before.Type,
		"to":               txn.Type,
		"cleared_category": before.CategoryID,
	})
	return txn, nil
}

// AcceptFlag clears the review flag and keeps the note for the record.
// Rows listed only because they match a pattern carry no flag and are rejected
// with common.ErrNotFlagged.
func (s *Service) AcceptFlag(ctx context.Context, userID, txnID string) (*model.Transaction, error) {
	current, err := s.storage.GetTransaction(ctx, userID, txnID)
	if err != nil {
		return nil, err
	}
	if !current.NeedsReview {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFlagged, txnID)
	}

	if err := s.storage.AcceptReviewFlag(ctx, userID, txnID); err != nil {
		return nil, fmt.Errorf("failed to accept review flag: %w", err)
	}

	txn, err := s.storage.GetTransaction(ctx, userID, txnID)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, model.ActionFlagAccepted, txnID, map[string]any{"note": txn.ReviewNote})
	return txn, nil
}

func (s *Service) audit(ctx context.Context, userID, action, txnID string, details map[string]any) {
	data, err := json.Marshal(details)
	if err != nil {
		data = []byte("{}")
	}
	if err := s.storage.RecordAudit(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "transaction",
		EntityID:   txnID,
		Details:    string(data),
	}); err != nil {
		s.logger.Warn("Failed to record audit log", "action", action, "error", err)
	}
}
