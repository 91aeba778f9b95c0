package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// DefaultYears is how long transactions are kept.
const DefaultYears = 7

// Result reports a purge.
type Result struct {
	Cutoff     time.Time `json:"cutoff"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	Archived   int       `json:"archived"`
	Deleted    int64     `json:"deleted"`
	DryRun     bool      `json:"dry_run"`
}

// archive is the document written for each run.
type archive struct {
	CreatedAt    time.Time           `json:"created_at"`
	Cutoff       time.Time           `json:"cutoff"`
	Transactions []model.Transaction `json:"transactions"`
}

// Purger moves expired transactions into the archive.
type Purger struct {
	storage  service.Storage
	archiver Archiver
	logger   *slog.Logger
	years    int
}

// NewPurger creates a Purger. A non-positive years falls back to DefaultYears.
func NewPurger(storage service.Storage, archiver Archiver, years int, logger *slog.Logger) *Purger {
	if years <= 0 {
		years = DefaultYears
	}
	return &Purger{
		storage:  storage,
		archiver: archiver,
		years:    years,
		logger:   common.ComponentLogger(logger, "retention"),
	}
}

// Cutoff returns the oldest date that is still retained at now.
func (p *Purger) Cutoff(now time.Time) time.Time {
	y, m, d := now.UTC().AddDate(-p.years, 0, 0).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Run archives every transaction dated before the cutoff and deletes it once
// the archive is stored. Nothing is deleted if archiving fails.
func (p *Purger) Run(ctx context.Context, now time.Time, dryRun bool) (Result, error) {
	result := Result{Cutoff: p.Cutoff(now), DryRun: dryRun}

	txns, err := p.storage.TransactionsBefore(ctx, result.Cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to load expired transactions: %w", err)
	}
	result.Archived = len(txns)
	if len(txns) == 0 || dryRun {
		p.logger.Info("Retention check complete",
			"cutoff", result.Cutoff.Format(time.DateOnly),
			"expired", len(txns),
			"dry_run", dryRun)
		return result, nil
	}

	data, err := json.Marshal(archive{CreatedAt: now.UTC(), Cutoff: result.Cutoff, Transactions: txns})
	if err != nil {
		return result, fmt.Errorf("failed to encode archive: %w", err)
	}

	objectName := fmt.Sprintf("retention/transactions-before-%s-%d.json",
		result.Cutoff.Format(time.DateOnly), now.Unix())
	uri, err := p.archiver.Archive(ctx, objectName, data)
	if err != nil {
		result.Archived = 0
		return result, fmt.Errorf("failed to archive transactions: %w", err)
	}
	result.ArchiveURI = uri

	ids := make([]string, len(txns))
	perUser := make(map[string]int)
	for i, txn := range txns {
		ids[i] = txn.ID
		perUser[txn.UserID]++
	}

	deleted, err := p.storage.DeleteTransactions(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("archived to %s but failed to delete: %w", uri, err)
	}
	result.Deleted = deleted

	for userID, count := range perUser {
		details, err := json.Marshal(map[string]any{
			"archive_uri": uri,
			"cutoff":      result.Cutoff.Format(time.DateOnly),
			"count":       count,
		})
		if err != nil {
			details = []byte("{}")
		}
		if err := p.storage.RecordAudit(ctx, &model.AuditLog{
			UserID:     userID,
			Action:     model.ActionRetentionPurge,
			EntityType: "transaction",
			Details:    string(details),
		}); err != nil {
			p.logger.Warn("Failed to record audit log", "user_id", userID, "error", err)
		}
	}

	p.logger.Info("Retention purge complete",
		"cutoff", result.Cutoff.Format(time.DateOnly),
		"archived", result.Archived,
		"deleted", result.Deleted,
		"archive", uri)

	return result, nil
}
