package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/google/uuid"
)

// RecordAudit appends an entry to the audit log.
func (s *SQLiteStorage) RecordAudit(ctx context.Context, entry *model.AuditLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: audit entry", ErrNilParameter)
	}
	if err := validateString(entry.Action, "action"); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	entry.CreatedAt = s.timestamp()

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, created_at)
		 VALUES (:id, :user_id, :action, :entity_type, :entity_id, :details, :created_at)`, entry)
	if err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the user's most recent audit entries, newest first.
func (s *SQLiteStorage) ListAuditLogs(ctx context.Context, userID string, limit int) ([]model.AuditLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	var entries []model.AuditLog
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, user_id, action, entity_type, entity_id, details, created_at
		 FROM audit_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, nil
}
