package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/google/uuid"
)

// CreateProfile stores a new profile.
func (s *SQLiteStorage) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: profile", ErrNilParameter)
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.CreatedAt = s.timestamp()

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO profiles (id, email, business_name, created_at)
		 VALUES (:id, :email, :business_name, :created_at)`, profile)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("profile %s: %w", profile.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile returns a profile by id.
func (s *SQLiteStorage) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var profile model.Profile
	err := s.db.GetContext(ctx, &profile,
		`SELECT id, email, business_name, created_at FROM profiles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// ListProfiles returns every profile, oldest first.
func (s *SQLiteStorage) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var profiles []model.Profile
	err := s.db.SelectContext(ctx, &profiles,
		`SELECT id, email, business_name, created_at FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}
