package bankfeed

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// CreateLinkToken starts the provider's account-linking flow for a user.
func (s *Syncer) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	token, err := s.provider.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to create link token: %w", err)
	}
	return token, nil
}

// LinkAccounts finishes the linking flow: it exchanges the public token, seals
// the access token and creates one bank account per provider account.
func (s *Syncer) LinkAccounts(ctx context.Context, userID, publicToken, institutionName string) ([]model.BankAccount, error) {
	if userID == "" || publicToken == "" {
		return nil, fmt.Errorf("user ID and public token are required")
	}

	accessToken, itemID, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	sealed, err := s.vault.Seal(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	ref, err := s.storage.SaveCredential(ctx, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	providerAccounts, err := s.provider.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider accounts: %w", err)
	}

	linked := make([]model.BankAccount, 0, len(providerAccounts))
	for _, pa := range providerAccounts {
		name := pa.Name
		if pa.Mask != "" {
			name = fmt.Sprintf("%s (%s)", pa.Name, pa.Mask)
		}
		account := model.BankAccount{
			UserID:            userID,
			ProviderItemID:    itemID,
			ProviderAccountID: pa.ID,
			InstitutionName:   institutionName,
			Name:              name,
			CredentialsRef:    ref,
		}
		if err := s.storage.CreateBankAccount(ctx, &account); err != nil {
			return linked, fmt.Errorf("failed to create bank account %s: %w", pa.ID, err)
		}
		s.audit(ctx, userID, model.ActionAccountLinked, account.ID, map[string]string{
			"institution":         institutionName,
			"provider_account_id": pa.ID,
		})
		linked = append(linked, account)
	}

	s.logger.Info("Linked bank accounts",
		"user_id", userID,
		"item_id", itemID,
		"accounts", len(linked))

	return linked, nil
}
