package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/bankfeed"
	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/llm"
	"github.com/Veraticus/the-books-must-balance/internal/plaid"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/Veraticus/the-books-must-balance/internal/vault"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initStorage loads the app settings and opens the migrated database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, *config.App, error) {
	cfg, err := config.LoadApp(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// resolveUser returns the --user flag, or the only profile when there is exactly one.
func resolveUser(cmd *cobra.Command, store *storage.SQLiteStorage) (string, error) {
	if userID, _ := cmd.Flags().GetString("user"); userID != "" {
		if _, err := store.GetProfile(cmd.Context(), userID); err != nil {
			return "", common.NewUserError(fmt.Sprintf("Unknown profile %q", userID), err)
		}
		return userID, nil
	}

	profiles, err := store.ListProfiles(cmd.Context())
	if err != nil {
		return "", err
	}
	switch len(profiles) {
	case 0:
		return "", common.NewUserError("No profile yet; create one with: books profiles create --email you@example.com", nil)
	case 1:
		return profiles[0].ID, nil
	default:
		return "", common.NewUserError("Several profiles exist; pick one with --user", nil)
	}
}

func openVault(cfg *config.App) (*vault.Vault, error) {
	if cfg.VaultKey == "" {
		return nil, common.NewUserError("vault.key is not set; generate one with: books vault keygen", common.ErrMissingConfig)
	}
	return vault.New(cfg.VaultKey)
}

func newLLMClient(ctx context.Context) (*llm.RateLimitedClient, error) {
	llmCfg, err := config.LoadLLMConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return llm.NewClient(ctx, llmCfg)
}

func newCategorizer(store *storage.SQLiteStorage, client llm.Client, cfg *config.App) *categorize.Categorizer {
	return categorize.New(store, client, cfg.CategorizeBatchSize, slog.Default())
}

// newSyncer wires the Plaid client and vault. categorizer may be nil.
func newSyncer(store *storage.SQLiteStorage, cfg *config.App, categorizer *categorize.Categorizer) (*bankfeed.Syncer, error) {
	plaidCfg, err := config.LoadPlaidConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	provider, err := plaid.NewClient(plaidCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Plaid client: %w", err)
	}
	v, err := openVault(cfg)
	if err != nil {
		return nil, err
	}

	var c bankfeed.Categorizer
	if categorizer != nil {
		c = categorizer
	}
	return bankfeed.NewSyncer(store, provider, v, c, bankfeed.Config{
		LookbackMonths: cfg.LookbackMonths,
		MinInterval:    cfg.SyncMinInterval,
	}, slog.Default()), nil
}
