package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/bankfeed"
	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new transactions from linked bank accounts",
		Long: `Pull the last twelve months of transactions for every active linked account,
skip the ones already stored and categorize the rest.

Accounts synced within the last hour are skipped unless --force is given. An
account whose provider call fails is deactivated and must be linked again.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("force", false, "sync accounts even if they were synced recently")
	cmd.Flags().String("account", "", "sync only this bank account id")
	cmd.Flags().Bool("no-categorize", false, "leave new transactions uncategorized")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	accountID, _ := cmd.Flags().GetString("account")
	noCategorize, _ := cmd.Flags().GetBool("no-categorize")

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Sync", "Run books sync again to pick up the remaining accounts.")

	store, cfg, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	userID, err := resolveUser(cmd, store)
	if err != nil {
		return err
	}

	var categorizer *categorize.Categorizer
	if !noCategorize {
		client, err := newLLMClient(ctx)
		if err != nil {
			slog.Warn("Language model not configured; new transactions stay uncategorized", "error", err)
		} else {
			defer client.Close()
			categorizer = newCategorizer(store, client, cfg)
		}
	}

	syncer, err := newSyncer(store, cfg, categorizer)
	if err != nil {
		return err
	}

	accounts, err := store.ListBankAccounts(ctx, userID, true)
	if err != nil {
		return err
	}
	if accountID != "" {
		account, err := store.GetBankAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		accounts = accounts[:0]
		accounts = append(accounts, *account)
	}
	if len(accounts) == 0 {
		cmd.Println(cli.FormatInfo("No active bank accounts; link one with: books accounts link"))
		return nil
	}

	bar := progressbar.NewOptions(len(accounts),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Syncing accounts"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var (
		results []bankfeed.Result
		errs    []error
	)
	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		bar.Describe(account.Name)
		result, err := syncer.SyncAccount(ctx, account, bankfeed.Options{Force: force})
		if err != nil {
			errs = append(errs, err)
		}
		results = append(results, result)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	rows := make([][]string, len(results))
	for i, r := range results {
		status := fmt.Sprintf("%d new", r.Inserted)
		if r.Skipped {
			status = "skipped (synced recently)"
		}
		rows[i] = []string{r.AccountName, status, fmt.Sprint(r.Existing), fmt.Sprint(r.Categorized)}
	}
	cmd.Println(cli.RenderTable([]string{"Account", "Status", "Existing", "Categorized"}, rows))

	for _, err := range errs {
		cmd.PrintErrln(cli.FormatError(err.Error()))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s failed to sync: %w", cli.Pluralize(len(errs), "account"), errors.Join(errs...))
	}
	return nil
}
