package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Flag likely duplicates and internal transfers",
		Long: `Send the last 90 days of transactions to the language model and flag the
duplicates and internal transfers it reports with high confidence.

Flagged transactions show up in books review.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cfg, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID, err := resolveUser(cmd, store)
			if err != nil {
				return err
			}

			client, err := newLLMClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			reconciler := reconcile.New(store, client, cfg.ReconcileWindowDays, slog.Default())
			report, err := reconciler.Reconcile(ctx, userID, time.Now())
			if err != nil {
				return err
			}

			cmd.Println(cli.RenderBox("Reconciliation", fmt.Sprintf(
				"Considered:         %d\nDuplicates flagged: %d\nTransfers flagged:  %d\nGroups skipped:     %d",
				report.Candidates, report.DuplicatesFlagged, report.TransfersFlagged, report.GroupsSkipped)))
			return nil
		},
	}
}
