package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize [transaction-ids...]",
		Short: "Categorize transactions with the language model",
		Long: `Send uncategorized transactions (or the listed ones) to the language model in
batches and store the returned category, type and deductibility.

A batch whose model call fails is abandoned and left for the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx := interrupts.HandleInterrupts(cmd.Context(), "Categorization", "Run books categorize again to finish.")

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
			categorizer := newCategorizer(store, client, cfg)

			var summary categorize.Summary
			if len(args) > 0 {
				summary, err = categorizer.CategorizeIDs(ctx, userID, args)
			} else {
				summary, err = categorizer.CategorizeUncategorized(ctx, userID)
			}
			if err != nil && !errors.Is(err, common.ErrClassificationFailed) {
				return err
			}

			if summary.Requested == 0 {
				cmd.Println(cli.FormatSuccess("Nothing to categorize"))
				return nil
			}
			cmd.Println(cli.RenderBox(cli.RobotIcon+" Categorization", fmt.Sprintf(
				"Requested:      %d\nApplied:        %d\nType corrected: %d\nSkipped:        %d\nFailed batches: %d",
				summary.Requested, summary.Applied, summary.TypeCorrected, summary.Skipped, summary.FailedBatches)))
			return err
		},
	}
	return cmd
}
