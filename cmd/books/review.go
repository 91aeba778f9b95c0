package main

import (
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/review"
	"github.com/Veraticus/the-books-must-balance/internal/tui"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review flagged and ambiguous transactions",
		Long: `Open an interactive list of transactions that match the review patterns
(venmo, transfer, payment by default) or were flagged by reconciliation.

Press t to flip a transaction between income and expense, a to accept a flag
and q to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID, err := resolveUser(cmd, store)
			if err != nil {
				return err
			}

			svc := review.NewService(store, cfg.ReviewPatterns, slog.Default())
			return tui.Run(cmd.Context(), svc, userID)
		},
	}
}
