package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on start as well; this one only migrates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			slog.Info("Database is up to date", "database", cfg.DatabasePath)
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Database ready at %s", cfg.DatabasePath)))
			return nil
		},
	}
}
