package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/retention"
	"github.com/spf13/cobra"
)

func retentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Archive and delete transactions past the retention period",
		Long: `Find transactions older than the retention period (seven years by
default), write them to the retention.bucket Cloud Storage bucket and delete
them from the database. Nothing is deleted unless the archive write succeeds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			yes, _ := cmd.Flags().GetBool("yes")
			ctx := cmd.Context()

			store, cfg, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var archiver retention.Archiver
			if !dryRun {
				if cfg.RetentionBucket == "" {
					return common.NewUserError("retention.bucket is not set", common.ErrMissingConfig)
				}
				if !yes {
					ok, err := cli.Confirm(ctx, cli.NewNonBlockingReader(os.Stdin), cmd.OutOrStdout(),
						fmt.Sprintf("Archive to gs://%s and delete transactions older than %d years?", cfg.RetentionBucket, cfg.RetentionYears))
					if err != nil {
						return err
					}
					if !ok {
						cmd.Println(cli.FormatInfo("Aborted"))
						return nil
					}
				}

				gcs, err := retention.NewGCSArchiver(ctx, cfg.RetentionBucket)
				if err != nil {
					return err
				}
				defer func() { _ = gcs.Close() }()
				archiver = gcs
			}

			purger := retention.NewPurger(store, archiver, cfg.RetentionYears, slog.Default())
			result, err := purger.Run(ctx, time.Now(), dryRun)
			if err != nil {
				return err
			}

			if result.DryRun {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("%s dated before %s would be archived and deleted",
					cli.Pluralize(result.Archived, "transaction"), result.Cutoff.Format(time.DateOnly))))
				return nil
			}
			if result.Archived == 0 {
				cmd.Println(cli.FormatSuccess("Nothing past the retention period"))
				return nil
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Archived %s to %s and deleted %d",
				cli.Pluralize(result.Archived, "transaction"), result.ArchiveURI, result.Deleted)))
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "only report what would be purged")
	cmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	return cmd
}
