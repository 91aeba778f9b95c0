package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/ofx"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX statements exported from your bank.

Re-importing a file never duplicates rows: each transaction is keyed by its
FITID.

Examples:
  # Import a single statement
  books import-ofx ~/Downloads/checking_2024_01.qfx

  # Import every statement in a directory and tie them to a linked account
  books import-ofx --account 5f0c... ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("account", "", "bank account id to attach the transactions to")
	cmd.Flags().BoolP("dry-run", "d", false, "parse and report without saving")
	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	accountID, _ := cmd.Flags().GetString("account")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Import", "Files already imported are kept; re-run to continue.")

	store, _, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	userID, err := resolveUser(cmd, store)
	if err != nil {
		return err
	}
	if accountID != "" {
		if _, err := store.GetBankAccount(ctx, userID, accountID); err != nil {
			return err
		}
	}

	parser := ofx.NewParser(slog.Default())
	var rows [][]string
	failed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(path)

		f, err := os.Open(path) // #nosec G304
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			failed++
			continue
		}

		if dryRun {
			statements, err := parser.Parse(ctx, f)
			_ = f.Close()
			if err != nil {
				slog.Error("Failed to parse OFX file", "file", path, "error", err)
				failed++
				continue
			}
			for _, s := range statements {
				rows = append(rows, []string{name, s.AccountID, s.Kind, fmt.Sprint(len(s.Transactions)), "-", "-"})
			}
			continue
		}

		result, err := parser.Import(ctx, store, userID, accountID, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to import OFX file", "file", path, "error", err)
			failed++
			continue
		}
		rows = append(rows, []string{name, strings.Join(result.Accounts, ", "), "",
			fmt.Sprint(result.Parsed), fmt.Sprint(result.Inserted), fmt.Sprint(result.Existing)})
	}

	cmd.Println(cli.RenderTable([]string{"File", "Account", "Kind", "Parsed", "New", "Existing"}, rows))
	if dryRun {
		cmd.Println(cli.FormatInfo("Dry run; nothing was saved"))
	}
	if failed > 0 {
		return fmt.Errorf("%s could not be imported", cli.Pluralize(failed, "file"))
	}
	return nil
}

// expandFiles resolves glob patterns, keeping plain paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}
