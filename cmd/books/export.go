package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a tax year to Google Sheets",
		Long: `Write every transaction in the range and the deductible totals per
Schedule C line to a Google Sheets spreadsheet.

Authenticate first with books export auth, or configure a service account.`,
		RunE: runExport,
	}

	cmd.Flags().Int("year", time.Now().Year()-1, "tax year to export")
	cmd.Flags().String("from", "", "start date (YYYY-MM-DD), overrides --year")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD), overrides --year")
	cmd.AddCommand(exportAuthCmd())
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	dateRange, err := exportRange(cmd)
	if err != nil {
		return err
	}

	store, _, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	userID, err := resolveUser(cmd, store)
	if err != nil {
		return err
	}

	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return common.NewUserError("Google Sheets is not configured; run books export auth", err)
	}
	writer, err := sheets.NewWriter(cmd.Context(), *sheetsCfg, slog.Default())
	if err != nil {
		return err
	}

	spreadsheetID, report, err := sheets.ExportRange(cmd.Context(), store, writer, userID, dateRange)
	if err != nil {
		return err
	}

	cmd.Println(cli.RenderBox("Export", fmt.Sprintf(
		"Transactions: %d\nIncome:       %s\nExpenses:     %s\nDeductible:   %s\nSpreadsheet:  https://docs.google.com/spreadsheets/d/%s",
		len(report.Transactions),
		cli.FormatAmount(report.TotalIncome),
		cli.FormatAmount(report.TotalExpenses),
		cli.FormatAmount(report.TotalDeductible),
		spreadsheetID)))
	return nil
}

func exportRange(cmd *cobra.Command) (sheets.DateRange, error) {
	year, _ := cmd.Flags().GetInt("year")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	if from == "" && to == "" {
		return sheets.TaxYear(year), nil
	}
	if from == "" || to == "" {
		return sheets.DateRange{}, fmt.Errorf("--from and --to must be given together")
	}
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return sheets.DateRange{}, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return sheets.DateRange{}, fmt.Errorf("invalid --to: %w", err)
	}
	if end.Before(start) {
		return sheets.DateRange{}, fmt.Errorf("--to is before --from")
	}
	return sheets.DateRange{Start: start, End: end.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

func exportAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Sheets access with OAuth2",
		Long: `Open the Google consent flow and print the refresh token to store as
sheets.refresh_token. Requires sheets.client_id and sheets.client_secret.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenFile, _ := cmd.Flags().GetString("token-file")
			callback, _ := cmd.Flags().GetString("callback")

			oauthCfg := sheets.OAuth2Config{
				ClientID:     viper.GetString("sheets.client_id"),
				ClientSecret: viper.GetString("sheets.client_secret"),
				TokenFile:    config.ExpandPath(tokenFile),
				CallbackAddr: callback,
			}
			if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
				return common.NewUserError("Set sheets.client_id and sheets.client_secret first", common.ErrMissingConfig)
			}

			token, err := sheets.AuthenticateOAuth2Interactive(cmd.Context(), oauthCfg)
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				return fmt.Errorf("google did not return a refresh token; revoke the app's access and retry")
			}

			cmd.Println(cli.FormatSuccess("Authorized"))
			cmd.Println(cli.FormatInfo("Add this to your config as sheets.refresh_token:"))
			cmd.Println(token.RefreshToken)
			return nil
		},
	}

	cmd.Flags().String("token-file", "~/.config/books/sheets-token.json", "where to save the full token")
	cmd.Flags().String("callback", "localhost:8085", "address for the OAuth callback listener")
	return cmd
}
