package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Link and list bank accounts",
	}
	cmd.AddCommand(linkTokenCmd(), linkAccountCmd(), listAccountsCmd())
	return cmd
}

func linkTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link-token",
		Short: "Create a Plaid Link token for the bank connection UI",
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
			syncer, err := newSyncer(store, cfg, nil)
			if err != nil {
				return err
			}

			token, err := syncer.CreateLinkToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
}

func linkAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <public-token>",
		Short: "Exchange a Link public token and store the accounts it grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			institution, _ := cmd.Flags().GetString("institution")

			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID, err := resolveUser(cmd, store)
			if err != nil {
				return err
			}
			syncer, err := newSyncer(store, cfg, nil)
			if err != nil {
				return err
			}

			accounts, err := syncer.LinkAccounts(cmd.Context(), userID, args[0], institution)
			if err != nil {
				return err
			}
			for _, a := range accounts {
				cmd.Println(cli.FormatSuccess(fmt.Sprintf("Linked %s (%s)", a.Name, a.ID)))
			}
			return nil
		},
	}
	cmd.Flags().String("institution", "", "institution name to show next to the accounts")
	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List linked bank accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			userID, err := resolveUser(cmd, store)
			if err != nil {
				return err
			}

			accounts, err := store.ListBankAccounts(cmd.Context(), userID, false)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				cmd.Println(cli.FormatInfo("No bank accounts linked"))
				return nil
			}

			rows := make([][]string, len(accounts))
			for i, a := range accounts {
				status := "active"
				if !a.IsActive {
					status = "inactive: " + a.LastError
				}
				synced := "never"
				if a.LastSyncedAt != nil {
					synced = a.LastSyncedAt.Local().Format(time.DateTime)
				}
				rows[i] = []string{a.ID, a.InstitutionName, a.Name, status, synced}
			}
			cmd.Println(cli.FormatTitle(cli.BankIcon + " Bank accounts"))
			cmd.Println(cli.RenderTable([]string{"ID", "Institution", "Name", "Status", "Last sync"}, rows))
			return nil
		},
	}
}
