package main

import (
	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/vault"
	"github.com/spf13/cobra"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the key that encrypts bank credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "keygen",
		Short: "Generate a new vault key",
		Long: `Generate a random key for encrypting bank access tokens.

Store it as vault.key in the config file or in BOOKS_VAULT_KEY. Changing the
key makes previously linked accounts unreadable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := vault.GenerateKey()
			if err != nil {
				return err
			}
			cmd.Println(key)
			cmd.PrintErrln(cli.FormatInfo("Set this as vault.key or BOOKS_VAULT_KEY."))
			return nil
		},
	})

	return cmd
}
