package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/spf13/cobra"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage the business profiles that own the books",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a profile and seed its default categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			business, _ := cmd.Flags().GetString("business")

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			profile := &model.Profile{Email: email, BusinessName: business}
			if err := store.CreateProfile(cmd.Context(), profile); err != nil {
				return err
			}
			if err := store.SeedDefaultCategories(cmd.Context(), profile.ID); err != nil {
				return fmt.Errorf("failed to seed categories: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Created profile %s", profile.ID)))
			return nil
		},
	}
	create.Flags().String("email", "", "owner email address")
	create.Flags().String("business", "", "business name")
	_ = create.MarkFlagRequired("email")

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			profiles, err := store.ListProfiles(cmd.Context())
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				cmd.Println(cli.FormatInfo("No profiles yet"))
				return nil
			}

			rows := make([][]string, len(profiles))
			for i, p := range profiles {
				rows[i] = []string{p.ID, p.Email, p.BusinessName, p.CreatedAt.Format(time.DateOnly)}
			}
			cmd.Println(cli.RenderTable([]string{"ID", "Email", "Business", "Created"}, rows))
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
