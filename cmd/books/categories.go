package main

import (
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Manage bookkeeping categories",
	}
	cmd.AddCommand(listCategoriesCmd(), addCategoryCmd())
	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List categories",
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

			categories, err := store.GetCategories(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				cmd.Println(cli.FormatInfo("No categories found"))
				return nil
			}

			rows := make([][]string, len(categories))
			for i, c := range categories {
				deductible := ""
				if c.IsDeductible {
					deductible = cli.SuccessIcon
				}
				rows[i] = []string{c.Name, string(c.Type), c.TaxCode, deductible}
			}
			cmd.Println(cli.FormatTitle("Categories"))
			cmd.Println(cli.RenderTable([]string{"Name", "Type", "Tax line", "Deductible"}, rows))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeFlag, _ := cmd.Flags().GetString("type")
			taxCode, _ := cmd.Flags().GetString("tax-code")
			deductible, _ := cmd.Flags().GetBool("deductible")

			txnType, err := model.ParseTransactionType(typeFlag)
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

			category := &model.Category{
				UserID:       userID,
				Name:         strings.TrimSpace(args[0]),
				Type:         txnType,
				TaxCode:      taxCode,
				IsDeductible: deductible && txnType == model.TypeExpense,
			}
			if err := store.CreateCategory(cmd.Context(), category); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess("Created category " + category.Name))
			return nil
		},
	}

	cmd.Flags().String("type", "expense", "income or expense")
	cmd.Flags().String("tax-code", "", "Schedule C line, e.g. 18")
	cmd.Flags().Bool("deductible", false, "expenses in this category are deductible")
	return cmd
}
