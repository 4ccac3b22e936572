package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage income and expense categories",
		Long:  `List, add and delete the categories used to group transactions. Icons show up in weekly summaries.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx, userID())
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			return render(cmd, categories, func(r *cli.Renderer) error {
				return r.Categories(categories)
			})
		},
	}
	addFormatFlag(cmd)
	return cmd
}

func addCategoryCmd() *cobra.Command {
	var (
		typ  string
		icon string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Example: `  cash categories add Rent --type expense --icon 🏠
  cash categories add Sales --type income --icon 💰`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			catType, err := model.ParseTransactionType(strings.ToLower(typ))
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.CreateCategory(ctx, userID(), args[0], catType, icon)
			if errors.Is(err, common.ErrDuplicateEntry) {
				return common.NewUserError(fmt.Sprintf("category %q already exists", args[0]), err)
			}
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf("Created %s category %q (ID %d)",
				category.Type, category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(model.TransactionTypeExpense), "category type (income, expense)")
	cmd.Flags().StringVarP(&icon, "icon", "i", "", "icon shown next to the category")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long:  `Delete a category by ID. Existing transactions keep their category name.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid category ID %q: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteCategory(ctx, userID(), id); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("category %d not found", id), err)
				}
				return fmt.Errorf("failed to delete category: %w", err)
			}

			printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf("Deleted category %d", id)))
			return nil
		},
	}
}
