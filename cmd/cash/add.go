package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

func addCmd() *cobra.Command {
	var (
		date        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add <income|expense> <amount> <category>",
		Short: "Record a transaction",
		Example: `  cash add expense 1200 Rent --description "April rent"
  cash add income 5000.50 Sales --date 2024-03-31`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			txn, err := parseTransaction(args, date, description)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			_, err = store.GetCategoryByName(ctx, userID(), txn.Category, txn.Type)
			switch {
			case errors.Is(err, common.ErrNotFound):
				slog.Warn("Category does not exist yet; add it with 'cash categories add' for icons",
					"category", txn.Category, "type", txn.Type)
			case err != nil:
				slog.Debug("category lookup failed", "category", txn.Category, "error", err)
			}

			if _, err := store.SaveTransactions(ctx, userID(), []model.Transaction{txn}); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf("Recorded %s of %s in %s on %s (id %s)",
				txn.Type, currency.Format(currencySymbol(), txn.Amount), txn.Category, txn.Date, txn.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "transaction date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&description, "description", "", "free-text description")

	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a recorded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn, err := store.GetTransactionByID(ctx, userID(), args[0])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("transaction %s not found", args[0]), err)
			}
			if err != nil {
				return fmt.Errorf("failed to look up transaction: %w", err)
			}
			if err := store.DeleteTransaction(ctx, userID(), txn.ID); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}

			printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf("Deleted %s of %s in %s on %s",
				txn.Type, currency.Format(currencySymbol(), txn.Amount), txn.Category, txn.Date)))
			return nil
		},
	}
}

// parseTransaction builds a transaction from `cash add` arguments.
func parseTransaction(args []string, date, description string) (model.Transaction, error) {
	typ, err := model.ParseTransactionType(strings.ToLower(args[0]))
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	if !amount.IsPositive() {
		return model.Transaction{}, fmt.Errorf("amount must be positive, got %s", amount)
	}

	category := strings.TrimSpace(args[2])
	if category == "" {
		return model.Transaction{}, fmt.Errorf("category is required")
	}

	day := today()
	if date != "" {
		day, err = civil.ParseDate(date)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
		}
	}

	return model.Transaction{
		ID:          uuid.NewString(),
		Date:        day,
		Type:        typ,
		Category:    category,
		Description: strings.TrimSpace(description),
		Amount:      amount.Round(2).InexactFloat64(),
	}, nil
}
