package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/ofx"
	"github.com/Veraticus/the-cash-must-flow/internal/storage"
)

func importOFXCmd() *cobra.Command {
	var (
		dryRun          bool
		noBackup        bool
		incomeCategory  string
		expenseCategory string
	)

	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import income and expenses from OFX or QFX (Quicken) files exported from your bank.

Credits become income and debits become expenses. Rows already imported are
skipped. A database backup is taken first unless --no-backup is given.`,
		Example: `  # Import single file
  cash import-ofx ~/Downloads/checking_jan_2024.qfx

  # Import all QFX files in a directory
  cash import-ofx ~/Downloads/*.qfx

  # Preview without saving
  cash import-ofx --dry-run ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			slog.Info("Importing OFX files", "file_count", len(files), "dry_run", dryRun)

			parser := ofx.NewParser(
				ofx.WithCategories(incomeCategory, expenseCategory),
				ofx.WithLogger(slog.Default()),
			)
			txns, perFile := parseFiles(ctx, parser, files)
			if len(txns) == 0 {
				slog.Warn("No transactions found in any file")
				return nil
			}

			out := cmd.OutOrStdout()
			printImportSummary(out, txns, perFile)

			if dryRun {
				printf(out, "%s\n", cli.FormatInfo("Dry run complete - no data saved"))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if !noBackup {
				backupBeforeImport(ctx, store)
			}

			inserted, err := store.SaveTransactions(ctx, userID(), txns)
			if err != nil {
				return fmt.Errorf("failed to save transactions: %w", err)
			}

			printf(out, "%s\n", cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d already present)",
				inserted, len(txns)-inserted)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "preview import without saving")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the automatic database backup")
	cmd.Flags().StringVar(&incomeCategory, "income-category", ofx.DefaultIncomeCategory, "category for imported credits")
	cmd.Flags().StringVar(&expenseCategory, "expense-category", ofx.DefaultExpenseCategory, "category for imported debits")

	return cmd
}

// expandFiles resolves glob patterns and plain paths to a file list.
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

// parseFiles parses every file, dropping rows repeated across files.
// Files that fail to open or parse are logged and skipped.
func parseFiles(ctx context.Context, parser *ofx.Parser, files []string) ([]model.Transaction, map[string]int) {
	var all []model.Transaction
	seen := make(map[string]bool)
	perFile := make(map[string]int)

	for _, path := range files {
		name := filepath.Base(path)
		slog.Debug("Processing file", "file", name)

		f, err := os.Open(path) //nolint:gosec // user-supplied import path
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}
		txns, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		added := 0
		for _, txn := range txns {
			hash := txn.GenerateHash()
			if seen[hash] {
				continue
			}
			seen[hash] = true
			all = append(all, txn)
			added++
		}
		perFile[name] = added

		slog.Info("Processed file",
			"file", name,
			"transactions_found", len(txns),
			"added", added,
			"duplicates", len(txns)-added)
	}

	return all, perFile
}

func printImportSummary(w io.Writer, txns []model.Transaction, perFile map[string]int) {
	names := make([]string, 0, len(perFile))
	for name := range perFile {
		names = append(names, name)
	}
	sort.Strings(names)

	printf(w, "\n%s File import summary:\n", cli.FolderIcon)
	for _, name := range names {
		printf(w, "  - %s: %d transactions\n", name, perFile[name])
	}

	oldest, newest := txns[0].Date, txns[0].Date
	var income, expense float64
	for _, t := range txns {
		if t.Date.Before(oldest) {
			oldest = t.Date
		}
		if t.Date.After(newest) {
			newest = t.Date
		}
		if t.Type == model.TransactionTypeIncome {
			income += t.Amount
		} else {
			expense += t.Amount
		}
	}

	symbol := currencySymbol()
	printf(w, "\n%s Date range: %s to %s (%d days)\n", cli.CalendarIcon, oldest, newest, newest.DaysSince(oldest))
	printf(w, "%s Income: %s  Expenses: %s\n\n",
		cli.CashIcon,
		cli.IncomeStyle.Render(currency.Format(symbol, currency.Round(income))),
		cli.ExpenseStyle.Render(currency.Format(symbol, currency.Round(expense))))
}

// backupBeforeImport takes an automatic backup; failures only warn.
func backupBeforeImport(ctx context.Context, store *storage.SQLiteStorage) {
	manager, err := store.Backups()
	if err != nil {
		if !errors.Is(err, storage.ErrInMemoryNoBackups) {
			slog.Warn("Could not create backup manager", "error", err)
		}
		return
	}
	info, err := manager.AutoBackup(ctx, "import-ofx")
	if err != nil {
		slog.Warn("Automatic backup failed", "error", err)
		return
	}
	slog.Info("Created backup before import", "id", info.ID)
}
