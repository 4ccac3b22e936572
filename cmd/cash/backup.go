package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-cash-must-flow/internal/cli"
	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/storage"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database backups",
		Long: `Create, list and restore database backups.

Imports take an automatic backup first; the five most recent automatic
backups are kept.`,
		Example: `  # Back up before a cleanup
  cash backup create --tag pre-cleanup

  # List all backups
  cash backup list

  # Restore from a backup
  cash backup restore pre-cleanup`,
	}

	cmd.AddCommand(createBackupCmd())
	cmd.AddCommand(listBackupsCmd())
	cmd.AddCommand(restoreBackupCmd())

	return cmd
}

// withBackups opens storage and hands its backup manager to fn.
func withBackups(cmd *cobra.Command, fn func(*storage.BackupManager) error) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, err := store.Backups()
	if err != nil {
		return fmt.Errorf("failed to create backup manager: %w", err)
	}
	return fn(manager)
}

func createBackupCmd() *cobra.Command {
	var tag, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(cmd, func(manager *storage.BackupManager) error {
				info, err := manager.Create(cmd.Context(), tag, description)
				if errors.Is(err, storage.ErrBackupExists) {
					return common.NewUserError(fmt.Sprintf("backup %q already exists", tag), err)
				}
				if err != nil {
					return fmt.Errorf("failed to create backup: %w", err)
				}

				printf(cmd.OutOrStdout(), "%s Created backup %s (%s)\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(info.ID),
					humanize.Bytes(uint64(max(info.FileSize, 0))))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "backup name (generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description of the backup")

	return cmd
}

func listBackupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(cmd, func(manager *storage.BackupManager) error {
				backups, err := manager.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list backups: %w", err)
				}
				return render(cmd, backups, func(r *cli.Renderer) error {
					return r.Backups(backups)
				})
			})
		},
	}
	addFormatFlag(cmd)
	return cmd
}

func restoreBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore the database from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(cmd, func(manager *storage.BackupManager) error {
				err := manager.Restore(cmd.Context(), args[0])
				if errors.Is(err, storage.ErrBackupNotFound) {
					return common.NewUserError(fmt.Sprintf("backup %q not found", args[0]), err)
				}
				if err != nil {
					return fmt.Errorf("failed to restore backup: %w", err)
				}

				printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess("Restored backup "+args[0]))
				return nil
			})
		},
	}
}
