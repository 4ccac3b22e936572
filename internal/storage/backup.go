package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MaxAutoBackups is how many automatic backups are kept before the oldest are pruned.
const MaxAutoBackups = 5

// Backup errors.
var (
	ErrBackupNotFound    = errors.New("backup not found")
	ErrBackupCorrupted   = errors.New("backup integrity check failed")
	ErrBackupExists      = errors.New("backup already exists")
	ErrInvalidBackupTag  = errors.New("invalid backup tag: cannot contain path separators")
	ErrInMemoryNoBackups = errors.New("in-memory databases cannot be backed up")
)

// BackupInfo describes a database backup on disk.
type BackupInfo struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	FileSize      int64     `json:"file_size"`
	Transactions  int       `json:"transactions"`
	Categories    int       `json:"categories"`
	SchemaVersion int       `json:"schema_version"`
	IsAuto        bool      `json:"is_auto"`
}

// BackupManager snapshots and restores the database file.
type BackupManager struct {
	db         *sql.DB
	dbPath     string
	backupsDir string
	now        func() time.Time
}

// Backups returns a manager that keeps snapshots next to the database file.
func (s *SQLiteStorage) Backups() (*BackupManager, error) {
	if s.dbPath == ":memory:" {
		return nil, ErrInMemoryNoBackups
	}
	dir := filepath.Join(filepath.Dir(s.dbPath), "backups")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}
	return &BackupManager{
		db:         s.db,
		dbPath:     s.dbPath,
		backupsDir: dir,
		now:        time.Now,
	}, nil
}

func validateTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return ErrInvalidBackupTag
	}
	return nil
}

// Create snapshots the database under the given tag. An empty tag is
// generated from the current time.
func (bm *BackupManager) Create(ctx context.Context, tag, description string) (*BackupInfo, error) {
	return bm.create(ctx, tag, description, false)
}

// AutoBackup takes a backup before a risky operation and prunes old automatic ones.
func (bm *BackupManager) AutoBackup(ctx context.Context, operation string) (*BackupInfo, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, bm.now().Format("2006-01-02-150405"))
	info, err := bm.create(ctx, tag, "Automatic backup before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create auto-backup: %w", err)
	}

	if err := bm.pruneAuto(ctx); err != nil {
		slog.Warn("failed to prune old auto-backups", "error", err)
	}
	return info, nil
}

func (bm *BackupManager) create(ctx context.Context, tag, description string, auto bool) (*BackupInfo, error) {
	if tag == "" {
		tag = "backup-" + bm.now().Format("2006-01-02-150405")
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}

	backupPath := filepath.Join(bm.backupsDir, tag+".db")
	if _, err := os.Stat(backupPath); err == nil {
		return nil, ErrBackupExists
	}

	info := BackupInfo{
		ID:          tag,
		CreatedAt:   bm.now(),
		Description: description,
		IsAuto:      auto,
	}
	if err := bm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	// Counts are informational; a missing table just reads as zero.
	_ = bm.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&info.Transactions)
	_ = bm.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&info.Categories)

	if _, err := bm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	// #nosec G201 - tag is validated above and backupsDir is ours
	if _, err := bm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		slog.Debug("VACUUM INTO failed, copying file instead", "error", err)
		if copyErr := copyFile(bm.dbPath, backupPath); copyErr != nil {
			return nil, fmt.Errorf("failed to backup database: %w", copyErr)
		}
	}

	stat, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	info.FileSize = stat.Size()

	if err := bm.saveMetadata(info); err != nil {
		if rmErr := os.Remove(backupPath); rmErr != nil {
			slog.Error("failed to remove backup after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	return &info, nil
}

// List returns every backup, newest first. Unreadable metadata is skipped.
func (bm *BackupManager) List(_ context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.backupsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := bm.loadMetadata(strings.TrimSuffix(entry.Name(), ".meta.json"))
		if err != nil {
			continue
		}
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore replaces the database file with a backup. The owning storage is
// closed by this call and must be reopened afterwards.
func (bm *BackupManager) Restore(_ context.Context, id string) error {
	if err := validateTag(id); err != nil {
		return err
	}

	backupPath := filepath.Join(bm.backupsDir, id+".db")
	if _, err := os.Stat(backupPath); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to access backup: %w", err)
	}
	if err := verifyIntegrity(backupPath); err != nil {
		return errors.Join(ErrBackupCorrupted, err)
	}

	if err := bm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	safety := bm.dbPath + ".restore-backup"
	if err := copyFile(bm.dbPath, safety); err != nil {
		return fmt.Errorf("failed to backup current database: %w", err)
	}
	if err := copyFile(backupPath, bm.dbPath); err != nil {
		if restoreErr := copyFile(safety, bm.dbPath); restoreErr != nil {
			slog.Error("failed to put database back after restore failure", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	// Stale WAL files would replay over the restored snapshot.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(bm.dbPath + suffix)
	}
	if err := os.Remove(safety); err != nil {
		slog.Error("failed to remove safety copy", "error", err)
	}
	return nil
}

// Delete removes a backup and its metadata.
func (bm *BackupManager) Delete(_ context.Context, id string) error {
	if err := validateTag(id); err != nil {
		return err
	}
	backupPath := filepath.Join(bm.backupsDir, id+".db")
	if err := os.Remove(backupPath); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	if err := os.Remove(bm.metadataPath(id)); err != nil {
		slog.Debug("failed to remove backup metadata", "error", err, "id", id)
	}
	return nil
}

func (bm *BackupManager) pruneAuto(ctx context.Context) error {
	backups, err := bm.List(ctx)
	if err != nil {
		return err
	}
	autoCount := 0
	for _, b := range backups {
		if !b.IsAuto {
			continue
		}
		autoCount++
		if autoCount > MaxAutoBackups {
			if err := bm.Delete(ctx, b.ID); err != nil {
				slog.Debug("failed to delete old auto-backup", "error", err, "backup", b.ID)
			}
		}
	}
	return nil
}

func (bm *BackupManager) metadataPath(id string) string {
	return filepath.Join(bm.backupsDir, id+".meta.json")
}

func (bm *BackupManager) saveMetadata(info BackupInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	path := bm.metadataPath(info.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (bm *BackupManager) loadMetadata(id string) (*BackupInfo, error) {
	data, err := os.ReadFile(bm.metadataPath(id)) // #nosec G304 - path built from our own directory listing
	if err != nil {
		return nil, err
	}
	var info BackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp := dst + ".tmp"
	destination, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return err
	}
	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
