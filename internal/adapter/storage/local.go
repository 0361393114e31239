package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/ledgervault/internal/domain"
)

// LocalBackend stores archives under <root>/<ownerID>/<filename>. It is
// the fallback backend when no object store is configured.
type LocalBackend struct {
	root string
}

func NewLocal(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup root: %w", err)
	}
	return &LocalBackend{root: root}, nil
}

// validateID rejects stored names that could escape the owner directory.
func validateID(storedID string) error {
	if storedID == "" ||
		strings.ContainsAny(storedID, `/\`) ||
		storedID != filepath.Base(storedID) ||
		storedID == "." || storedID == ".." {
		return fmt.Errorf("invalid backup name %q", storedID)
	}
	return nil
}

func (l *LocalBackend) ownerDir(ownerID string) (string, error) {
	if err := validateID(ownerID); err != nil {
		return "", fmt.Errorf("invalid owner id %q", ownerID)
	}
	return filepath.Join(l.root, ownerID), nil
}

// Put moves the staged archive into the owner's directory, keeping its
// generated filename. Rename is tried first; a copy-then-remove fallback
// covers staging directories on another filesystem.
func (l *LocalBackend) Put(ctx context.Context, ownerID, archivePath string) (string, int64, error) {
	dir, err := l.ownerDir(ownerID)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create owner directory: %w", err)
	}

	name := filepath.Base(archivePath)
	if err := validateID(name); err != nil {
		return "", 0, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	size := info.Size()

	destPath := filepath.Join(dir, name)
	if err := os.Rename(archivePath, destPath); err != nil {
		if err := copyFile(archivePath, destPath); err != nil {
			return "", 0, fmt.Errorf("failed to move archive: %w", err)
		}
		os.Remove(archivePath)
	}

	return name, size, nil
}

// List enumerates the owner's archives sorted by modification time
// descending. A missing owner directory means no backups yet.
func (l *LocalBackend) List(ctx context.Context, ownerID string) ([]domain.BackupRecord, error) {
	dir, err := l.ownerDir(ownerID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.BackupRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read owner directory: %w", err)
	}

	records := make([]domain.BackupRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		records = append(records, domain.BackupRecord{
			ID:        entry.Name(),
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Get resolves the stored archive to its on-disk path. The cleanup func is
// a no-op; the file is the canonical copy, not a temporary one.
func (l *LocalBackend) Get(ctx context.Context, ownerID, storedID string) (string, func(), error) {
	dir, err := l.ownerDir(ownerID)
	if err != nil {
		return "", nil, err
	}
	if err := validateID(storedID); err != nil {
		return "", nil, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, storedID)
	}

	path := filepath.Join(dir, storedID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, storedID)
		}
		return "", nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	return path, func() {}, nil
}

// Delete removes the stored archive from the owner's directory.
func (l *LocalBackend) Delete(ctx context.Context, ownerID, storedID string) error {
	dir, err := l.ownerDir(ownerID)
	if err != nil {
		return err
	}
	if err := validateID(storedID); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrBackupNotFound, storedID)
	}

	if err := os.Remove(filepath.Join(dir, storedID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrBackupNotFound, storedID)
		}
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

func copyFile(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to copy: %w", err)
	}
	return dest.Close()
}
