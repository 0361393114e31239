package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/semmidev/ledgervault/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Notifier reports backup outcomes out of band. Delivery failures never
// affect the result.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SourceLocator maps an owner to its live database file.
type SourceLocator interface {
	SourcePath(ownerID string) string
}

// Swapper installs a restored database file over the live one. Swapping
// requires the caller to drain active connections first, so the default
// (nil) only stages the restored file and reports its path.
type Swapper interface {
	Swap(ctx context.Context, ownerID, restoredPath string) error
}

// Backup orchestrates archive building, the active storage backend, and
// owner usage accounting. One instance serves all owners; the backend is
// fixed at construction.
type Backup struct {
	backend    domain.Backend
	mode       domain.Mode
	archiver   domain.Archiver
	sources    SourceLocator
	usage      domain.UsageRecorder
	notifier   Notifier
	swapper    Swapper
	logger     Logger
	stagingDir string

	// group serializes CreateBackup per owner; concurrent calls for the
	// same owner share one result instead of racing.
	group singleflight.Group
}

func NewBackup(
	backend domain.Backend,
	mode domain.Mode,
	archiver domain.Archiver,
	sources SourceLocator,
	usage domain.UsageRecorder,
	notifier Notifier,
	swapper Swapper,
	logger Logger,
	stagingDir string,
) *Backup {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Backup{
		backend:    backend,
		mode:       mode,
		archiver:   archiver,
		sources:    sources,
		usage:      usage,
		notifier:   notifier,
		swapper:    swapper,
		logger:     logger,
		stagingDir: stagingDir,
	}
}

// Mode reports the backend choice made at startup.
func (uc *Backup) Mode() domain.Mode {
	return uc.mode
}

// CreateBackup snapshots the owner's database into the active backend.
// Every internal error is converted into a failed BackupResult; callers
// never see a raw error.
func (uc *Backup) CreateBackup(ctx context.Context, ownerID string) domain.BackupResult {
	v, _, _ := uc.group.Do(ownerID, func() (interface{}, error) {
		return uc.createBackup(ctx, ownerID), nil
	})
	return v.(domain.BackupResult)
}

func (uc *Backup) createBackup(ctx context.Context, ownerID string) domain.BackupResult {
	start := time.Now()

	sourcePath := uc.sources.SourcePath(ownerID)
	if _, err := os.Stat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return uc.fail(ctx, ownerID, fmt.Errorf("%w: %s", domain.ErrSourceMissing, sourcePath))
		}
		return uc.fail(ctx, ownerID, fmt.Errorf("stat source database: %w", err))
	}

	// A fresh staging directory per call keeps the generated filename as
	// the final path component and isolates concurrent owners.
	stagingDir, err := os.MkdirTemp(uc.stagingDir, "backup-")
	if err != nil {
		return uc.fail(ctx, ownerID, fmt.Errorf("create staging directory: %w", err))
	}
	defer os.RemoveAll(stagingDir)

	filename := domain.ArchiveFilename(time.Now())
	stagingPath := filepath.Join(stagingDir, filename)

	uc.logger.Infof("[%s] Building archive %s", ownerID, filename)
	if err := uc.archiver.Build(sourcePath, stagingPath); err != nil {
		return uc.fail(ctx, ownerID, fmt.Errorf("build archive: %w", err))
	}

	storedID, size, err := uc.backend.Put(ctx, ownerID, stagingPath)
	if err != nil {
		return uc.fail(ctx, ownerID, fmt.Errorf("store archive: %w", err))
	}

	// Recorded usage is the latest backup's size, not a running total.
	if err := uc.usage.SetOwnerStorageUsage(ownerID, size); err != nil {
		return uc.fail(ctx, ownerID, fmt.Errorf("record storage usage: %w", err))
	}

	uc.logger.Infof("[%s] Backup %s stored in %s mode (%d bytes) in %s",
		ownerID, storedID, uc.mode, size, time.Since(start).Round(time.Millisecond))
	uc.notify(ctx, fmt.Sprintf("Backup created for %s: %s (%d bytes)", ownerID, storedID, size))

	return domain.BackupResult{
		Success: true,
		Size:    size,
		Message: fmt.Sprintf("backup %s created", storedID),
	}
}

func (uc *Backup) fail(ctx context.Context, ownerID string, err error) domain.BackupResult {
	uc.logger.Errorf("[%s] Backup failed: %v", ownerID, err)

	message := err.Error()
	var provErr *domain.ProvisioningError
	if errors.As(err, &provErr) {
		message = fmt.Sprintf("remote storage misconfigured: %v", provErr)
	}

	uc.notify(ctx, fmt.Sprintf("Backup failed for %s: %s", ownerID, message))
	return domain.BackupResult{Success: false, Size: 0, Message: message}
}

// ListBackups is a best-effort read path: backend failures degrade to an
// empty list and a warning instead of an error.
func (uc *Backup) ListBackups(ctx context.Context, ownerID string) []domain.BackupRecord {
	records, err := uc.backend.List(ctx, ownerID)
	if err != nil {
		uc.logger.Warnf("[%s] Listing backups failed: %v", ownerID, err)
		return []domain.BackupRecord{}
	}
	return records
}

// RestoreBackup resolves the named backup to a local archive, extracts it
// next to the staging area, and hands the result to the swapper. It never
// returns an error; failures are logged.
func (uc *Backup) RestoreBackup(ctx context.Context, ownerID, backupID string) bool {
	archivePath, cleanup, err := uc.backend.Get(ctx, ownerID, backupID)
	if err != nil {
		uc.logger.Errorf("[%s] Restore of %s failed: %v", ownerID, backupID, err)
		return false
	}
	defer cleanup()

	restoredPath := filepath.Join(uc.stagingDir, ownerID+"_restore.db")
	if err := uc.archiver.Extract(archivePath, restoredPath); err != nil {
		uc.logger.Errorf("[%s] Extracting %s failed: %v", ownerID, backupID, err)
		return false
	}

	if uc.swapper == nil {
		uc.logger.Infof("[%s] Restored %s staged at %s; live swap left to the caller",
			ownerID, backupID, restoredPath)
		return true
	}

	if err := uc.swapper.Swap(ctx, ownerID, restoredPath); err != nil {
		uc.logger.Errorf("[%s] Swapping in %s failed: %v", ownerID, backupID, err)
		return false
	}

	uc.logger.Infof("[%s] Restore of %s completed", ownerID, backupID)
	return true
}

func (uc *Backup) notify(ctx context.Context, message string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, message); err != nil {
		uc.logger.Warnf("Notification failed: %v", err)
	}
}
