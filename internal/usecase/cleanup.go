package usecase

import (
	"context"
	"time"

	"github.com/semmidev/ledgervault/internal/domain"
)

// OwnerLister enumerates the owners known to this deployment.
type OwnerLister interface {
	Owners() ([]string, error)
}

// Cleanup prunes backups older than the retention window for every owner.
// It is best-effort: individual failures are logged and skipped so one
// owner's broken state never blocks the rest.
type Cleanup struct {
	backend       domain.Backend
	owners        OwnerLister
	logger        Logger
	retentionDays int
}

func NewCleanup(
	backend domain.Backend,
	owners OwnerLister,
	logger Logger,
	retentionDays int,
) *Cleanup {
	return &Cleanup{
		backend:       backend,
		owners:        owners,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	uc.logger.Infof("Starting cleanup, retention: %d days", uc.retentionDays)

	cutoff := time.Now().AddDate(0, 0, -uc.retentionDays)

	owners, err := uc.owners.Owners()
	if err != nil {
		uc.logger.Errorf("Cleanup could not enumerate owners: %v", err)
		return nil
	}

	deleted := 0
	for _, ownerID := range owners {
		deleted += uc.cleanupOwner(ctx, ownerID, cutoff)
	}

	uc.logger.Infof("Cleanup completed, deleted %d old backup(s)", deleted)
	return nil
}

func (uc *Cleanup) cleanupOwner(ctx context.Context, ownerID string, cutoff time.Time) int {
	records, err := uc.backend.List(ctx, ownerID)
	if err != nil {
		uc.logger.Errorf("[%s] Cleanup listing failed: %v", ownerID, err)
		return 0
	}

	deleted := 0
	for _, record := range records {
		if !record.CreatedAt.Before(cutoff) {
			continue
		}

		uc.logger.Infof("[%s] Deleting old backup: %s", ownerID, record.ID)
		if err := uc.backend.Delete(ctx, ownerID, record.ID); err != nil {
			uc.logger.Errorf("[%s] Failed to delete %s: %v", ownerID, record.ID, err)
			continue
		}
		deleted++
	}

	return deleted
}
