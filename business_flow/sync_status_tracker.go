package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/omc-bdc-price-service/repository"
	"go.uber.org/zap"
)

// SyncStatusTracker persists the outcome of delivery attempts.
// Every call is a single-row update keyed by the entry id.
type SyncStatusTracker interface {
	MarkCreateOutcome(ctx context.Context, entryID uint, success bool, externalID *string, revision uint) error
	MarkUpdateOutcome(ctx context.Context, entryID uint, success bool, revision uint) error
	MarkCreateUnconfirmed(ctx context.Context, entryID uint) error
}

type SyncStatusTrackerImpl struct {
	entryRepo repository.PriceEntryRepository
	logger    *zap.Logger
}

func NewSyncStatusTracker(entryRepo repository.PriceEntryRepository, logger *zap.Logger) SyncStatusTracker {
	return &SyncStatusTrackerImpl{
		entryRepo: entryRepo,
		logger:    logger,
	}
}

// MarkCreateOutcome stores the external id on success and keeps the entry pending otherwise.
// Repeating a success with the same id is a no-op; a different id is refused.
// revision is the entry state the create carried; edits made after it stay pending for update.
func (t *SyncStatusTrackerImpl) MarkCreateOutcome(ctx context.Context, entryID uint, success bool, externalID *string, revision uint) error {
	changed, err := t.entryRepo.MarkCreateOutcome(ctx, entryID, success, externalID, revision)
	if err != nil {
		return err
	}
	if success && !changed {
		t.logger.Warn("create outcome refused",
			zap.Uint("price_entry_id", entryID),
			zap.Stringp("external_id", externalID),
		)
		return fmt.Errorf("price entry %d: %w", entryID, ErrExternalIDConflict)
	}
	return nil
}

// MarkUpdateOutcome clears the pending update flag on success unless the entry changed after revision
func (t *SyncStatusTrackerImpl) MarkUpdateOutcome(ctx context.Context, entryID uint, success bool, revision uint) error {
	changed, err := t.entryRepo.MarkUpdateOutcome(ctx, entryID, success, revision)
	if err != nil {
		return err
	}
	if success && !changed {
		t.logger.Info("entry changed during update delivery, keeping it pending",
			zap.Uint("price_entry_id", entryID),
			zap.Uint("delivered_revision", revision),
		)
	}
	return nil
}

// MarkCreateUnconfirmed holds an entry the partner may already have created so no pass repeats the create
func (t *SyncStatusTrackerImpl) MarkCreateUnconfirmed(ctx context.Context, entryID uint) error {
	changed, err := t.entryRepo.MarkCreateUnconfirmed(ctx, entryID)
	if err != nil {
		return err
	}
	if !changed {
		t.logger.Warn("unconfirmed create for an entry that already has an external id", zap.Uint("price_entry_id", entryID))
	}
	return nil
}
