package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"go.uber.org/zap"
)

// SyncAction is the partner call an entry needs next
type SyncAction string

const (
	SyncActionNone   SyncAction = "none"
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
)

// NextSyncAction routes an entry: no external id means create, never update.
// An entry held after an unconfirmed create needs no call until it is resolved.
func NextSyncAction(entry *models.PriceEntry) SyncAction {
	switch {
	case entry == nil:
		return SyncActionNone
	case entry.ExternalID == nil || *entry.ExternalID == "":
		if entry.CreateUnconfirmed {
			return SyncActionNone
		}
		return SyncActionCreate
	case entry.UpdateSyncStatus:
		return SyncActionUpdate
	}
	return SyncActionNone
}

// SyncOutcome describes one delivery attempt.
// Err carries a partner or payload failure; such failures are recorded, not returned.
// Unconfirmed is set when the partner accepted a create without an id.
type SyncOutcome struct {
	EntryID     uint
	SellerType  models.SellerType
	Action      SyncAction
	Delivered   bool
	Unconfirmed bool
	ExternalID  string
	Err         error
}

// SyncFlow drives one entry through the delivery client and the status tracker
type SyncFlow interface {
	SyncEntry(ctx context.Context, entryID uint) (*SyncOutcome, error)
}

type SyncFlowImpl struct {
	entryRepo repository.PriceEntryRepository
	logRepo   repository.SyncLogRepository
	tracker   SyncStatusTracker
	client    services.DeliveryClient
	companies CompanyConfigLookup
	locker    EntryLocker
	logger    *zap.Logger
}

func NewSyncFlow(
	entryRepo repository.PriceEntryRepository,
	logRepo repository.SyncLogRepository,
	tracker SyncStatusTracker,
	client services.DeliveryClient,
	companies CompanyConfigLookup,
	locker EntryLocker,
	logger *zap.Logger,
) SyncFlow {
	return &SyncFlowImpl{
		entryRepo: entryRepo,
		logRepo:   logRepo,
		tracker:   tracker,
		client:    client,
		companies: companies,
		locker:    locker,
		logger:    logger,
	}
}

// SyncEntry claims the entry, re-reads it and performs the call its state requires.
// It returns ErrEntryLocked when another worker holds the claim and an error only for
// storage failures.
func (f *SyncFlowImpl) SyncEntry(ctx context.Context, entryID uint) (*SyncOutcome, error) {
	release, ok, err := f.locker.TryLock(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEntryLocked
	}
	defer release()

	entry, err := f.entryRepo.ByIDWithDetails(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrPriceEntryNotFound
	}

	outcome := &SyncOutcome{
		EntryID:    entry.ID,
		SellerType: entry.SellerType,
		Action:     NextSyncAction(entry),
	}
	if outcome.Action == SyncActionNone {
		return outcome, nil
	}

	record, err := BuildSyncRecord(entry)
	if err == nil {
		var partner services.PartnerConfig
		partner, err = f.companies.ConfigForUser(ctx, entry.UserID)
		if err == nil {
			outcome.ExternalID, err = f.deliver(ctx, outcome.Action, partner, entry, record)
		}
	}
	outcome.Err = err
	outcome.Delivered = err == nil
	outcome.Unconfirmed = outcome.Action == SyncActionCreate && errors.Is(err, services.ErrCreateUnacknowledged)

	if err := f.record(ctx, entry, outcome); err != nil {
		return outcome, err
	}
	if !outcome.Delivered {
		f.logFailure(entry, record, outcome)
	}
	return outcome, nil
}

func (f *SyncFlowImpl) deliver(ctx context.Context, action SyncAction, partner services.PartnerConfig, entry *models.PriceEntry, record SyncRecord) (string, error) {
	if action == SyncActionCreate {
		return f.client.DeliverCreate(ctx, partner, record)
	}
	return *entry.ExternalID, f.client.DeliverUpdate(ctx, partner, *entry.ExternalID, record)
}

// record persists the outcome on the entry and appends a sync log row
func (f *SyncFlowImpl) record(ctx context.Context, entry *models.PriceEntry, outcome *SyncOutcome) error {
	var operation models.SyncOperation
	switch outcome.Action {
	case SyncActionCreate:
		operation = models.SyncOperationCreate
		if outcome.Unconfirmed {
			if err := f.tracker.MarkCreateUnconfirmed(ctx, entry.ID); err != nil {
				return err
			}
			break
		}
		var externalID *string
		if outcome.Delivered {
			externalID = &outcome.ExternalID
		}
		if err := f.tracker.MarkCreateOutcome(ctx, entry.ID, outcome.Delivered, externalID, entry.Revision); err != nil {
			return err
		}
	case SyncActionUpdate:
		operation = models.SyncOperationUpdate
		if err := f.tracker.MarkUpdateOutcome(ctx, entry.ID, outcome.Delivered, entry.Revision); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected sync action %q", outcome.Action)
	}

	log := &models.SyncLog{
		PriceEntryID: entry.ID,
		Operation:    operation,
		Status:       models.SyncLogStatusSucceeded,
		Revision:     entry.Revision,
	}
	if !outcome.Delivered {
		log.Status = models.SyncLogStatusFailed
		if outcome.Unconfirmed {
			log.Status = models.SyncLogStatusUnconfirmed
		}
		log.ErrorMessage = utils.ToPtr(outcome.Err.Error())
		if de, ok := services.AsDeliveryError(outcome.Err); ok && de.StatusCode != 0 {
			log.StatusCode = utils.ToPtr(de.StatusCode)
		}
	}
	if err := f.logRepo.Save(ctx, log); err != nil {
		f.logger.Error("failed to save sync log", zap.Uint("price_entry_id", entry.ID), zap.Error(err))
	}
	return nil
}

func (f *SyncFlowImpl) logFailure(entry *models.PriceEntry, record SyncRecord, outcome *SyncOutcome) {
	fields := []zap.Field{
		zap.String("seller_type", string(entry.SellerType)),
		zap.Uint("price_entry_id", entry.ID),
		zap.String("operation", string(outcome.Action)),
		zap.Any("payload", record),
		zap.Error(outcome.Err),
	}
	if de, ok := services.AsDeliveryError(outcome.Err); ok {
		fields = append(fields,
			zap.String("url", de.URL),
			zap.Int("status_code", de.StatusCode),
			zap.String("response_body", de.Body),
		)
	}
	if outcome.Unconfirmed {
		f.logger.Error("partner accepted create without an id, entry held until resolved", fields...)
		return
	}
	f.logger.Error("partner delivery failed", fields...)
}
