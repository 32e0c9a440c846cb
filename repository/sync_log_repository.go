package repository

import (
	"context"

	"github.com/amirphl/omc-bdc-price-service/models"
	"gorm.io/gorm"
)

// SyncLogRepositoryImpl implements SyncLogRepository interface
type SyncLogRepositoryImpl struct {
	*BaseRepository[models.SyncLog, models.SyncLogFilter]
}

// NewSyncLogRepository creates a new sync log repository
func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &SyncLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SyncLog, models.SyncLogFilter](db),
	}
}

func (r *SyncLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.SyncLogFilter) *gorm.DB {
	if filter.PriceEntryID != nil {
		query = query.Where("price_entry_id = ?", *filter.PriceEntryID)
	}
	if filter.Operation != nil {
		query = query.Where("operation = ?", *filter.Operation)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves sync logs based on filter criteria
func (r *SyncLogRepositoryImpl) ByFilter(ctx context.Context, filter models.SyncLogFilter, orderBy string, limit, offset int) ([]*models.SyncLog, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.SyncLog{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = applyPage(query.Order(orderBy), limit, offset)

	var logs []*models.SyncLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Count returns the number of sync logs matching the filter
func (r *SyncLogRepositoryImpl) Count(ctx context.Context, filter models.SyncLogFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.SyncLog{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sync log matching the filter exists
func (r *SyncLogRepositoryImpl) Exists(ctx context.Context, filter models.SyncLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
