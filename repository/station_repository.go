package repository

import (
	"context"

	"github.com/amirphl/omc-bdc-price-service/models"
	"gorm.io/gorm"
)

// StationRepositoryImpl implements StationRepository interface
type StationRepositoryImpl struct {
	*BaseRepository[models.Station, models.StationFilter]
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *gorm.DB) StationRepository {
	return &StationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Station, models.StationFilter](db),
	}
}

func (r *StationRepositoryImpl) applyFilter(query *gorm.DB, filter models.StationFilter) *gorm.DB {
	if filter.IncludeDeleted {
		query = query.Unscoped()
	}
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.Location != nil {
		query = query.Where("location = ?", *filter.Location)
	}
	return query
}

// ByFilter retrieves stations based on filter criteria
func (r *StationRepositoryImpl) ByFilter(ctx context.Context, filter models.StationFilter, orderBy string, limit, offset int) ([]*models.Station, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Station{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = applyPage(query.Order(orderBy), limit, offset)

	var stations []*models.Station
	if err := query.Find(&stations).Error; err != nil {
		return nil, err
	}
	return stations, nil
}

// Count returns the number of stations matching the filter
func (r *StationRepositoryImpl) Count(ctx context.Context, filter models.StationFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Station{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any station matching the filter exists
func (r *StationRepositoryImpl) Exists(ctx context.Context, filter models.StationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SoftDeleteByIDs marks the given stations deleted
func (r *StationRepositoryImpl) SoftDeleteByIDs(ctx context.Context, ids []uint) (err error) {
	if len(ids) == 0 {
		return nil
	}
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Where("id IN ?", ids).Delete(&models.Station{}).Error
	return err
}

// RestoreByIDs clears the deletion mark of the given stations
func (r *StationRepositoryImpl) RestoreByIDs(ctx context.Context, ids []uint) (err error) {
	if len(ids) == 0 {
		return nil
	}
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Unscoped().Model(&models.Station{}).Where("id IN ?", ids).Update("deleted_at", nil).Error
	return err
}
