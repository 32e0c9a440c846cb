package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/omc-bdc-price-service/models"
	"gorm.io/gorm"
)

// PriceEntryImageRepositoryImpl implements PriceEntryImageRepository interface
type PriceEntryImageRepositoryImpl struct {
	*BaseRepository[models.PriceEntryImage, models.PriceEntryImageFilter]
}

// NewPriceEntryImageRepository creates a new price entry image repository
func NewPriceEntryImageRepository(db *gorm.DB) PriceEntryImageRepository {
	return &PriceEntryImageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceEntryImage, models.PriceEntryImageFilter](db),
	}
}

func (r *PriceEntryImageRepositoryImpl) applyFilter(query *gorm.DB, filter models.PriceEntryImageFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.PriceEntryID != nil {
		query = query.Where("price_entry_id = ?", *filter.PriceEntryID)
	}
	return query
}

// ByFilter retrieves images based on filter criteria
func (r *PriceEntryImageRepositoryImpl) ByFilter(ctx context.Context, filter models.PriceEntryImageFilter, orderBy string, limit, offset int) ([]*models.PriceEntryImage, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PriceEntryImage{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = applyPage(query.Order(orderBy), limit, offset)

	var images []*models.PriceEntryImage
	if err := query.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// Count returns the number of images matching the filter
func (r *PriceEntryImageRepositoryImpl) Count(ctx context.Context, filter models.PriceEntryImageFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.PriceEntryImage{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any image matching the filter exists
func (r *PriceEntryImageRepositoryImpl) Exists(ctx context.Context, filter models.PriceEntryImageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByPriceEntry lists the images of one entry in upload order
func (r *PriceEntryImageRepositoryImpl) ListByPriceEntry(ctx context.Context, priceEntryID uint) ([]*models.PriceEntryImage, error) {
	return r.ByFilter(ctx, models.PriceEntryImageFilter{PriceEntryID: &priceEntryID}, "id ASC", 0, 0)
}

// SoftDelete marks an image deleted
func (r *PriceEntryImageRepositoryImpl) SoftDelete(ctx context.Context, id uint) error {
	result := r.getDB(ctx).Where("id = ?", id).Delete(&models.PriceEntryImage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("image not found with ID: %d", id)
	}
	return nil
}
