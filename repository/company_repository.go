package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"gorm.io/gorm"
)

// CompanyRepositoryImpl implements CompanyRepository interface
type CompanyRepositoryImpl struct {
	*BaseRepository[models.Company, models.CompanyFilter]
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &CompanyRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Company, models.CompanyFilter](db),
	}
}

// ByName retrieves a company by its unique name
func (r *CompanyRepositoryImpl) ByName(ctx context.Context, name string) (*models.Company, error) {
	items, err := r.ByFilter(ctx, models.CompanyFilter{Name: &name}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *CompanyRepositoryImpl) applyFilter(query *gorm.DB, filter models.CompanyFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	return query
}

// ByFilter retrieves companies based on filter criteria
func (r *CompanyRepositoryImpl) ByFilter(ctx context.Context, filter models.CompanyFilter, orderBy string, limit, offset int) ([]*models.Company, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Company{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = applyPage(query.Order(orderBy), limit, offset)

	var companies []*models.Company
	if err := query.Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

// Count returns the number of companies matching the filter
func (r *CompanyRepositoryImpl) Count(ctx context.Context, filter models.CompanyFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Company{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any company matching the filter exists
func (r *CompanyRepositoryImpl) Exists(ctx context.Context, filter models.CompanyFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update updates the non-empty fields of a company by ID
func (r *CompanyRepositoryImpl) Update(ctx context.Context, company *models.Company) (err error) {
	if company == nil {
		return errors.New("company payload is nil")
	}
	if company.ID == 0 {
		return errors.New("company ID is required for update")
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	updates := map[string]any{
		"updated_at": utils.UTCNow(),
	}
	if company.Name != "" {
		updates["name"] = company.Name
	}
	if company.APIEndpoint != "" {
		updates["api_endpoint"] = company.APIEndpoint
	}
	if company.APIUser != "" {
		updates["api_user"] = company.APIUser
	}
	if company.APIKey != "" {
		updates["api_key"] = company.APIKey
	}

	result := db.Model(&models.Company{}).Where("id = ?", company.ID).Updates(updates)
	if result.Error != nil {
		err = result.Error
		return err
	}
	if result.RowsAffected == 0 {
		err = errors.New("company not found with ID: " + strconv.Itoa(int(company.ID)))
		return err
	}
	return nil
}
