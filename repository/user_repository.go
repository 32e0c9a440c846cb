package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByEmail retrieves a user by email, case-insensitively
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	items, err := r.ByFilter(ctx, models.UserFilter{Email: &normalized}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// ByIDWithCompany retrieves a user together with its company
func (r *UserRepositoryImpl) ByIDWithCompany(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.getDB(ctx).Preload("Company").Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Email != nil {
		query = query.Where("LOWER(email) = ?", strings.ToLower(*filter.Email))
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves users based on filter criteria
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = applyPage(query.Order(orderBy), limit, offset)

	var users []*models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of users matching the filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any user matching the filter exists
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update updates the supplied fields of a user by ID
func (r *UserRepositoryImpl) Update(ctx context.Context, user *models.User) (err error) {
	if user == nil {
		return errors.New("user payload is nil")
	}
	if user.ID == 0 {
		return errors.New("user ID is required for update")
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	updates := map[string]any{
		"updated_at": utils.UTCNow(),
	}
	if user.Email != "" {
		updates["email"] = strings.ToLower(user.Email)
	}
	if user.FullName != "" {
		updates["full_name"] = user.FullName
	}
	if user.PasswordHash != "" {
		updates["password_hash"] = user.PasswordHash
	}
	if user.UserType != "" {
		updates["user_type"] = user.UserType
	}
	if user.IsActive != nil {
		updates["is_active"] = *user.IsActive
	}
	if user.CompanyID != 0 {
		updates["company_id"] = user.CompanyID
	}

	result := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates)
	if result.Error != nil {
		err = result.Error
		return err
	}
	if result.RowsAffected == 0 {
		err = errors.New("user not found with ID: " + strconv.Itoa(int(user.ID)))
		return err
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login
func (r *UserRepositoryImpl) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.getDB(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}
