// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/omc-bdc-price-service/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CompanyRepository defines operations for companies
type CompanyRepository interface {
	Repository[models.Company, models.CompanyFilter]
	ByName(ctx context.Context, name string) (*models.Company, error)
	Update(ctx context.Context, company *models.Company) error
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByIDWithCompany(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
}

// StationRepository defines operations for stations
type StationRepository interface {
	Repository[models.Station, models.StationFilter]
	SoftDeleteByIDs(ctx context.Context, ids []uint) error
	RestoreByIDs(ctx context.Context, ids []uint) error
}

// ProductRepository defines operations for the product catalog
type ProductRepository interface {
	Repository[models.Product, models.ProductFilter]
	SoftDelete(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
}

// PriceEntryUpdate carries the supplied fields of a partial update; nil means untouched
type PriceEntryUpdate struct {
	Date            *time.Time
	Window          *models.WindowType
	StationID       *uint
	TownOfLoading   *string
	TransactionTerm *models.TransactionTerm

	ProductType *models.ProductType
	Price       *float64
	CreditPrice *float64
	CreditDays  *int
}

// PriceEntryRepository defines operations for price entries and their sync bookkeeping
type PriceEntryRepository interface {
	Repository[models.PriceEntry, models.PriceEntryFilter]
	ByIDWithDetails(ctx context.Context, id uint) (*models.PriceEntry, error)
	Paginate(ctx context.Context, filter models.PriceEntryFilter, sort models.PriceEntrySort, limit, offset int) ([]*models.PriceEntry, int64, error)
	ListPendingCreate(ctx context.Context, seller models.SellerType) ([]*models.PriceEntry, error)
	ListPendingUpdate(ctx context.Context, seller models.SellerType) ([]*models.PriceEntry, error)
	ApplyUpdate(ctx context.Context, id uint, update PriceEntryUpdate) (uint, error)
	FlagForUpdate(ctx context.Context, id uint) (uint, error)
	MarkCreateOutcome(ctx context.Context, id uint, success bool, externalID *string, revision uint) (bool, error)
	MarkUpdateOutcome(ctx context.Context, id uint, success bool, revision uint) (bool, error)
	MarkCreateUnconfirmed(ctx context.Context, id uint) (bool, error)
	ResolveUnconfirmedCreate(ctx context.Context, id uint, externalID *string) (bool, error)
}

// PriceEntryImageRepository defines operations for price entry images
type PriceEntryImageRepository interface {
	Repository[models.PriceEntryImage, models.PriceEntryImageFilter]
	ListByPriceEntry(ctx context.Context, priceEntryID uint) ([]*models.PriceEntryImage, error)
	SoftDelete(ctx context.Context, id uint) error
}

// SyncLogRepository defines operations for delivery attempt logs
type SyncLogRepository interface {
	Repository[models.SyncLog, models.SyncLogFilter]
}
