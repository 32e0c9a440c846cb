package businessflow

import (
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ImageFile is an uploaded file as received from the client
type ImageFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// ToUserDTO converts a user model, including its company name when loaded
func ToUserDTO(user models.User) dto.UserDTO {
	out := dto.UserDTO{
		ID:          user.ID,
		CompanyID:   user.CompanyID,
		Email:       user.Email,
		FullName:    user.FullName,
		UserType:    string(user.UserType),
		IsActive:    utils.IsTrue(user.IsActive),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
	if user.Company != nil {
		out.CompanyName = user.Company.Name
	}
	return out
}

func ToCompanyDTO(company models.Company) dto.CompanyDTO {
	return dto.CompanyDTO{
		ID:          company.ID,
		Name:        company.Name,
		APIEndpoint: company.APIEndpoint,
		APIUser:     company.APIUser,
		HasAPIKey:   company.APIKey != "",
		CreatedAt:   company.CreatedAt,
		UpdatedAt:   company.UpdatedAt,
	}
}

func ToStationDTO(station models.Station) dto.StationDTO {
	return dto.StationDTO{
		ID:        station.ID,
		Name:      station.Name,
		Location:  station.Location,
		DeletedAt: deletedAtPtr(station.DeletedAt),
	}
}

func ToProductDTO(product models.Product) dto.ProductDTO {
	return dto.ProductDTO{
		ID:        product.ID,
		Name:      product.Name,
		DeletedAt: deletedAtPtr(product.DeletedAt),
	}
}

// ToPriceEntryDTO converts an entry loaded with its details
func ToPriceEntryDTO(entry models.PriceEntry) dto.PriceEntryDTO {
	out := dto.PriceEntryDTO{
		ID:                entry.ID,
		UserID:            entry.UserID,
		SellerType:        string(entry.SellerType),
		Date:              entry.Date.UTC().Format(utils.DateLayout),
		Window:            string(entry.Window),
		TownOfLoading:     entry.TownOfLoading,
		ExternalID:        entry.ExternalID,
		SyncStatus:        entry.SyncStatus,
		UpdateSyncStatus:  entry.UpdateSyncStatus,
		CreateUnconfirmed: entry.CreateUnconfirmed,
		CreatedAt:         entry.CreatedAt,
		UpdatedAt:         entry.UpdatedAt,
		Images: lo.Map(entry.Images, func(img models.PriceEntryImage, _ int) dto.PriceEntryImageDTO {
			return dto.PriceEntryImageDTO{ID: img.ID, ImageURL: img.ImageURL, UploadedAt: img.UploadedAt}
		}),
	}
	if entry.TransactionTerm != nil {
		out.TransactionTerm = lo.ToPtr(string(*entry.TransactionTerm))
	}
	if entry.Station != nil {
		station := ToStationDTO(*entry.Station)
		out.Station = &station
	}
	if pp := entry.ProductPrice; pp != nil {
		out.ProductPrice = &dto.ProductPriceDTO{
			ProductType:       string(pp.ProductType),
			Price:             pp.Price,
			UnitOfMeasurement: pp.UnitOfMeasurement,
			CreditPrice:       pp.CreditPrice,
			CreditDays:        pp.CreditDays,
		}
	}
	return out
}

func ToSyncLogDTO(log models.SyncLog) dto.SyncLogDTO {
	return dto.SyncLogDTO{
		ID:           log.ID,
		PriceEntryID: log.PriceEntryID,
		Operation:    string(log.Operation),
		Status:       string(log.Status),
		StatusCode:   log.StatusCode,
		ErrorMessage: log.ErrorMessage,
		Revision:     log.Revision,
		CreatedAt:    log.CreatedAt,
	}
}

func deletedAtPtr(d gorm.DeletedAt) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// normalizePage applies list defaults and bounds
func normalizePage(page, size int) (int, int, error) {
	if page == 0 {
		page = utils.DefaultPage
	}
	if size == 0 {
		size = utils.DefaultPageSize
	}
	if page < 1 || page > utils.MaxPage {
		return 0, 0, ErrInvalidPage
	}
	if size < 1 || size > utils.MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, size, nil
}
