package businessflow

import (
	"fmt"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/samber/lo"
)

// SyncRecord is the outbound payload of one entry: either an OMCSyncRecord or a BDCSyncRecord
type SyncRecord interface {
	services.DeliveryRecord
	syncRecord()
}

// SyncProductPrice is the product part shared by both record kinds
type SyncProductPrice struct {
	ProductType       models.ProductType `json:"product_type"`
	Price             float64            `json:"price"`
	UnitOfMeasurement string             `json:"unit_of_measurement"`
}

// BDCSyncProductPrice adds credit terms, sent as null for cash sales
type BDCSyncProductPrice struct {
	SyncProductPrice
	CreditPrice *float64 `json:"credit_price"`
	CreditDays  *int     `json:"credit_days"`
}

type OMCSyncRecord struct {
	User            string            `json:"user"`
	SellerType      models.SellerType `json:"seller_type"`
	Date            string            `json:"date"`
	Window          models.WindowType `json:"window"`
	StationName     string            `json:"station_name"`
	StationLocation string            `json:"station_location"`
	ProductPrice    SyncProductPrice  `json:"product_price"`
	Images          []string          `json:"images"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (OMCSyncRecord) ResourcePath() string { return string(models.SellerTypeOMC) }
func (OMCSyncRecord) syncRecord()          {}

type BDCSyncRecord struct {
	User            string                 `json:"user"`
	SellerType      models.SellerType      `json:"seller_type"`
	Date            string                 `json:"date"`
	Window          models.WindowType      `json:"window"`
	TownOfLoading   string                 `json:"town_of_loading"`
	TransactionTerm models.TransactionTerm `json:"transaction_term"`
	ProductPrice    BDCSyncProductPrice    `json:"product_price"`
	Images          []string               `json:"images"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (BDCSyncRecord) ResourcePath() string { return string(models.SellerTypeBDC) }
func (BDCSyncRecord) syncRecord()          {}

// BuildSyncRecord normalizes an entry loaded with its details into its seller-kind record.
// The local id is never part of the payload.
func BuildSyncRecord(entry *models.PriceEntry) (SyncRecord, error) {
	if entry == nil {
		return nil, ErrPriceEntryNotFound
	}
	if entry.ProductPrice == nil {
		return nil, fmt.Errorf("price entry %d has no product price", entry.ID)
	}
	if !entry.HasLocation() {
		return nil, fmt.Errorf("price entry %d: %w", entry.ID, ErrSellerKindMismatch)
	}

	user := ""
	if entry.User != nil {
		user = entry.User.FullName
	}
	images := lo.Map(entry.Images, func(img models.PriceEntryImage, _ int) string { return img.ImageURL })
	price := SyncProductPrice{
		ProductType:       entry.ProductPrice.ProductType,
		Price:             entry.ProductPrice.Price,
		UnitOfMeasurement: entry.ProductPrice.UnitOfMeasurement,
	}
	date := entry.Date.UTC().Format(utils.DateLayout)

	switch entry.SellerType {
	case models.SellerTypeOMC:
		if entry.Station == nil {
			return nil, fmt.Errorf("price entry %d: %w", entry.ID, ErrStationNotFound)
		}
		return OMCSyncRecord{
			User:            user,
			SellerType:      entry.SellerType,
			Date:            date,
			Window:          entry.Window,
			StationName:     entry.Station.Name,
			StationLocation: entry.Station.Location,
			ProductPrice:    price,
			Images:          images,
			CreatedAt:       entry.CreatedAt,
			UpdatedAt:       entry.UpdatedAt,
		}, nil
	case models.SellerTypeBDC:
		return BDCSyncRecord{
			User:            user,
			SellerType:      entry.SellerType,
			Date:            date,
			Window:          entry.Window,
			TownOfLoading:   utils.DerefString(entry.TownOfLoading),
			TransactionTerm: lo.FromPtr(entry.TransactionTerm),
			ProductPrice: BDCSyncProductPrice{
				SyncProductPrice: price,
				CreditPrice:      entry.ProductPrice.CreditPrice,
				CreditDays:       entry.ProductPrice.CreditDays,
			},
			Images:    images,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
		}, nil
	}
	return nil, fmt.Errorf("price entry %d: %w", entry.ID, ErrUnknownSellerType)
}
