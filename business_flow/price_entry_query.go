package businessflow

import (
	"strings"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
)

// EntryQuery is a validated listing request scoped to one user
type EntryQuery struct {
	Filter models.PriceEntryFilter
	Sort   models.PriceEntrySort
	Page   int
	Size   int
}

func (q EntryQuery) Offset() int {
	return (q.Page - 1) * q.Size
}

// BuildEntryQuery turns list parameters into a filter that always carries userID.
// to_date includes its whole day; seller_type defaults to omc.
func BuildEntryQuery(userID uint, req dto.ListPriceEntriesRequest) (EntryQuery, error) {
	page, size, err := normalizePage(req.Page, req.Size)
	if err != nil {
		return EntryQuery{}, err
	}

	filter := models.PriceEntryFilter{UserID: utils.ToPtr(userID)}

	seller := models.SellerTypeOMC
	if req.SellerType != "" {
		seller = models.SellerType(strings.ToLower(req.SellerType))
		if !seller.Valid() {
			return EntryQuery{}, ErrUnknownSellerType
		}
	}
	filter.SellerType = &seller

	if req.ProductType != "" {
		productType := models.ProductType(req.ProductType)
		if !productType.Valid() {
			return EntryQuery{}, ErrInvalidProductType
		}
		filter.ProductType = &productType
	}
	if req.Window != "" {
		window := models.WindowType(req.Window)
		if !window.Valid() {
			return EntryQuery{}, ErrInvalidWindow
		}
		filter.Window = &window
	}
	if req.TransactionTerm != "" {
		term := models.TransactionTerm(req.TransactionTerm)
		if !term.Valid() {
			return EntryQuery{}, ErrInvalidTransaction
		}
		filter.TransactionTerm = &term
	}

	var from, to time.Time
	if req.FromDate != "" {
		if from, err = utils.ParseDate(req.FromDate); err != nil {
			return EntryQuery{}, ErrInvalidDate
		}
		filter.CreatedAfter = &from
	}
	if req.ToDate != "" {
		if to, err = utils.ParseDate(req.ToDate); err != nil {
			return EntryQuery{}, ErrInvalidDate
		}
		end := to.Add(24 * time.Hour)
		filter.CreatedBefore = &end
	}
	if req.FromDate != "" && req.ToDate != "" && from.After(to) {
		return EntryQuery{}, ErrInvalidDateRange
	}

	return EntryQuery{
		Filter: filter,
		Sort: models.PriceEntrySort{
			Column:    req.SortBy,
			Ascending: strings.EqualFold(req.SortOrder, "asc"),
		},
		Page: page,
		Size: size,
	}, nil
}
