package businessflow

import (
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
)

// ProductQuote is the validated single product of a submission
type ProductQuote struct {
	Type        models.ProductType
	Price       float64
	CreditPrice *float64
	CreditDays  *int
}

// OMCEntryInput is a validated OMC submission
type OMCEntryInput struct {
	Date      time.Time
	Window    models.WindowType
	StationID uint
	Product   ProductQuote
}

// BDCEntryInput is a validated BDC submission
type BDCEntryInput struct {
	Date            time.Time
	Window          models.WindowType
	TownOfLoading   string
	TransactionTerm models.TransactionTerm
	Product         ProductQuote
}

// SubmitPriceEntryInput holds exactly one of OMC or BDC
type SubmitPriceEntryInput struct {
	OMC *OMCEntryInput
	BDC *BDCEntryInput
}

// SellerType resolves which variant is populated
func (in SubmitPriceEntryInput) SellerType() (models.SellerType, error) {
	switch {
	case in.OMC != nil && in.BDC == nil:
		return models.SellerTypeOMC, nil
	case in.BDC != nil && in.OMC == nil:
		return models.SellerTypeBDC, nil
	}
	return "", ErrInvalidSubmission
}

// NewOMCEntryInput validates an OMC request once at the boundary
func NewOMCEntryInput(req dto.SubmitOMCEntryRequest) (*OMCEntryInput, error) {
	date, window, err := parseDateWindow(req.Date, req.Window)
	if err != nil {
		return nil, err
	}
	if req.StationID == 0 {
		return nil, ErrStationNotFound
	}
	product, err := parseProduct(req.Product)
	if err != nil {
		return nil, err
	}
	if product.CreditPrice != nil || product.CreditDays != nil {
		return nil, ErrSellerKindMismatch
	}
	return &OMCEntryInput{Date: date, Window: window, StationID: req.StationID, Product: product}, nil
}

// NewBDCEntryInput validates a BDC request once at the boundary
func NewBDCEntryInput(req dto.SubmitBDCEntryRequest) (*BDCEntryInput, error) {
	date, window, err := parseDateWindow(req.Date, req.Window)
	if err != nil {
		return nil, err
	}
	if req.TownOfLoading == "" {
		return nil, ErrInvalidSubmission
	}
	term := models.TransactionTerm(req.TransactionTerm)
	if !term.Valid() {
		return nil, ErrInvalidTransaction
	}
	product, err := parseProduct(req.Product)
	if err != nil {
		return nil, err
	}
	if term == models.TransactionTermCash && (product.CreditPrice != nil || product.CreditDays != nil) {
		return nil, ErrCreditTermsRequired
	}
	return &BDCEntryInput{
		Date:            date,
		Window:          window,
		TownOfLoading:   req.TownOfLoading,
		TransactionTerm: term,
		Product:         product,
	}, nil
}

func parseDateWindow(rawDate, rawWindow string) (time.Time, models.WindowType, error) {
	date, err := utils.ParseDate(rawDate)
	if err != nil {
		return time.Time{}, "", ErrInvalidDate
	}
	window := models.WindowType(rawWindow)
	if !window.Valid() {
		return time.Time{}, "", ErrInvalidWindow
	}
	return date, window, nil
}

func parseProduct(req dto.ProductPriceRequest) (ProductQuote, error) {
	productType := models.ProductType(req.ProductType)
	if !productType.Valid() {
		return ProductQuote{}, ErrInvalidProductType
	}
	if req.Price <= 0 {
		return ProductQuote{}, ErrInvalidPrice
	}
	return ProductQuote{
		Type:        productType,
		Price:       req.Price,
		CreditPrice: req.CreditPrice,
		CreditDays:  req.CreditDays,
	}, nil
}

// toEntry builds the rows persisted for a submission
func (in SubmitPriceEntryInput) toEntry(userID uint, images []models.PriceEntryImage) (*models.PriceEntry, error) {
	seller, err := in.SellerType()
	if err != nil {
		return nil, err
	}

	entry := &models.PriceEntry{
		UserID:     userID,
		SellerType: seller,
		Images:     images,
	}

	var quote ProductQuote
	switch seller {
	case models.SellerTypeOMC:
		entry.Date = in.OMC.Date
		entry.Window = in.OMC.Window
		entry.StationID = utils.ToPtr(in.OMC.StationID)
		quote = in.OMC.Product
	case models.SellerTypeBDC:
		entry.Date = in.BDC.Date
		entry.Window = in.BDC.Window
		entry.TownOfLoading = utils.ToPtr(in.BDC.TownOfLoading)
		entry.TransactionTerm = utils.ToPtr(in.BDC.TransactionTerm)
		quote = in.BDC.Product
	default:
		return nil, ErrUnknownSellerType
	}

	entry.ProductPrice = &models.ProductPrice{
		ProductType:       quote.Type,
		Price:             quote.Price,
		UnitOfMeasurement: models.UnitOfMeasureFor(quote.Type),
		CreditPrice:       quote.CreditPrice,
		CreditDays:        quote.CreditDays,
	}
	return entry, nil
}

// toEntryUpdate validates a partial update against the entry's seller kind and current state.
// Zero product values count as unset.
func toEntryUpdate(entry *models.PriceEntry, req dto.UpdatePriceEntryRequest) (repository.PriceEntryUpdate, error) {
	var update repository.PriceEntryUpdate
	if entry == nil {
		return update, ErrPriceEntryNotFound
	}

	if req.Date != nil && *req.Date != "" {
		date, err := utils.ParseDate(*req.Date)
		if err != nil {
			return update, ErrInvalidDate
		}
		update.Date = &date
	}
	if req.Window != nil && *req.Window != "" {
		window := models.WindowType(*req.Window)
		if !window.Valid() {
			return update, ErrInvalidWindow
		}
		update.Window = &window
	}
	if req.ProductType != nil && *req.ProductType != "" {
		productType := models.ProductType(*req.ProductType)
		if !productType.Valid() {
			return update, ErrInvalidProductType
		}
		update.ProductType = &productType
	}
	if req.Price != nil && *req.Price > 0 {
		update.Price = req.Price
	}

	switch entry.SellerType {
	case models.SellerTypeOMC:
		if req.TownOfLoading != nil || req.TransactionTerm != nil || req.CreditPrice != nil || req.CreditDays != nil {
			return update, ErrSellerKindMismatch
		}
		if req.StationID != nil && *req.StationID != 0 {
			update.StationID = req.StationID
		}
	case models.SellerTypeBDC:
		if req.StationID != nil {
			return update, ErrSellerKindMismatch
		}
		if req.TownOfLoading != nil && *req.TownOfLoading != "" {
			update.TownOfLoading = req.TownOfLoading
		}
		if req.TransactionTerm != nil && *req.TransactionTerm != "" {
			term := models.TransactionTerm(*req.TransactionTerm)
			if !term.Valid() {
				return update, ErrInvalidTransaction
			}
			update.TransactionTerm = &term
		}
		if req.CreditPrice != nil && *req.CreditPrice > 0 {
			update.CreditPrice = req.CreditPrice
		}
		if req.CreditDays != nil && *req.CreditDays > 0 {
			update.CreditDays = req.CreditDays
		}
		term := entry.TransactionTerm
		if update.TransactionTerm != nil {
			term = update.TransactionTerm
		}
		if term != nil && *term == models.TransactionTermCash && (update.CreditPrice != nil || update.CreditDays != nil) {
			return update, ErrCreditTermsRequired
		}
	default:
		return update, ErrUnknownSellerType
	}

	return update, nil
}

func isEmptyUpdate(u repository.PriceEntryUpdate) bool {
	return u.Date == nil && u.Window == nil && u.StationID == nil && u.TownOfLoading == nil &&
		u.TransactionTerm == nil && u.ProductType == nil && u.Price == nil && u.CreditPrice == nil && u.CreditDays == nil
}
