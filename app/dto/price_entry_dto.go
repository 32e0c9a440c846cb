package dto

import "time"

// ProductPriceRequest is the single product priced by a submission
type ProductPriceRequest struct {
	ProductType string   `json:"product_type" validate:"required,oneof=petrol diesel lpg other" example:"petrol"`
	Price       float64  `json:"price" validate:"required,gt=0" example:"14.5"`
	CreditPrice *float64 `json:"credit_price,omitempty" validate:"omitempty,gt=0" example:"15.2"`
	CreditDays  *int     `json:"credit_days,omitempty" validate:"omitempty,gte=0" example:"30"`
}

// SubmitOMCEntryRequest is the payload part of an OMC submission
type SubmitOMCEntryRequest struct {
	Date      string              `json:"date" validate:"required,datetime=2006-01-02" example:"2024-01-01"`
	Window    string              `json:"window" validate:"required,oneof=1st_window 2nd_window" example:"1st_window"`
	StationID uint                `json:"station_id" validate:"required" example:"4"`
	Product   ProductPriceRequest `json:"product" validate:"required"`
}

// SubmitBDCEntryRequest is the payload part of a BDC submission
type SubmitBDCEntryRequest struct {
	Date            string              `json:"date" validate:"required,datetime=2006-01-02" example:"2024-01-01"`
	Window          string              `json:"window" validate:"required,oneof=1st_window 2nd_window" example:"2nd_window"`
	TownOfLoading   string              `json:"town_of_loading" validate:"required,max=255" example:"Tema"`
	TransactionTerm string              `json:"transaction_term" validate:"required,oneof=cash credit" example:"credit"`
	Product         ProductPriceRequest `json:"product" validate:"required"`
}

// UpdatePriceEntryRequest is a partial update; omitted fields are left untouched
type UpdatePriceEntryRequest struct {
	Date            *string  `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Window          *string  `json:"window,omitempty" validate:"omitempty,oneof=1st_window 2nd_window"`
	StationID       *uint    `json:"station_id,omitempty"`
	TownOfLoading   *string  `json:"town_of_loading,omitempty" validate:"omitempty,max=255"`
	TransactionTerm *string  `json:"transaction_term,omitempty" validate:"omitempty,oneof=cash credit"`
	ProductType     *string  `json:"product_type,omitempty" validate:"omitempty,oneof=petrol diesel lpg other"`
	Price           *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	CreditPrice     *float64 `json:"credit_price,omitempty" validate:"omitempty,gte=0"`
	CreditDays      *int     `json:"credit_days,omitempty" validate:"omitempty,gte=0"`
}

// ListPriceEntriesRequest holds the list and export query parameters
type ListPriceEntriesRequest struct {
	SellerType      string `query:"seller_type" validate:"omitempty,oneof=omc bdc"`
	ProductType     string `query:"product_type" validate:"omitempty,oneof=petrol diesel lpg other"`
	Window          string `query:"window" validate:"omitempty,oneof=1st_window 2nd_window"`
	TransactionTerm string `query:"transaction_term" validate:"omitempty,oneof=cash credit"`
	SortBy          string `query:"sort_by"`
	SortOrder       string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
	FromDate        string `query:"from_date" validate:"omitempty,datetime=2006-01-02"`
	ToDate          string `query:"to_date" validate:"omitempty,datetime=2006-01-02"`
	Page            int    `query:"page" validate:"omitempty,min=1,max=100000"`
	Size            int    `query:"size" validate:"omitempty,min=1,max=100"`
}

// ProductPriceDTO is the priced product of an entry
type ProductPriceDTO struct {
	ProductType       string   `json:"product_type" example:"petrol"`
	Price             float64  `json:"price" example:"14.5"`
	UnitOfMeasurement string   `json:"unit_of_measurement" example:"Ghana Cedis per litre"`
	CreditPrice       *float64 `json:"credit_price,omitempty"`
	CreditDays        *int     `json:"credit_days,omitempty"`
}

// PriceEntryImageDTO is an attached image
type PriceEntryImageDTO struct {
	ID         uint      `json:"id" example:"9"`
	ImageURL   string    `json:"image_url" example:"https://storage.example.com/omc-bdc-price/omc-bdc/docs/3f1c.jpg"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PriceEntryDTO is the owner's view of a price entry including its sync state
type PriceEntryDTO struct {
	ID                uint                 `json:"id" example:"31"`
	UserID            uint                 `json:"user_id" example:"12"`
	SellerType        string               `json:"seller_type" example:"omc"`
	Date              string               `json:"date" example:"2024-01-01"`
	Window            string               `json:"window" example:"1st_window"`
	Station           *StationDTO          `json:"station,omitempty"`
	TownOfLoading     *string              `json:"town_of_loading,omitempty"`
	TransactionTerm   *string              `json:"transaction_term,omitempty"`
	ProductPrice      *ProductPriceDTO     `json:"product_price,omitempty"`
	Images            []PriceEntryImageDTO `json:"images"`
	ExternalID        *string              `json:"external_id,omitempty"`
	SyncStatus        bool                 `json:"sync_status"`
	UpdateSyncStatus  bool                 `json:"update_sync_status"`
	CreateUnconfirmed bool                 `json:"create_unconfirmed"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// ListPriceEntriesResponse is one page of entries
type ListPriceEntriesResponse struct {
	Items      []PriceEntryDTO `json:"items"`
	Pagination PaginationInfo  `json:"pagination"`
}

// PresignedURLsRequest asks for direct upload URLs
type PresignedURLsRequest struct {
	ImageNames []string `json:"image_names" validate:"required,min=1,max=20,dive,required,max=255" example:"front.jpg"`
}

// PresignedURLDTO is one direct upload target
type PresignedURLDTO struct {
	Name      string    `json:"name" example:"front.jpg"`
	UploadURL string    `json:"upload_url"`
	ImageURL  string    `json:"image_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PresignedURLsResponse lists one upload target per requested name
type PresignedURLsResponse struct {
	Uploads []PresignedURLDTO `json:"uploads"`
}

// SyncLogDTO is one recorded delivery attempt
type SyncLogDTO struct {
	ID           uint      `json:"id" example:"88"`
	PriceEntryID uint      `json:"price_entry_id" example:"31"`
	Operation    string    `json:"operation" example:"create"`
	Status       string    `json:"status" example:"failed"`
	StatusCode   *int      `json:"status_code,omitempty" example:"500"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	Revision     uint      `json:"revision" example:"0"`
	CreatedAt    time.Time `json:"created_at"`
}

// RetrySummaryResponse reports one retry pass
type RetrySummaryResponse struct {
	Created    int       `json:"created" example:"3"`
	Updated    int       `json:"updated" example:"2"`
	Failed     int       `json:"failed" example:"1"`
	Skipped    int       `json:"skipped" example:"0"`
	Held       int       `json:"held" example:"0"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ResolveUnconfirmedCreateRequest settles a held create; omit external_id to send the create again
type ResolveUnconfirmedCreateRequest struct {
	ExternalID *string `json:"external_id,omitempty" validate:"omitempty,max=128" example:"555"`
}
