// Package models contains domain entities for the price reporting service
package models

import (
	"time"

	"gorm.io/gorm"
)

// SellerType distinguishes bulk distributors from marketing companies
type SellerType string

const (
	SellerTypeBDC SellerType = "bdc"
	SellerTypeOMC SellerType = "omc"
)

func (s SellerType) Valid() bool {
	return s == SellerTypeBDC || s == SellerTypeOMC
}

// WindowType is the reporting period bucket within a pricing cycle
type WindowType string

const (
	WindowFirst  WindowType = "1st_window"
	WindowSecond WindowType = "2nd_window"
)

func (w WindowType) Valid() bool {
	return w == WindowFirst || w == WindowSecond
}

// TransactionTerm is the cash/credit basis of a BDC sale
type TransactionTerm string

const (
	TransactionTermCash   TransactionTerm = "cash"
	TransactionTermCredit TransactionTerm = "credit"
)

func (t TransactionTerm) Valid() bool {
	return t == TransactionTermCash || t == TransactionTermCredit
}

// ProductType is the fuel product a price refers to
type ProductType string

const (
	ProductTypePetrol ProductType = "petrol"
	ProductTypeDiesel ProductType = "diesel"
	ProductTypeLPG    ProductType = "lpg"
	ProductTypeOther  ProductType = "other"
)

func (p ProductType) Valid() bool {
	switch p {
	case ProductTypePetrol, ProductTypeDiesel, ProductTypeLPG, ProductTypeOther:
		return true
	}
	return false
}

// PriceEntry is one reported price observation.
// OMC entries carry a station reference, BDC entries carry town of loading and transaction term.
// ExternalID is nil until the partner system has accepted the create call.
// SyncStatus is false while the create call still needs to be delivered.
// UpdateSyncStatus is true while the latest update still needs to be delivered.
// Revision increments on every user update and guards UpdateSyncStatus clearing.
// CreateUnconfirmed holds an entry whose create the partner accepted without returning an id;
// it is not created again until an administrator resolves it.
type PriceEntry struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_price_entries_user_id" json:"user_id"`
	SellerType SellerType `gorm:"type:varchar(8);not null;index:idx_price_entries_seller_type" json:"seller_type"`
	Date       time.Time  `gorm:"not null" json:"date"`
	Window     WindowType `gorm:"type:varchar(16);not null" json:"window"`

	StationID *uint `gorm:"index:idx_price_entries_station_id" json:"station_id,omitempty"`

	TownOfLoading   *string          `gorm:"size:255" json:"town_of_loading,omitempty"`
	TransactionTerm *TransactionTerm `gorm:"type:varchar(8)" json:"transaction_term,omitempty"`

	ExternalID       *string `gorm:"size:128;index:idx_price_entries_external_id" json:"external_id,omitempty"`
	SyncStatus       bool    `gorm:"not null;default:false" json:"sync_status"`
	UpdateSyncStatus bool    `gorm:"not null;default:false" json:"update_sync_status"`
	Revision         uint    `gorm:"not null;default:0" json:"revision"`

	CreateUnconfirmed bool `gorm:"not null;default:false" json:"create_unconfirmed"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_price_entries_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User         *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Station      *Station          `gorm:"foreignKey:StationID" json:"station,omitempty"`
	ProductPrice *ProductPrice     `gorm:"foreignKey:PriceEntryID" json:"product_price,omitempty"`
	Images       []PriceEntryImage `gorm:"foreignKey:PriceEntryID" json:"images,omitempty"`
}

func (PriceEntry) TableName() string {
	return "price_entries"
}

// HasLocation reports whether exactly the location matching the seller kind is populated
func (e *PriceEntry) HasLocation() bool {
	switch e.SellerType {
	case SellerTypeOMC:
		return e.StationID != nil && e.TownOfLoading == nil
	case SellerTypeBDC:
		return e.TownOfLoading != nil && *e.TownOfLoading != "" && e.StationID == nil
	}
	return false
}

// ProductPrice holds the single product price of an entry
type ProductPrice struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	PriceEntryID      uint        `gorm:"not null;uniqueIndex:uk_product_prices_price_entry_id" json:"price_entry_id"`
	ProductType       ProductType `gorm:"type:varchar(16);not null;index:idx_product_prices_product_type" json:"product_type"`
	Price             float64     `gorm:"type:numeric(12,4);not null" json:"price"`
	UnitOfMeasurement string      `gorm:"size:64;not null" json:"unit_of_measurement"`
	CreditPrice       *float64    `gorm:"type:numeric(12,4)" json:"credit_price,omitempty"`
	CreditDays        *int        `json:"credit_days,omitempty"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ProductPrice) TableName() string {
	return "product_prices"
}

// UnitOfMeasureFor returns the unit a product is priced in
func UnitOfMeasureFor(p ProductType) string {
	if p == ProductTypeLPG {
		return "Ghana Cedis per Kg"
	}
	return "Ghana Cedis per litre"
}

// PriceEntryImage is an image attached to a price entry
type PriceEntryImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PriceEntryID uint      `gorm:"not null;index:idx_price_entry_images_price_entry_id" json:"price_entry_id"`
	ImageURL     string    `gorm:"size:1024;not null" json:"image_url"`
	ObjectKey    string    `gorm:"size:512;not null" json:"-"`
	UploadedAt   time.Time `gorm:"not null" json:"uploaded_at"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PriceEntryImage) TableName() string {
	return "price_entry_images"
}

// PriceEntryFilter represents filter criteria for price entry queries
type PriceEntryFilter struct {
	ID              *uint
	UserID          *uint
	SellerType      *SellerType
	ProductType     *ProductType
	Window          *WindowType
	TransactionTerm *TransactionTerm
	StationID       *uint
	HasExternalID   *bool
	UpdatePending   *bool
	Unconfirmed     *bool
	CreatedAfter    *time.Time // inclusive
	CreatedBefore   *time.Time // exclusive
}

// PriceEntrySort is a requested ordering; unknown columns fall back to created_at DESC
type PriceEntrySort struct {
	Column    string
	Ascending bool
}

// PriceEntryImageFilter represents filter criteria for image queries
type PriceEntryImageFilter struct {
	ID           *uint
	PriceEntryID *uint
}
