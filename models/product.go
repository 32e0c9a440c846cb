package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is a catalog entry shown to reporters
type Product struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex:uk_products_name" json:"name"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// ProductFilter represents filter criteria for product queries
type ProductFilter struct {
	ID             *uint
	Name           *string
	IncludeDeleted bool
}
