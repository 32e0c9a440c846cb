package models

import (
	"time"

	"gorm.io/gorm"
)

// Company owns the partner delivery configuration used for its users' price entries
type Company struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null;uniqueIndex:uk_companies_name" json:"name"`
	APIEndpoint string `gorm:"size:1024;not null" json:"api_endpoint"`
	APIUser     string `gorm:"size:255;not null" json:"api_user"`
	APIKey      string `gorm:"size:255;not null" json:"-"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Company) TableName() string {
	return "companies"
}

// CompanyFilter represents filter criteria for company queries
type CompanyFilter struct {
	ID   *uint
	Name *string
}
