package models

import (
	"time"

	"gorm.io/gorm"
)

// UserType classifies company staff
type UserType string

const (
	UserTypeMarketingStaff  UserType = "marketing_staff"
	UserTypePowerFuelsStaff UserType = "power_fuels_staff"
)

func (u UserType) Valid() bool {
	return u == UserTypeMarketingStaff || u == UserTypePowerFuelsStaff
}

// User is a company staff member who submits price entries
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CompanyID    uint       `gorm:"not null;index:idx_users_company_id" json:"company_id"`
	Email        string     `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	UserType     UserType   `gorm:"type:varchar(32);not null" json:"user_type"`
	IsActive     *bool      `gorm:"default:true;index:idx_users_is_active" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Company *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID        *uint
	CompanyID *uint
	Email     *string
	IsActive  *bool
}
