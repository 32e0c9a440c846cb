package dto

import "time"

// CreateCompanyRequest registers a company and its partner delivery configuration
type CreateCompanyRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255" example:"Star Oil"`
	APIEndpoint string `json:"api_endpoint" validate:"required,url,max=1024" example:"https://partner.example.com/api"`
	APIUser     string `json:"api_user" validate:"required,max=255" example:"star-oil"`
	APIKey      string `json:"api_key" validate:"required,max=255" example:"k-123"`
}

// UpdateCompanyRequest changes the supplied company fields only
type UpdateCompanyRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	APIEndpoint *string `json:"api_endpoint,omitempty" validate:"omitempty,url,max=1024"`
	APIUser     *string `json:"api_user,omitempty" validate:"omitempty,max=255"`
	APIKey      *string `json:"api_key,omitempty" validate:"omitempty,max=255"`
}

// CompanyDTO is the admin view of a company; the API key itself is never returned
type CompanyDTO struct {
	ID          uint      `json:"id" example:"1"`
	Name        string    `json:"name" example:"Star Oil"`
	APIEndpoint string    `json:"api_endpoint" example:"https://partner.example.com/api"`
	APIUser     string    `json:"api_user" example:"star-oil"`
	HasAPIKey   bool      `json:"has_api_key" example:"true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateUserRequest creates a reporter account; an omitted password falls back to the configured default
type CreateUserRequest struct {
	CompanyID uint   `json:"company_id" validate:"required" example:"1"`
	Email     string `json:"email" validate:"required,email,max=255" example:"reporter@example.com"`
	FullName  string `json:"full_name" validate:"required,min=2,max=255" example:"Ama Mensah"`
	Password  string `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
	UserType  string `json:"user_type" validate:"required,oneof=marketing_staff power_fuels_staff" example:"marketing_staff"`
}

// UpdateUserRequest changes the supplied user fields only
type UpdateUserRequest struct {
	CompanyID *uint   `json:"company_id,omitempty"`
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=255"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
	UserType  *string `json:"user_type,omitempty" validate:"omitempty,oneof=marketing_staff power_fuels_staff"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// ListUsersRequest filters the admin user listing
type ListUsersRequest struct {
	CompanyID *uint `query:"company_id"`
	Page      int   `query:"page"`
	Size      int   `query:"size"`
}

// UserDTO is the public view of a user
type UserDTO struct {
	ID          uint       `json:"id" example:"12"`
	CompanyID   uint       `json:"company_id" example:"1"`
	CompanyName string     `json:"company_name,omitempty" example:"Star Oil"`
	Email       string     `json:"email" example:"reporter@example.com"`
	FullName    string     `json:"full_name" example:"Ama Mensah"`
	UserType    string     `json:"user_type" example:"marketing_staff"`
	IsActive    bool       `json:"is_active" example:"true"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListUsersResponse is one page of users
type ListUsersResponse struct {
	Items      []UserDTO      `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
