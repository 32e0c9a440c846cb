package dto

import (
	"time"
)

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"reporter@example.com"`
	Password string `json:"password" validate:"required,min=1,max=100" example:"SecurePass123!"`
}

// AdminLoginRequest represents the request payload for system administrator login
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,max=255" example:"admin"`
	Password string `json:"password" validate:"required,max=100" example:"SecurePass123!"`
}

// LoginResponse carries an issued access token
type LoginResponse struct {
	AccessToken string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string    `json:"token_type" example:"Bearer"`
	ExpiresIn   int       `json:"expires_in" example:"3600"`
	ExpiresAt   time.Time `json:"expires_at" example:"2024-01-15T16:30:00Z"`
	User        *UserDTO  `json:"user,omitempty"`
}
