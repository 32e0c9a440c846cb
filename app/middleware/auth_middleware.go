// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by the authentication middleware
const (
	LocalUserID      = "user_id"
	LocalCompanyID   = "company_id"
	LocalEmail       = "email"
	LocalTokenClaims = "token_claims"
	LocalRequestID   = "request_id"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate accepts user tokens and exposes the user, company and email to handlers
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, err := m.claims(c)
		if claims == nil {
			return err
		}
		if claims.Role != services.RoleUser || claims.UserID == 0 {
			return unauthorized(c, fiber.StatusForbidden, "USER_TOKEN_REQUIRED", "A user access token is required")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalCompanyID, claims.CompanyID)
		c.Locals(LocalEmail, claims.Subject)
		c.Locals(LocalTokenClaims, claims)
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals(LocalRequestID, requestID)
		}

		return c.Next()
	}
}

// AdminAuthenticate accepts only tokens issued to the system administrator
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, err := m.claims(c)
		if claims == nil {
			return err
		}
		if !claims.IsAdmin() {
			return unauthorized(c, fiber.StatusForbidden, "ADMIN_TOKEN_REQUIRED", "An admin access token is required")
		}

		c.Locals(LocalEmail, claims.Subject)
		c.Locals(LocalTokenClaims, claims)
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals(LocalRequestID, requestID)
		}

		return c.Next()
	}
}

// claims extracts and validates the bearer token.
// On rejection it writes the response and returns nil claims.
func (m *AuthMiddleware) claims(c fiber.Ctx) (*services.TokenClaims, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, unauthorized(c, fiber.StatusUnauthorized, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, unauthorized(c, fiber.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return nil, unauthorized(c, fiber.StatusUnauthorized, "MISSING_ACCESS_TOKEN", "Access token is required")
	}

	claims, err := m.tokenService.ValidateToken(token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenExpired):
			return nil, unauthorized(c, fiber.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired")
		case errors.Is(err, services.ErrTokenInvalid):
			return nil, unauthorized(c, fiber.StatusUnauthorized, "TOKEN_INVALID", "Invalid access token")
		default:
			return nil, unauthorized(c, fiber.StatusUnauthorized, "TOKEN_VALIDATION_FAILED", "Token validation failed")
		}
	}
	return claims, nil
}

func unauthorized(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// GetUserIDFromContext extracts the authenticated user id
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals(LocalUserID).(uint)
	return userID, ok && userID != 0
}

// GetCompanyIDFromContext extracts the authenticated user's company id
func GetCompanyIDFromContext(c fiber.Ctx) (uint, bool) {
	companyID, ok := c.Locals(LocalCompanyID).(uint)
	return companyID, ok
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(LocalTokenClaims).(*services.TokenClaims)
	return claims, ok
}
