package handlers

import (
	"github.com/amirphl/omc-bdc-price-service/app/dto"
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Login(c fiber.Ctx) error
	AdminLogin(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	loginFlow businessflow.LoginFlow
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(loginFlow businessflow.LoginFlow, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(logger),
		loginFlow:   loginFlow,
	}
}

// Login handles user authentication
// @Summary User Login
// @Description Authenticate a reporter with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials or inactive account"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/auth/login")
	defer cancel()

	result, err := h.loginFlow.Login(ctx, &req)
	if err != nil {
		return h.businessError(c, err, "Login failed", "LOGIN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// AdminLogin handles system administrator authentication
// @Summary Admin Login
// @Description Authenticate the system administrator configured for this deployment
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/admin/login [post]
func (h *AuthHandler) AdminLogin(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/auth/admin/login")
	defer cancel()

	result, err := h.loginFlow.AdminLogin(ctx, &req)
	if err != nil {
		return h.businessError(c, err, "Admin login failed", "ADMIN_LOGIN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}
