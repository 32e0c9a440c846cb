package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/scheduler"
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// RetryRunner runs one redelivery pass on demand
type RetryRunner interface {
	RunOnce(ctx context.Context) (scheduler.RunSummary, error)
}

// AdminHandlerInterface defines the contract for admin handlers
type AdminHandlerInterface interface {
	SyncStations(c fiber.Ctx) error
	CreateProduct(c fiber.Ctx) error
	DeleteProduct(c fiber.Ctx) error
	RestoreProduct(c fiber.Ctx) error

	CreateCompany(c fiber.Ctx) error
	ListCompanies(c fiber.Ctx) error
	GetCompany(c fiber.Ctx) error
	UpdateCompany(c fiber.Ctx) error

	CreateUser(c fiber.Ctx) error
	ListUsers(c fiber.Ctx) error
	GetUser(c fiber.Ctx) error
	UpdateUser(c fiber.Ctx) error

	SyncLogs(c fiber.Ctx) error
	ResolveUnconfirmedCreate(c fiber.Ctx) error
	RunRetry(c fiber.Ctx) error
}

// AdminHandler handles system administrator requests
type AdminHandler struct {
	baseHandler
	companyFlow businessflow.CompanyFlow
	stationFlow businessflow.StationFlow
	productFlow businessflow.ProductFlow
	entryFlow   businessflow.PriceEntryFlow
	retry       RetryRunner
}

// NewAdminHandler creates a new admin handler; retry may be nil when the retry pass is disabled
func NewAdminHandler(
	companyFlow businessflow.CompanyFlow,
	stationFlow businessflow.StationFlow,
	productFlow businessflow.ProductFlow,
	entryFlow businessflow.PriceEntryFlow,
	retry RetryRunner,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(logger),
		companyFlow: companyFlow,
		stationFlow: stationFlow,
		productFlow: productFlow,
		entryFlow:   entryFlow,
		retry:       retry,
	}
}

// SyncStations reconciles the station catalog with the external source
// @Summary Sync Stations
// @Description Fetch the external station list and create, soft-delete or restore stations to match it
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StationSyncResponse} "Stations synced"
// @Failure 403 {object} dto.APIResponse "Admin token required"
// @Failure 502 {object} dto.APIResponse "Station source unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/stations/sync [post]
func (h *AdminHandler) SyncStations(c fiber.Ctx) error {
	ctx, cancel := h.requestContextWithTimeout(c, "/api/v1/admin/stations/sync", 2*time.Minute)
	defer cancel()

	result, err := h.stationFlow.SyncStations(ctx)
	if err != nil {
		return h.businessError(c, err, "Failed to sync stations", "STATION_SYNC_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Stations synced", result)
}

// CreateProduct adds a catalog product
// @Summary Create Product
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateProductRequest true "Product"
// @Success 201 {object} dto.APIResponse{data=dto.ProductDTO} "Product created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Product already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/products [post]
func (h *AdminHandler) CreateProduct(c fiber.Ctx) error {
	var req dto.CreateProductRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/products")
	defer cancel()

	result, err := h.productFlow.CreateProduct(ctx, &req)
	if err != nil {
		return h.businessError(c, err, "Failed to create product", "PRODUCT_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Product created", result)
}

// DeleteProduct soft-deletes a catalog product
// @Summary Delete Product
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} dto.APIResponse "Product deleted"
// @Failure 404 {object} dto.APIResponse "Product not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/products/{id} [delete]
func (h *AdminHandler) DeleteProduct(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/products/:id")
	defer cancel()

	if err := h.productFlow.DeleteProduct(ctx, id); err != nil {
		return h.businessError(c, err, "Failed to delete product", "PRODUCT_DELETE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Product deleted", nil)
}

// RestoreProduct brings back a soft-deleted product
// @Summary Restore Product
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} dto.APIResponse{data=dto.ProductDTO} "Product restored"
// @Failure 404 {object} dto.APIResponse "Deleted product not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/products/{id}/restore [post]
func (h *AdminHandler) RestoreProduct(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/products/:id/restore")
	defer cancel()

	result, err := h.productFlow.RestoreProduct(ctx, id)
	if err != nil {
		return h.businessError(c, err, "Failed to restore product", "PRODUCT_RESTORE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Product restored", result)
}

// CreateCompany registers a company and its delivery endpoint
// @Summary Create Company
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCompanyRequest true "Company"
// @Success 201 {object} dto.APIResponse{data=dto.CompanyDTO} "Company created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Company name taken"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/companies [post]
func (h *AdminHandler) CreateCompany(c fiber.Ctx) error {
	var req dto.CreateCompanyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/companies")
	defer cancel()

	result, err := h.companyFlow.CreateCompany(ctx, &req)
	if err != nil {
		return h.businessError(c, err, "Failed to create company", "COMPANY_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Company created", result)
}

// ListCompanies returns every company
// @Summary List Companies
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.CompanyDTO} "Companies retrieved"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/companies [get]
func (h *AdminHandler) ListCompanies(c fiber.Ctx) error {
	ctx, cancel := h.requestContext(c, "/api/v1/admin/companies")
	defer cancel()

	result, err := h.companyFlow.ListCompanies(ctx)
	if err != nil {
		return h.businessError(c, err, "Failed to list companies", "COMPANY_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Companies retrieved successfully", result)
}

// GetCompany returns one company
// @Summary Get Company
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO} "Company retrieved"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/companies/{id} [get]
func (h *AdminHandler) GetCompany(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/companies/:id")
	defer cancel()

	result, err := h.companyFlow.GetCompany(ctx, id)
	if err != nil {
		return h.businessError(c, err, "Failed to fetch company", "COMPANY_FETCH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Company retrieved successfully", result)
}

// UpdateCompany changes the supplied company fields
// @Summary Update Company
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Param request body dto.UpdateCompanyRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO} "Company updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Failure 409 {object} dto.APIResponse "Company name taken"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/companies/{id} [put]
func (h *AdminHandler) UpdateCompany(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}
	var req dto.UpdateCompanyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/companies/:id")
	defer cancel()

	result, err := h.companyFlow.UpdateCompany(ctx, id, &req)
	if err != nil {
		return h.businessError(c, err, "Failed to update company", "COMPANY_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Company updated", result)
}

// CreateUser creates a reporter account
// @Summary Create User
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "User"
// @Success 201 {object} dto.APIResponse{data=dto.UserDTO} "User created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Failure 409 {object} dto.APIResponse "Email already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/users [post]
func (h *AdminHandler) CreateUser(c fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/users")
	defer cancel()

	result, err := h.companyFlow.CreateUser(ctx, &req)
	if err != nil {
		return h.businessError(c, err, "Failed to create user", "USER_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "User created", result)
}

// ListUsers returns one page of users, optionally of one company
// @Summary List Users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param company_id query int false "Company ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(50)
// @Success 200 {object} dto.APIResponse{data=dto.ListUsersResponse} "Users retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid query parameters"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/users [get]
func (h *AdminHandler) ListUsers(c fiber.Ctx) error {
	var req dto.ListUsersRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/users")
	defer cancel()

	result, err := h.companyFlow.ListUsers(ctx, &req)
	if err != nil {
		return h.businessError(c, err, "Failed to list users", "USER_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved successfully", result)
}

// GetUser returns one user
// @Summary Get User
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO} "User retrieved"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/users/{id} [get]
func (h *AdminHandler) GetUser(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/users/:id")
	defer cancel()

	result, err := h.companyFlow.GetUser(ctx, id)
	if err != nil {
		return h.businessError(c, err, "Failed to fetch user", "USER_FETCH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", result)
}

// UpdateUser changes the supplied user fields
// @Summary Update User
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.UpdateUserRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO} "User updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "User or company not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/users/:id")
	defer cancel()

	result, err := h.companyFlow.UpdateUser(ctx, id, &req)
	if err != nil {
		return h.businessError(c, err, "Failed to update user", "USER_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User updated", result)
}

// SyncLogs lists the delivery attempts recorded for an entry
// @Summary Price Entry Sync Logs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Price entry ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.SyncLogDTO} "Sync logs retrieved"
// @Failure 404 {object} dto.APIResponse "Price entry not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/price-entries/{id}/sync-logs [get]
func (h *AdminHandler) SyncLogs(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/price-entries/:id/sync-logs")
	defer cancel()

	result, err := h.entryFlow.SyncLogs(ctx, id)
	if err != nil {
		return h.businessError(c, err, "Failed to fetch sync logs", "SYNC_LOG_FETCH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sync logs retrieved successfully", result)
}

// ResolveUnconfirmedCreate releases an entry held after its create was answered without an id
// @Summary Resolve Unconfirmed Create
// @Description Settles the entry with the partner's id, or sends the create again when no id is given
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Price entry ID"
// @Param request body dto.ResolveUnconfirmedCreateRequest false "Partner id, if known"
// @Success 200 {object} dto.APIResponse{data=dto.PriceEntryDTO} "Entry released"
// @Failure 404 {object} dto.APIResponse "Price entry not found"
// @Failure 409 {object} dto.APIResponse "Entry is not held"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/price-entries/{id}/sync/resolve [post]
func (h *AdminHandler) ResolveUnconfirmedCreate(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	var req dto.ResolveUnconfirmedCreateRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/admin/price-entries/:id/sync/resolve")
	defer cancel()

	result, err := h.entryFlow.ResolveUnconfirmedCreate(ctx, id, req)
	if err != nil {
		return h.businessError(c, err, "Failed to resolve price entry", "PRICE_ENTRY_RESOLVE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Price entry released", result)
}

// RunRetry runs the redelivery pass immediately
// @Summary Run Sync Retry
// @Description Redeliver every entry whose create or update has not reached the partner yet
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RetrySummaryResponse} "Retry pass finished"
// @Failure 409 {object} dto.APIResponse "A retry pass is already running"
// @Failure 503 {object} dto.APIResponse "Retry pass disabled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/sync/retry [post]
func (h *AdminHandler) RunRetry(c fiber.Ctx) error {
	if h.retry == nil {
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Retry pass is disabled", "RETRY_DISABLED", nil)
	}

	ctx, cancel := h.requestContextWithTimeout(c, "/api/v1/admin/sync/retry", 10*time.Minute)
	defer cancel()

	summary, err := h.retry.RunOnce(ctx)
	if errors.Is(err, scheduler.ErrRetryRunning) {
		return h.ErrorResponse(c, fiber.StatusConflict, "A retry pass is already running", "RETRY_RUNNING", nil)
	}
	resp := dto.RetrySummaryResponse{
		Created:    summary.Created,
		Updated:    summary.Updated,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Held:       summary.Held,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	}
	if err != nil {
		// listing failures still leave a partial summary worth returning
		h.logger.Warn("retry pass finished with errors", zap.Error(err))
		return h.SuccessResponse(c, fiber.StatusOK, "Retry pass finished with errors", resp)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Retry pass finished", resp)
}
