package handlers

import (
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// CatalogHandlerInterface defines the contract for station and product lookups
type CatalogHandlerInterface interface {
	ListStations(c fiber.Ctx) error
	GetStation(c fiber.Ctx) error
	ListProducts(c fiber.Ctx) error
	GetProduct(c fiber.Ctx) error
}

// CatalogHandler serves the read-only station and product catalog to reporters
type CatalogHandler struct {
	baseHandler
	stationFlow businessflow.StationFlow
	productFlow businessflow.ProductFlow
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(stationFlow businessflow.StationFlow, productFlow businessflow.ProductFlow, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		baseHandler: newBaseHandler(logger),
		stationFlow: stationFlow,
		productFlow: productFlow,
	}
}

// ListStations returns every active station
// @Summary List Stations
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.StationDTO} "Stations retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stations [get]
func (h *CatalogHandler) ListStations(c fiber.Ctx) error {
	ctx, cancel := h.requestContext(c, "/api/v1/stations")
	defer cancel()

	result, err := h.stationFlow.ListStations(ctx)
	if err != nil {
		return h.businessError(c, err, "Failed to list stations", "STATION_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Stations retrieved successfully", result)
}

// GetStation returns one active station
// @Summary Get Station
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Station ID"
// @Success 200 {object} dto.APIResponse{data=dto.StationDTO} "Station retrieved"
// @Failure 404 {object} dto.APIResponse "Station not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stations/{id} [get]
func (h *CatalogHandler) GetStation(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/stations/:id")
	defer cancel()

	result, err := h.stationFlow.GetStation(ctx, id)
	if err != nil {
		return h.businessError(c, err, "Failed to fetch station", "STATION_FETCH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Station retrieved successfully", result)
}

// ListProducts returns every active product
// @Summary List Products
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.ProductDTO} "Products retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/products [get]
func (h *CatalogHandler) ListProducts(c fiber.Ctx) error {
	ctx, cancel := h.requestContext(c, "/api/v1/products")
	defer cancel()

	result, err := h.productFlow.ListProducts(ctx)
	if err != nil {
		return h.businessError(c, err, "Failed to list products", "PRODUCT_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Products retrieved successfully", result)
}

// GetProduct returns one active product
// @Summary Get Product
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} dto.APIResponse{data=dto.ProductDTO} "Product retrieved"
// @Failure 404 {object} dto.APIResponse "Product not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/products/{id} [get]
func (h *CatalogHandler) GetProduct(c fiber.Ctx) error {
	id, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/products/:id")
	defer cancel()

	result, err := h.productFlow.GetProduct(ctx, id)
	if err != nil {
		return h.businessError(c, err, "Failed to fetch product", "PRODUCT_FETCH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Product retrieved successfully", result)
}
