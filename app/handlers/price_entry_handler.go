package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/middleware"
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PriceEntryHandlerInterface defines the contract for price entry handlers
type PriceEntryHandlerInterface interface {
	SubmitOMC(c fiber.Ctx) error
	SubmitBDC(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Export(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	DeleteImage(c fiber.Ctx) error
	PresignURLs(c fiber.Ctx) error
}

// PriceEntryHandler handles price entry HTTP requests of authenticated reporters
type PriceEntryHandler struct {
	baseHandler
	flow businessflow.PriceEntryFlow
}

// NewPriceEntryHandler creates a new price entry handler
func NewPriceEntryHandler(flow businessflow.PriceEntryFlow, logger *zap.Logger) *PriceEntryHandler {
	return &PriceEntryHandler{
		baseHandler: newBaseHandler(logger),
		flow:        flow,
	}
}

// SubmitOMC stores an OMC price entry
// @Summary Submit OMC Price Entry
// @Description Submit a station pump price. Send multipart/form-data with a JSON `payload` field and optional `images` files, or a plain JSON body without images.
// @Tags Price Entries
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload formData string true "JSON encoded dto.SubmitOMCEntryRequest"
// @Param images formData file false "Evidence images"
// @Success 201 {object} dto.APIResponse{data=dto.PriceEntryDTO} "Price entry submitted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Station not found"
// @Failure 502 {object} dto.APIResponse "Image upload failed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/omc [post]
func (h *PriceEntryHandler) SubmitOMC(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}

	var req dto.SubmitOMCEntryRequest
	images, ok, err := h.bindSubmission(c, &req)
	if !ok {
		return err
	}

	omc, err := businessflow.NewOMCEntryInput(req)
	if err != nil {
		return h.businessError(c, err, "Price entry validation failed", "PRICE_ENTRY_VALIDATION_FAILED")
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries/omc")
	defer cancel()

	result, err := h.flow.Submit(ctx, userID, businessflow.SubmitPriceEntryInput{OMC: omc}, images)
	if err != nil {
		return h.businessError(c, err, "Failed to submit price entry", "PRICE_ENTRY_SUBMIT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Price entry submitted", result)
}

// SubmitBDC stores a BDC price entry
// @Summary Submit BDC Price Entry
// @Description Submit a depot price. Credit price and credit days are only accepted for credit transactions.
// @Tags Price Entries
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload formData string true "JSON encoded dto.SubmitBDCEntryRequest"
// @Param images formData file false "Evidence images"
// @Success 201 {object} dto.APIResponse{data=dto.PriceEntryDTO} "Price entry submitted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 502 {object} dto.APIResponse "Image upload failed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/bdc [post]
func (h *PriceEntryHandler) SubmitBDC(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}

	var req dto.SubmitBDCEntryRequest
	images, ok, err := h.bindSubmission(c, &req)
	if !ok {
		return err
	}

	bdc, err := businessflow.NewBDCEntryInput(req)
	if err != nil {
		return h.businessError(c, err, "Price entry validation failed", "PRICE_ENTRY_VALIDATION_FAILED")
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries/bdc")
	defer cancel()

	result, err := h.flow.Submit(ctx, userID, businessflow.SubmitPriceEntryInput{BDC: bdc}, images)
	if err != nil {
		return h.businessError(c, err, "Failed to submit price entry", "PRICE_ENTRY_SUBMIT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Price entry submitted", result)
}

// Update applies a partial update to one of the caller's entries
// @Summary Update Price Entry
// @Description Change the supplied fields only and append new images. The entry is queued for update delivery.
// @Tags Price Entries
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Price entry ID"
// @Param payload formData string false "JSON encoded dto.UpdatePriceEntryRequest"
// @Param images formData file false "Additional images"
// @Success 200 {object} dto.APIResponse{data=dto.PriceEntryDTO} "Price entry updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Price entry not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/{id} [put]
func (h *PriceEntryHandler) Update(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	entryID, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	var req dto.UpdatePriceEntryRequest
	var images []businessflow.ImageFile
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid multipart form", "INVALID_REQUEST", err.Error())
		}
		if payload := c.FormValue("payload"); payload != "" {
			if err := json.Unmarshal([]byte(payload), &req); err != nil {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid payload", "INVALID_REQUEST", err.Error())
			}
		}
		if images, err = readImages(form); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid image upload", "INVALID_REQUEST", err.Error())
		}
	} else if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries/:id")
	defer cancel()

	result, err := h.flow.Update(ctx, userID, entryID, req, images)
	if err != nil {
		return h.businessError(c, err, "Failed to update price entry", "PRICE_ENTRY_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Price entry updated", result)
}

// List returns one page of the caller's entries
// @Summary List Price Entries
// @Description Filter the caller's entries by seller type, product, window, transaction term and date range
// @Tags Price Entries
// @Produce json
// @Security BearerAuth
// @Param seller_type query string false "omc or bdc" default(omc)
// @Param product_type query string false "petrol, diesel, lpg or other"
// @Param window query string false "1st_window or 2nd_window"
// @Param transaction_term query string false "cash or credit (BDC only)"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc" default(desc)
// @Param from_date query string false "YYYY-MM-DD"
// @Param to_date query string false "YYYY-MM-DD"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(50)
// @Success 200 {object} dto.APIResponse{data=dto.ListPriceEntriesResponse} "Price entries retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries [get]
func (h *PriceEntryHandler) List(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}

	var req dto.ListPriceEntriesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries")
	defer cancel()

	result, err := h.flow.List(ctx, userID, req)
	if err != nil {
		return h.businessError(c, err, "Failed to list price entries", "PRICE_ENTRY_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Price entries retrieved successfully", result)
}

// Export downloads the caller's entries as a spreadsheet
// @Summary Export Price Entries
// @Description Export entries matching the list filters. Without seller_type both OMC and BDC sheets are written.
// @Tags Price Entries
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param seller_type query string false "omc or bdc"
// @Param from_date query string false "YYYY-MM-DD"
// @Param to_date query string false "YYYY-MM-DD"
// @Success 200 {file} file "Workbook"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/export [get]
func (h *PriceEntryHandler) Export(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}

	var req dto.ListPriceEntriesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContextWithTimeout(c, "/api/v1/price-entries/export", 2*defaultRequestTimeout)
	defer cancel()

	name, data, err := h.flow.Export(ctx, userID, req)
	if err != nil {
		return h.businessError(c, err, "Failed to export price entries", "PRICE_ENTRY_EXPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Status(fiber.StatusOK).Send(data)
}

// Get returns one of the caller's entries
// @Summary Get Price Entry
// @Description Get a price entry with its product price, images and sync state
// @Tags Price Entries
// @Produce json
// @Security BearerAuth
// @Param id path int true "Price entry ID"
// @Success 200 {object} dto.APIResponse{data=dto.PriceEntryDTO} "Price entry retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Price entry not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/{id} [get]
func (h *PriceEntryHandler) Get(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	entryID, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries/:id")
	defer cancel()

	result, err := h.flow.Get(ctx, userID, entryID)
	if err != nil {
		return h.businessError(c, err, "Failed to fetch price entry", "PRICE_ENTRY_FETCH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Price entry retrieved successfully", result)
}

// DeleteImage removes an image from one of the caller's entries
// @Summary Delete Price Entry Image
// @Description Remove an attached image. The entry is queued for update delivery.
// @Tags Price Entries
// @Produce json
// @Security BearerAuth
// @Param id path int true "Price entry ID"
// @Param image_id path int true "Image ID"
// @Success 200 {object} dto.APIResponse "Image deleted"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Price entry or image not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/{id}/images/{image_id} [delete]
func (h *PriceEntryHandler) DeleteImage(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	entryID, ok, err := h.pathID(c, "id")
	if !ok {
		return err
	}
	imageID, ok, err := h.pathID(c, "image_id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries/:id/images/:image_id")
	defer cancel()

	if err := h.flow.DeleteImage(ctx, userID, entryID, imageID); err != nil {
		return h.businessError(c, err, "Failed to delete image", "IMAGE_DELETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Image deleted", nil)
}

// PresignURLs issues direct upload URLs
// @Summary Presign Image Uploads
// @Description Get one time-limited PUT URL per image name for uploading straight to object storage
// @Tags Price Entries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.PresignedURLsRequest true "Image names"
// @Success 200 {object} dto.APIResponse{data=dto.PresignedURLsResponse} "Upload URLs issued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/price-entries/presigned-urls [post]
func (h *PriceEntryHandler) PresignURLs(c fiber.Ctx) error {
	var req dto.PresignedURLsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c, "/api/v1/price-entries/presigned-urls")
	defer cancel()

	result, err := h.flow.PresignUploads(ctx, req)
	if err != nil {
		return h.businessError(c, err, "Failed to presign uploads", "PRESIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Upload URLs issued", result)
}

// bindSubmission decodes and validates a submission payload and collects its images.
// The returned bool is false when a response was written.
func (h *PriceEntryHandler) bindSubmission(c fiber.Ctx, req any) ([]businessflow.ImageFile, bool, error) {
	if !isMultipart(c) {
		if err := c.Bind().JSON(req); err != nil {
			return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		ok, err := h.validate(c, req)
		return nil, ok, err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid multipart form", "INVALID_REQUEST", err.Error())
	}
	payload := c.FormValue("payload")
	if payload == "" {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "payload is required", "VALIDATION_ERROR", nil)
	}
	if err := json.Unmarshal([]byte(payload), req); err != nil {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid payload", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, req); !ok {
		return nil, false, err
	}

	images, err := readImages(form)
	if err != nil {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid image upload", "INVALID_REQUEST", err.Error())
	}
	return images, true, nil
}

func isMultipart(c fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}
