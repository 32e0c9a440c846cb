// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"slices"
	"strconv"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
	logger    *zap.Logger
}

func newBaseHandler(logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes a 400 on failure.
// The returned bool is false when a response was written.
func (h baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// businessError maps a flow error onto an HTTP status, keeping the flow's error code when it has one
func (h baseHandler) businessError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	code, message, details := fallbackCode, fallbackMessage, err.Error()
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
		if be.Err != nil {
			details = be.Err.Error()
		}
	}

	switch {
	case businessflow.IsInvalidCredentials(err), businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, message, code, nil)
	case businessflow.IsValidation(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, message, code, details)
	case businessflow.IsNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, message, code, nil)
	case businessflow.IsConflict(err):
		return h.ErrorResponse(c, fiber.StatusConflict, message, code, nil)
	case businessflow.IsImageUploadFailed(err), businessflow.IsStationSourceFailed(err):
		h.logger.Warn(fallbackMessage, zap.String("code", code), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusBadGateway, message, code, nil)
	}

	h.logger.Error(fallbackMessage, zap.String("code", code), zap.String("path", c.Path()), zap.Error(err))
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// requestContext creates a context with the default timeout and request-scoped values
func (h baseHandler) requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.requestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func (h baseHandler) requestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)

	return ctx, cancel
}

func (h baseHandler) pathID(c fiber.Ctx, name string) (uint, bool, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid "+name, "INVALID_ID", nil)
	}
	return uint(id), true, nil
}

// readImages loads every uploaded image from the multipart form.
// Both the "images" and "images[]" field names are accepted.
func readImages(form *multipart.Form) ([]businessflow.ImageFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := slices.Concat(form.File["images"], form.File["images[]"])
	files := make([]businessflow.ImageFile, 0, len(headers))
	for _, fh := range headers {
		content, err := readFormFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, businessflow.ImageFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return files, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "url":
		return err.Field() + " must be a valid URL"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "datetime":
		return err.Field() + " must be formatted as YYYY-MM-DD"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
