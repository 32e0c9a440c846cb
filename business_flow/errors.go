// Package businessflow contains the core business logic and use cases of the price service
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User and company errors
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidUserType    = errors.New("invalid user type")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrCompanyNameTaken   = errors.New("company name already exists")
	ErrPasswordRequired   = errors.New("password is required when no default password is configured")

	// Catalog errors
	ErrStationNotFound     = errors.New("station not found")
	ErrStationInactive     = errors.New("station is no longer active")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductNameTaken    = errors.New("product name already exists")
	ErrStationSourceFailed = errors.New("station source unavailable")

	// Price entry errors
	ErrPriceEntryNotFound   = errors.New("price entry not found")
	ErrImageNotFound        = errors.New("image not found")
	ErrSellerKindMismatch   = errors.New("field does not apply to the entry's seller type")
	ErrUnknownSellerType    = errors.New("unknown seller type")
	ErrInvalidSubmission    = errors.New("exactly one of the OMC or BDC entry must be supplied")
	ErrInvalidProductType   = errors.New("invalid product type")
	ErrInvalidWindow        = errors.New("invalid window")
	ErrInvalidTransaction   = errors.New("invalid transaction term")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrCreditTermsRequired  = errors.New("credit price and credit days apply to credit transactions only")
	ErrInvalidDate          = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidDateRange     = errors.New("from_date cannot be after to_date")
	ErrNothingToUpdate      = errors.New("at least one field must be provided for update")
	ErrInvalidImage         = errors.New("file is not a supported image")
	ErrImageTooLarge        = errors.New("image exceeds the maximum upload size")
	ErrImageUploadFailed    = errors.New("image upload failed")
	ErrImageNamesRequired   = errors.New("at least one image name is required")
	ErrInvalidPage          = errors.New("page must be between 1 and 100000")
	ErrInvalidPageSize      = errors.New("page size must be between 1 and 100")
	ErrPartnerNotConfigured = errors.New("company has no delivery endpoint configured")

	// Sync errors
	ErrEntryLocked         = errors.New("price entry is being synced by another worker")
	ErrExternalIDConflict  = errors.New("price entry already carries a different external id")
	ErrCreateNotHeld       = errors.New("price entry has no unconfirmed create to resolve")
	ErrDeliveryQueueFull   = errors.New("delivery queue is full")
	ErrDeliveryQueueClosed = errors.New("delivery queue is closed")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsCompanyNotFound(err error) bool {
	return errors.Is(err, ErrCompanyNotFound)
}

func IsCompanyNameTaken(err error) bool {
	return errors.Is(err, ErrCompanyNameTaken)
}

func IsStationNotFound(err error) bool {
	return errors.Is(err, ErrStationNotFound)
}

func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

func IsProductNameTaken(err error) bool {
	return errors.Is(err, ErrProductNameTaken)
}

func IsPriceEntryNotFound(err error) bool {
	return errors.Is(err, ErrPriceEntryNotFound)
}

func IsImageNotFound(err error) bool {
	return errors.Is(err, ErrImageNotFound)
}

func IsImageUploadFailed(err error) bool {
	return errors.Is(err, ErrImageUploadFailed)
}

func IsEntryLocked(err error) bool {
	return errors.Is(err, ErrEntryLocked)
}

func IsCreateNotHeld(err error) bool {
	return errors.Is(err, ErrCreateNotHeld)
}

func IsStationSourceFailed(err error) bool {
	return errors.Is(err, ErrStationSourceFailed)
}

// IsNotFound reports any missing-resource error
func IsNotFound(err error) bool {
	return IsUserNotFound(err) || IsCompanyNotFound(err) || IsStationNotFound(err) ||
		IsProductNotFound(err) || IsPriceEntryNotFound(err) || IsImageNotFound(err)
}

// IsConflict reports uniqueness violations
func IsConflict(err error) bool {
	return IsEmailAlreadyExists(err) || IsCompanyNameTaken(err) || IsProductNameTaken(err) || IsCreateNotHeld(err)
}

// IsValidation reports errors caused by caller input
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrSellerKindMismatch, ErrUnknownSellerType, ErrInvalidSubmission, ErrInvalidProductType,
		ErrInvalidWindow, ErrInvalidTransaction, ErrInvalidPrice, ErrCreditTermsRequired, ErrInvalidDate,
		ErrInvalidDateRange, ErrNothingToUpdate, ErrInvalidImage, ErrImageTooLarge, ErrImageNamesRequired,
		ErrInvalidPage, ErrInvalidPageSize, ErrStationInactive, ErrInvalidUserType, ErrPasswordRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
