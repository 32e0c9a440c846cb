// Package dto contains Data Transfer Objects for API request and response structures
package dto

// APIResponse represents the standard API response structure
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PaginationInfo describes the page returned by a list endpoint
type PaginationInfo struct {
	Page       int   `json:"page" example:"1"`
	Size       int   `json:"size" example:"50"`
	Total      int64 `json:"total" example:"120"`
	TotalPages int   `json:"total_pages" example:"3"`
}

// NewPaginationInfo computes the page count for total items split into pages of size
func NewPaginationInfo(page, size int, total int64) PaginationInfo {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return PaginationInfo{Page: page, Size: size, Total: total, TotalPages: pages}
}
