package models

import (
	"time"

	"gorm.io/gorm"
)

// SyncOperation is the partner call a sync log row describes
type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "create"
	SyncOperationUpdate SyncOperation = "update"
)

// SyncLogStatus is the outcome of one delivery attempt
type SyncLogStatus string

const (
	SyncLogStatusSucceeded SyncLogStatus = "succeeded"
	SyncLogStatusFailed    SyncLogStatus = "failed"
	// the partner answered 200 without an id
	SyncLogStatusUnconfirmed SyncLogStatus = "unconfirmed"
	// an administrator settled an unconfirmed create
	SyncLogStatusResolved SyncLogStatus = "resolved"
)

// SyncLog records one delivery attempt for a price entry
type SyncLog struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	PriceEntryID uint          `gorm:"not null;index:idx_sync_logs_price_entry_id" json:"price_entry_id"`
	Operation    SyncOperation `gorm:"type:varchar(8);not null" json:"operation"`
	Status       SyncLogStatus `gorm:"type:varchar(16);not null;default:'failed'" json:"status"`
	StatusCode   *int          `json:"status_code,omitempty"`
	ErrorMessage *string       `gorm:"type:text" json:"error_message,omitempty"`
	Revision     uint          `gorm:"not null;default:0" json:"revision"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_sync_logs_created_at" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}

// SyncLogFilter represents filter criteria for sync log queries
type SyncLogFilter struct {
	PriceEntryID *uint
	Operation    *SyncOperation
	Status       *SyncLogStatus
}
