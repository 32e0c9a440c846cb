package models

import (
	"time"

	"gorm.io/gorm"
)

// Station is a retail outlet OMC prices are reported for.
// Stations are mirrored from an external list and soft-deleted when they disappear from it.
type Station struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null;uniqueIndex:uk_stations_name_location;index:idx_stations_name" json:"name"`
	Location string `gorm:"size:255;not null;uniqueIndex:uk_stations_name_location" json:"location"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Station) TableName() string {
	return "stations"
}

// StationKey identifies a station by its natural key
type StationKey struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (s Station) Key() StationKey {
	return StationKey{Name: s.Name, Location: s.Location}
}

// StationFilter represents filter criteria for station queries
type StationFilter struct {
	ID             *uint
	Name           *string
	Location       *string
	IncludeDeleted bool
}
