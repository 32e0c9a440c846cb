package dto

import "time"

// StationDTO is the public view of a station
type StationDTO struct {
	ID        uint       `json:"id" example:"4"`
	Name      string     `json:"name" example:"Airport"`
	Location  string     `json:"location" example:"Accra"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// StationSyncResponse summarizes one reconciliation against the external station list
type StationSyncResponse struct {
	Received int `json:"received" example:"120"`
	Unique   int `json:"unique" example:"118"`
	Created  int `json:"created" example:"3"`
	Deleted  int `json:"deleted" example:"1"`
	Restored int `json:"restored" example:"0"`
}

// CreateProductRequest adds a catalog product
type CreateProductRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255" example:"Super Petrol"`
}

// ProductDTO is the public view of a catalog product
type ProductDTO struct {
	ID        uint       `json:"id" example:"2"`
	Name      string     `json:"name" example:"Super Petrol"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
