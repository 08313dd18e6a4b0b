package models

import (
	"time"

	"github.com/google/uuid"
)

// AmenityStatus represents the availability of a shared facility
type AmenityStatus string

const (
	AmenityStatusAvailable        AmenityStatus = "available"
	AmenityStatusUnderMaintenance AmenityStatus = "under-maintenance"
	AmenityStatusClosed           AmenityStatus = "closed"
)

// DefaultAmenityIcon is used when an amenity is created without an icon
const DefaultAmenityIcon = "Building"

// IsValid checks if the amenity status is one of the known values
func (s AmenityStatus) IsValid() bool {
	switch s {
	case AmenityStatusAvailable, AmenityStatusUnderMaintenance, AmenityStatusClosed:
		return true
	}
	return false
}

// Toggled returns the status an admin toggle moves to: available <-> closed.
// Anything other than available reopens the amenity.
func (s AmenityStatus) Toggled() AmenityStatus {
	if s == AmenityStatusAvailable {
		return AmenityStatusClosed
	}
	return AmenityStatusAvailable
}

// Amenity represents a bookable shared facility (clubhouse, gym, pool...)
type Amenity struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	IconName    string        `db:"icon_name" json:"icon_name"`
	Status      AmenityStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// IsBookable reports whether new booking requests are accepted
func (a *Amenity) IsBookable() bool {
	return a.Status == AmenityStatusAvailable
}

// VisibleToResidents reports whether the amenity appears in the resident catalog
func (a *Amenity) VisibleToResidents() bool {
	return a.Status != AmenityStatusClosed
}
