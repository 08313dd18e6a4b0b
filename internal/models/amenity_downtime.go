package models

import (
	"time"

	"github.com/google/uuid"
)

// AmenityDowntime is an admin-scheduled maintenance window. Rows are never
// updated; windows for the same amenity may overlap.
type AmenityDowntime struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AmenityID     uuid.UUID  `db:"amenity_id" json:"amenity_id"`
	StartDatetime time.Time  `db:"start_datetime" json:"start_datetime"`
	EndDatetime   time.Time  `db:"end_datetime" json:"end_datetime"`
	Reason        string     `db:"reason" json:"reason"`
	CreatedBy     *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// CoversDay reports whether the window intersects the calendar day starting at day
func (d *AmenityDowntime) CoversDay(day time.Time) bool {
	dayStart := TruncateToDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return d.StartDatetime.Before(dayEnd) && !d.EndDatetime.Before(dayStart)
}
