package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const downtimeColumns = `id, amenity_id, start_datetime, end_datetime, reason, created_by, created_at`

// downtimeOnDayQuery selects windows intersecting the calendar day $2 (YYYY-MM-DD)
const downtimeOnDayQuery = `
	SELECT ` + downtimeColumns + `
	FROM amenity_downtime
	WHERE amenity_id = $1
	  AND start_datetime < ($2::date + INTERVAL '1 day')
	  AND end_datetime >= $2::date
	ORDER BY start_datetime
`

// AmenityDowntimeRepository handles maintenance window database operations
type AmenityDowntimeRepository struct {
	db *sqlx.DB
}

// NewAmenityDowntimeRepository creates a new AmenityDowntimeRepository
func NewAmenityDowntimeRepository(db *sqlx.DB) *AmenityDowntimeRepository {
	return &AmenityDowntimeRepository{db: db}
}

// Create inserts a downtime window. Windows are never updated afterwards.
func (r *AmenityDowntimeRepository) Create(ctx context.Context, downtime *models.AmenityDowntime) error {
	if downtime.ID == uuid.Nil {
		downtime.ID = uuid.New()
	}
	downtime.CreatedAt = time.Now()

	query := `
		INSERT INTO amenity_downtime (id, amenity_id, start_datetime, end_datetime, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		downtime.ID, downtime.AmenityID, downtime.StartDatetime, downtime.EndDatetime,
		downtime.Reason, downtime.CreatedBy, downtime.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create downtime: %w", err)
	}
	return nil
}

// List returns downtime windows newest first, optionally for one amenity
func (r *AmenityDowntimeRepository) List(ctx context.Context, amenityID *uuid.UUID) ([]models.AmenityDowntime, error) {
	windows := []models.AmenityDowntime{}

	var err error
	if amenityID != nil {
		query := `SELECT ` + downtimeColumns + ` FROM amenity_downtime WHERE amenity_id = $1 ORDER BY start_datetime DESC`
		err = r.db.SelectContext(ctx, &windows, query, *amenityID)
	} else {
		query := `SELECT ` + downtimeColumns + ` FROM amenity_downtime ORDER BY start_datetime DESC`
		err = r.db.SelectContext(ctx, &windows, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list downtime: %w", err)
	}
	return windows, nil
}

// ListOnDay returns the windows of an amenity that intersect the given day
func (r *AmenityDowntimeRepository) ListOnDay(ctx context.Context, amenityID uuid.UUID, day time.Time) ([]models.AmenityDowntime, error) {
	windows := []models.AmenityDowntime{}
	if err := r.db.SelectContext(ctx, &windows, downtimeOnDayQuery, amenityID, day.Format(models.BookingDateLayout)); err != nil {
		return nil, fmt.Errorf("failed to list downtime for day: %w", err)
	}
	return windows, nil
}
