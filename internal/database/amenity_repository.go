package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const amenityColumns = `id, name, description, icon_name, status, created_at, updated_at`

// AmenityRepository handles amenity catalog database operations
type AmenityRepository struct {
	db *sqlx.DB
}

// NewAmenityRepository creates a new AmenityRepository
func NewAmenityRepository(db *sqlx.DB) *AmenityRepository {
	return &AmenityRepository{db: db}
}

// ListVisible returns the resident catalog: every amenity that is not closed
func (r *AmenityRepository) ListVisible(ctx context.Context) ([]models.Amenity, error) {
	amenities := []models.Amenity{}
	query := `SELECT ` + amenityColumns + ` FROM amenities WHERE status <> 'closed' ORDER BY name`
	if err := r.db.SelectContext(ctx, &amenities, query); err != nil {
		return nil, fmt.Errorf("failed to list amenities: %w", err)
	}
	return amenities, nil
}

// ListAll returns every amenity regardless of status (admin view)
func (r *AmenityRepository) ListAll(ctx context.Context) ([]models.Amenity, error) {
	amenities := []models.Amenity{}
	query := `SELECT ` + amenityColumns + ` FROM amenities ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &amenities, query); err != nil {
		return nil, fmt.Errorf("failed to list all amenities: %w", err)
	}
	return amenities, nil
}

// GetByID returns an amenity or nil when it does not exist
func (r *AmenityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Amenity, error) {
	var amenity models.Amenity
	query := `SELECT ` + amenityColumns + ` FROM amenities WHERE id = $1`
	if err := r.db.GetContext(ctx, &amenity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get amenity: %w", err)
	}
	return &amenity, nil
}

// Create inserts a new amenity. Empty icon and status fall back to the defaults.
func (r *AmenityRepository) Create(ctx context.Context, amenity *models.Amenity) error {
	if amenity.ID == uuid.Nil {
		amenity.ID = uuid.New()
	}
	if amenity.IconName == "" {
		amenity.IconName = models.DefaultAmenityIcon
	}
	if amenity.Status == "" {
		amenity.Status = models.AmenityStatusAvailable
	}
	now := time.Now()
	amenity.CreatedAt = now
	amenity.UpdatedAt = now

	query := `
		INSERT INTO amenities (id, name, description, icon_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		amenity.ID, amenity.Name, amenity.Description, amenity.IconName,
		amenity.Status, amenity.CreatedAt, amenity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create amenity: %w", err)
	}
	return nil
}

// Update overwrites the editable fields. Returns false when the amenity does not exist.
func (r *AmenityRepository) Update(ctx context.Context, amenity *models.Amenity) (bool, error) {
	query := `
		UPDATE amenities
		SET name = $2, description = $3, icon_name = $4, status = $5, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		amenity.ID, amenity.Name, amenity.Description, amenity.IconName, amenity.Status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update amenity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ToggleStatus flips available <-> closed in one statement and returns the
// new status. Returns "" when the amenity does not exist.
func (r *AmenityRepository) ToggleStatus(ctx context.Context, id uuid.UUID) (models.AmenityStatus, error) {
	query := `
		UPDATE amenities
		SET status = CASE WHEN status = 'available' THEN 'closed' ELSE 'available' END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING status
	`
	var status models.AmenityStatus
	if err := r.db.QueryRowxContext(ctx, query, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to toggle amenity status: %w", err)
	}
	return status, nil
}

// Delete removes an amenity with its downtime and bookings. Returns false when it does not exist.
func (r *AmenityRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM amenities WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete amenity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
