package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/cache"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AmenityStore persists the amenity catalog
type AmenityStore interface {
	ListVisible(ctx context.Context) ([]models.Amenity, error)
	ListAll(ctx context.Context) ([]models.Amenity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Amenity, error)
	Create(ctx context.Context, amenity *models.Amenity) error
	Update(ctx context.Context, amenity *models.Amenity) (bool, error)
	ToggleStatus(ctx context.Context, id uuid.UUID) (models.AmenityStatus, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// AmenityInput is the admin payload for creating or editing an amenity
type AmenityInput struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	IconName    string `json:"icon_name" binding:"max=50"`
	Status      string `json:"status" binding:"omitempty,amenity_status"`
}

// AmenityService manages the amenity catalog. The resident-facing list is
// cached; every admin write invalidates it.
type AmenityService struct {
	store  AmenityStore
	cache  cache.AmenityCache
	logger *logrus.Logger
}

// NewAmenityService creates a new AmenityService
func NewAmenityService(store AmenityStore, catalogCache cache.AmenityCache, logger *logrus.Logger) *AmenityService {
	return &AmenityService{
		store:  store,
		cache:  catalogCache,
		logger: logger,
	}
}

// ListForResidents returns every amenity that is not closed
func (s *AmenityService) ListForResidents(ctx context.Context) ([]models.Amenity, error) {
	if amenities, ok, err := s.cache.GetCatalog(ctx); err != nil {
		s.logger.WithError(err).Warn("Amenity catalog cache read failed")
	} else if ok {
		return amenities, nil
	}

	amenities, err := s.store.ListVisible(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetCatalog(ctx, amenities); err != nil {
		s.logger.WithError(err).Warn("Amenity catalog cache write failed")
	}
	return amenities, nil
}

// ListAll returns every amenity, closed ones included
func (s *AmenityService) ListAll(ctx context.Context) ([]models.Amenity, error) {
	return s.store.ListAll(ctx)
}

// Create adds an amenity. It starts available with the default icon unless given.
func (s *AmenityService) Create(ctx context.Context, input AmenityInput) (*models.Amenity, error) {
	amenity, err := amenityFromInput(input)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, amenity); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.WithFields(logrus.Fields{
		"amenity_id": amenity.ID,
		"name":       amenity.Name,
	}).Info("Amenity created")

	return amenity, nil
}

// Update overwrites an amenity's editable fields. Status is kept when omitted.
func (s *AmenityService) Update(ctx context.Context, rawID string, input AmenityInput) (*models.Amenity, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, newValidationError("id", "must be a valid amenity id")
	}

	amenity, err := amenityFromInput(input)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrAmenityNotFound
	}

	amenity.ID = id
	if amenity.IconName == "" {
		amenity.IconName = models.DefaultAmenityIcon
	}
	// An omitted status keeps the stored one
	if amenity.Status == "" {
		amenity.Status = current.Status
	}

	found, err := s.store.Update(ctx, amenity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAmenityNotFound
	}
	s.invalidate(ctx)

	return amenity, nil
}

// ToggleStatus flips an amenity between available and closed
func (s *AmenityService) ToggleStatus(ctx context.Context, rawID string) (models.AmenityStatus, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return "", newValidationError("id", "must be a valid amenity id")
	}

	status, err := s.store.ToggleStatus(ctx, id)
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", ErrAmenityNotFound
	}
	s.invalidate(ctx)

	s.logger.WithFields(logrus.Fields{
		"amenity_id": id,
		"status":     status,
	}).Info("Amenity status toggled")

	return status, nil
}

// Delete removes an amenity together with its bookings and downtime
func (s *AmenityService) Delete(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return newValidationError("id", "must be a valid amenity id")
	}

	found, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrAmenityNotFound
	}
	s.invalidate(ctx)

	s.logger.WithField("amenity_id", id).Info("Amenity deleted")
	return nil
}

func (s *AmenityService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.logger.WithError(err).Warn("Amenity catalog cache invalidation failed")
	}
}

func amenityFromInput(input AmenityInput) (*models.Amenity, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, newValidationError("name", "is required")
	}

	status := models.AmenityStatus(strings.TrimSpace(input.Status))
	if status != "" && !status.IsValid() {
		return nil, newValidationError("status", "must be one of available, under-maintenance, closed")
	}

	return &models.Amenity{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		IconName:    strings.TrimSpace(input.IconName),
		Status:      status,
	}, nil
}
