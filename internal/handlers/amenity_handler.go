package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingService is the amenity booking lifecycle used by the handlers
type BookingService interface {
	RequestBooking(ctx context.Context, actor services.Actor, req services.BookingRequest) (*models.AmenityBooking, error)
	ListMyBookings(ctx context.Context, actor services.Actor) ([]models.ResidentBookingView, error)
	ListAllBookings(ctx context.Context) ([]models.AdminBookingView, error)
	Adjudicate(ctx context.Context, actor services.Actor, bookingID, status, remark string) (*models.AdminBookingView, error)
	ScheduleDowntime(ctx context.Context, actor services.Actor, req services.DowntimeRequest) (*models.AmenityDowntime, error)
	ListDowntime(ctx context.Context, amenityID string) ([]models.AmenityDowntime, error)
	Availability(ctx context.Context, amenityID, date string) (*models.DayAvailability, error)
	SweepExpired(ctx context.Context, trigger string) (int64, error)
}

// CatalogService manages the amenity catalog
type CatalogService interface {
	ListForResidents(ctx context.Context) ([]models.Amenity, error)
	ListAll(ctx context.Context) ([]models.Amenity, error)
	Create(ctx context.Context, input services.AmenityInput) (*models.Amenity, error)
	Update(ctx context.Context, id string, input services.AmenityInput) (*models.Amenity, error)
	ToggleStatus(ctx context.Context, id string) (models.AmenityStatus, error)
	Delete(ctx context.Context, id string) error
}

// AmenityHandler serves the resident amenity routes and the admin catalog
type AmenityHandler struct {
	catalog  CatalogService
	bookings BookingService
	audit    AuditLogger
	logger   *logrus.Logger
}

// NewAmenityHandler creates a new amenity handler
func NewAmenityHandler(catalog CatalogService, bookings BookingService, audit AuditLogger, logger *logrus.Logger) *AmenityHandler {
	return &AmenityHandler{
		catalog:  catalog,
		bookings: bookings,
		audit:    audit,
		logger:   logger,
	}
}

// BookingStatusRequest is the body of a booking status change. Residents send
// admin_remark (ignored for them); the admin console sends remark.
type BookingStatusRequest struct {
	Status      string `json:"status" binding:"required,booking_status"`
	Remark      string `json:"remark"`
	AdminRemark string `json:"admin_remark"`
}

func (r BookingStatusRequest) remark() string {
	if strings.TrimSpace(r.Remark) != "" {
		return r.Remark
	}
	return r.AdminRemark
}

// ============================================================================
// RESIDENT ROUTES
// ============================================================================

// ListAmenities handles GET /api/amenities
func (h *AmenityHandler) ListAmenities(c *gin.Context) {
	amenities, err := h.catalog.ListForResidents(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "list_amenities")
		return
	}
	c.JSON(http.StatusOK, amenities)
}

// GetAvailability handles GET /api/amenities/:id/availability?date=YYYY-MM-DD
func (h *AmenityHandler) GetAvailability(c *gin.Context) {
	view, err := h.bookings.Availability(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err, "availability")
		return
	}
	c.JSON(http.StatusOK, view)
}

// BookAmenity handles POST /api/amenities/book
func (h *AmenityHandler) BookAmenity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookings.RequestBooking(c.Request.Context(), actor, req)
	if err != nil {
		var rejection *services.RejectionError
		if errors.As(err, &rejection) {
			safeLogBookingRequest(h.audit, h.logger, c, actor.UserID, nil, req, rejection.Reason)
		}
		respondError(c, h.logger, err, "book_amenity")
		return
	}

	safeLogBookingRequest(h.audit, h.logger, c, actor.UserID, &booking.ID, req, "")

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking request submitted successfully!",
		"booking": booking,
	})
}

// MyBookings handles GET /api/amenities/my-bookings
func (h *AmenityHandler) MyBookings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListMyBookings(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "my_bookings")
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// UpdateBookingStatus handles PATCH /api/amenities/bookings/:id. Admins may
// approve, reject or cancel; residents may only cancel their own booking.
func (h *AmenityHandler) UpdateBookingStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req BookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookings.Adjudicate(c.Request.Context(), actor, c.Param("id"), req.Status, req.remark())
	if err != nil {
		respondError(c, h.logger, err, "update_booking_status")
		return
	}

	safeLogBookingDecision(h.audit, h.logger, c, actor, booking.ID, booking.Status, booking.AdminRemark.String)

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Booking %s successfully.", strings.ToLower(string(booking.Status))),
		"booking": booking,
	})
}

// ============================================================================
// ADMIN CATALOG ROUTES
// ============================================================================

// AdminListAmenities handles GET /api/admin/amenities
func (h *AmenityHandler) AdminListAmenities(c *gin.Context) {
	amenities, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "admin_list_amenities")
		return
	}
	c.JSON(http.StatusOK, amenities)
}

// CreateAmenity handles POST /api/admin/amenities
func (h *AmenityHandler) CreateAmenity(c *gin.Context) {
	var input services.AmenityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	amenity, err := h.catalog.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err, "create_amenity")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      amenity.ID,
		"message": "Amenity created successfully",
		"amenity": amenity,
	})
}

// UpdateAmenity handles PUT /api/admin/amenities/:id
func (h *AmenityHandler) UpdateAmenity(c *gin.Context) {
	var input services.AmenityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	amenity, err := h.catalog.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err, "update_amenity")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Amenity updated successfully",
		"amenity": amenity,
	})
}

// ToggleAmenityStatus handles PATCH /api/admin/amenities/:id/status
func (h *AmenityHandler) ToggleAmenityStatus(c *gin.Context) {
	status, err := h.catalog.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "toggle_amenity_status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// DeleteAmenity handles DELETE /api/admin/amenities/:id
func (h *AmenityHandler) DeleteAmenity(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "delete_amenity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Amenity deleted"})
}
