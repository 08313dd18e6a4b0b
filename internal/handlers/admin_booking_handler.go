package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminBookingHandler serves the admin booking console
type AdminBookingHandler struct {
	bookings BookingService
	audit    AuditLogger
	logger   *logrus.Logger
}

// NewAdminBookingHandler creates a new admin booking handler
func NewAdminBookingHandler(bookings BookingService, audit AuditLogger, logger *logrus.Logger) *AdminBookingHandler {
	return &AdminBookingHandler{
		bookings: bookings,
		audit:    audit,
		logger:   logger,
	}
}

// ListBookings handles GET /api/admin/amenity-bookings
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	bookings, err := h.bookings.ListAllBookings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "admin_list_bookings")
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// UpdateStatus handles PATCH /api/admin/amenity-bookings/:id/status
func (h *AdminBookingHandler) UpdateStatus(c *gin.Context) {
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
		respondError(c, h.logger, err, "adjudicate_booking")
		return
	}

	safeLogBookingDecision(h.audit, h.logger, c, actor, booking.ID, booking.Status, booking.AdminRemark.String)

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Booking %s successfully", booking.Status),
		"booking": booking,
	})
}

// ScheduleDowntime handles POST /api/admin/amenity-bookings/downtime
func (h *AdminBookingHandler) ScheduleDowntime(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.DowntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	downtime, err := h.bookings.ScheduleDowntime(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err, "schedule_downtime")
		return
	}

	safeLogDowntimeScheduled(h.audit, h.logger, c, actor.UserID, downtime)

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Downtime scheduled successfully",
		"downtime": downtime,
	})
}

// ListDowntime handles GET /api/admin/amenity-bookings/downtime?amenity_id=
func (h *AdminBookingHandler) ListDowntime(c *gin.Context) {
	windows, err := h.bookings.ListDowntime(c.Request.Context(), c.Query("amenity_id"))
	if err != nil {
		respondError(c, h.logger, err, "list_downtime")
		return
	}
	c.JSON(http.StatusOK, windows)
}

// RunSweep handles POST /api/admin/amenity-bookings/sweep
func (h *AdminBookingHandler) RunSweep(c *gin.Context) {
	expired, err := h.bookings.SweepExpired(c.Request.Context(), services.SweepTriggerManual)
	if err != nil {
		respondError(c, h.logger, err, "sweep_expired")
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
