package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/middleware"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/greenvalley/society-portal-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditLogger records security and booking events
type AuditLogger interface {
	LogLogin(userID *uuid.UUID, email string, success bool, failureReason string, meta services.RequestMeta) error
	LogRegistration(userID uuid.UUID, email string, meta services.RequestMeta) error
	LogBookingRequest(userID uuid.UUID, bookingID *uuid.UUID, req services.BookingRequest, rejectReason string, meta services.RequestMeta) error
	LogBookingDecision(actor services.Actor, bookingID uuid.UUID, status models.AmenityBookingStatus, remark string, meta services.RequestMeta) error
	LogDowntimeScheduled(adminID uuid.UUID, downtime *models.AmenityDowntime, meta services.RequestMeta) error
}

// requestMeta extracts the client details recorded with audit events
func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}

// logAuditError logs audit service errors without failing the request
func logAuditError(logger *logrus.Logger, operation string, err error) {
	if err != nil {
		logger.WithError(err).WithField("operation", operation).Warn("AUDIT ERROR")
	}
}

// Helper functions to log audit events with error handling

func safeLogLogin(audit AuditLogger, logger *logrus.Logger, c *gin.Context, userID *uuid.UUID, email string, success bool, reason string) {
	logAuditError(logger, "LogLogin", audit.LogLogin(userID, email, success, reason, requestMeta(c)))
}

func safeLogRegistration(audit AuditLogger, logger *logrus.Logger, c *gin.Context, userID uuid.UUID, email string) {
	logAuditError(logger, "LogRegistration", audit.LogRegistration(userID, email, requestMeta(c)))
}

func safeLogBookingRequest(audit AuditLogger, logger *logrus.Logger, c *gin.Context, userID uuid.UUID, bookingID *uuid.UUID, req services.BookingRequest, reason string) {
	logAuditError(logger, "LogBookingRequest", audit.LogBookingRequest(userID, bookingID, req, reason, requestMeta(c)))
}

func safeLogBookingDecision(audit AuditLogger, logger *logrus.Logger, c *gin.Context, actor services.Actor, bookingID uuid.UUID, status models.AmenityBookingStatus, remark string) {
	logAuditError(logger, "LogBookingDecision", audit.LogBookingDecision(actor, bookingID, status, remark, requestMeta(c)))
}

func safeLogDowntimeScheduled(audit AuditLogger, logger *logrus.Logger, c *gin.Context, adminID uuid.UUID, downtime *models.AmenityDowntime) {
	logAuditError(logger, "LogDowntimeScheduled", audit.LogDowntimeScheduled(adminID, downtime, requestMeta(c)))
}

// currentActor returns the authenticated caller. It answers 401 and
// returns false when the auth middleware did not run.
func currentActor(c *gin.Context) (services.Actor, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
			Code:    "MISSING_USER_CONTEXT",
		})
		return services.Actor{}, false
	}
	return services.Actor{UserID: userCtx.UserID, Role: userCtx.Role}, true
}
