package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/greenvalley/society-portal-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// respondError maps service errors to HTTP responses. Unexpected errors are
// logged and reported with a generic message.
func respondError(c *gin.Context, logger *logrus.Logger, err error, operation string) {
	var (
		validationErr *services.ValidationError
		rejectionErr  *services.RejectionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Error(),
			Code:    "INVALID_INPUT",
		})
	case errors.As(err, &rejectionErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "booking_rejected",
			Message: rejectionErr.Reason,
			Code:    "BOOKING_REJECTED",
		})
	case errors.Is(err, services.ErrAmenityNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Amenity not found", Code: "AMENITY_NOT_FOUND"})
	case errors.Is(err, services.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Booking not found", Code: "BOOKING_NOT_FOUND"})
	case errors.Is(err, services.ErrBookingNotPending):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking_not_pending", Message: err.Error(), Code: "BOOKING_NOT_PENDING"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "Unauthorized access", Code: "FORBIDDEN"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid_credentials", Message: "Invalid email or password", Code: "INVALID_CREDENTIALS"})
	case errors.Is(err, services.ErrAccountInactive):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "account_inactive", Message: "Your account is inactive. Please contact the society office.", Code: "ACCOUNT_INACTIVE"})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "email_taken", Message: "An account with this email already exists", Code: "EMAIL_TAKEN"})
	case errors.Is(err, context.DeadlineExceeded):
		logger.WithError(err).WithField("operation", operation).Warn("Request timed out")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable", Message: "The service is busy, please try again", Code: "TIMEOUT"})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"path":      c.FullPath(),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Something went wrong, please try again", Code: "INTERNAL_ERROR"})
	}
}

// respondBindError reports a request body that failed binding
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: validator.Describe(err),
		Code:    "INVALID_INPUT",
	})
}
