package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/database"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/internal/utils"
)

// AuditService persists security and booking events to audit_logs
type AuditService struct {
	db      database.DB
	enabled bool
}

// NewAuditService creates a new audit service. A disabled service accepts
// events and drops them.
func NewAuditService(db database.DB, enabled bool) *AuditService {
	return &AuditService{
		db:      db,
		enabled: enabled,
	}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID             // nil for pre-authentication and system events
	Action     string                 // e.g. "login", "booking_request", "booking_decision"
	EntityType string                 // e.g. "user", "amenity_booking", "amenity_downtime"
	EntityID   *uuid.UUID             // nil when the event has no single subject
	IPAddress  string                 // client IP address
	UserAgent  string                 // client user agent
	Details    map[string]interface{} // stored as JSONB
}

// RequestMeta carries client details for an audit record
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LogLogin logs a login attempt
func (s *AuditService) LogLogin(userID *uuid.UUID, email string, success bool, failureReason string, meta RequestMeta) error {
	details := map[string]interface{}{
		"email":       email,
		"success":     success,
		"device_info": utils.ParseUserAgent(meta.UserAgent),
	}
	if !success && failureReason != "" {
		details["failure_reason"] = failureReason
	}

	action := "login_failed"
	if success {
		action = "login"
	}

	return s.logEvent(AuditEvent{
		UserID:     userID,
		Action:     action,
		EntityType: "user",
		EntityID:   userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// LogRegistration logs a new resident account
func (s *AuditService) LogRegistration(userID uuid.UUID, email string, meta RequestMeta) error {
	return s.logEvent(AuditEvent{
		UserID:     &userID,
		Action:     "register",
		EntityType: "user",
		EntityID:   &userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details: map[string]interface{}{
			"email":       email,
			"device_info": utils.ParseUserAgent(meta.UserAgent),
		},
	})
}

// LogBookingRequest logs an admission decision. bookingID is nil on rejection.
func (s *AuditService) LogBookingRequest(userID uuid.UUID, bookingID *uuid.UUID, req BookingRequest, rejectReason string, meta RequestMeta) error {
	details := map[string]interface{}{
		"amenity_id":   req.AmenityID,
		"booking_date": req.BookingDate,
		"time_slot":    req.TimeSlot,
		"admitted":     bookingID != nil,
		"device_info":  utils.ParseUserAgent(meta.UserAgent),
	}
	if rejectReason != "" {
		details["reason"] = rejectReason
	}

	action := "booking_rejected"
	if bookingID != nil {
		action = "booking_request"
	}

	return s.logEvent(AuditEvent{
		UserID:     &userID,
		Action:     action,
		EntityType: "amenity_booking",
		EntityID:   bookingID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// LogBookingDecision logs an adjudication (or a resident cancelling their own booking)
func (s *AuditService) LogBookingDecision(actor Actor, bookingID uuid.UUID, status models.AmenityBookingStatus, remark string, meta RequestMeta) error {
	details := map[string]interface{}{
		"status":     status,
		"actor_role": actor.Role,
	}
	if remark != "" {
		details["remark"] = remark
	}

	return s.logEvent(AuditEvent{
		UserID:     &actor.UserID,
		Action:     "booking_decision",
		EntityType: "amenity_booking",
		EntityID:   &bookingID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// LogDowntimeScheduled logs a new maintenance window
func (s *AuditService) LogDowntimeScheduled(adminID uuid.UUID, downtime *models.AmenityDowntime, meta RequestMeta) error {
	return s.logEvent(AuditEvent{
		UserID:     &adminID,
		Action:     "downtime_scheduled",
		EntityType: "amenity_downtime",
		EntityID:   &downtime.ID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details: map[string]interface{}{
			"amenity_id":     downtime.AmenityID,
			"start_datetime": downtime.StartDatetime,
			"end_datetime":   downtime.EndDatetime,
			"reason":         downtime.Reason,
		},
	})
}

// LogExpirySweep logs a sweep that expired at least one booking
func (s *AuditService) LogExpirySweep(trigger string, expired int64) error {
	return s.logEvent(AuditEvent{
		Action:     "booking_expiry_sweep",
		EntityType: "amenity_booking",
		Details: map[string]interface{}{
			"trigger": trigger,
			"expired": expired,
		},
	})
}

// logEvent writes to the audit_logs table
func (s *AuditService) logEvent(event AuditEvent) error {
	if !s.enabled {
		return nil
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, NOW())
	`

	_, err = s.db.Exec(
		query,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		string(details),
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)

	result, err := s.db.Exec(`DELETE FROM audit_logs WHERE created_at < $1`, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
