package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/database"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingLedger is the storage the booking lifecycle runs on
type BookingLedger interface {
	InAdmissionTx(ctx context.Context, fn func(database.AdmissionTx) error) error
	ExpireStale(ctx context.Context, ttl time.Duration) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ResidentBookingView, error)
	ListAll(ctx context.Context) ([]models.AdminBookingView, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.AmenityBooking, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*models.AdminBookingView, error)
	ListActiveOnDay(ctx context.Context, amenityID uuid.UUID, day time.Time) ([]models.AmenityBooking, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, status models.AmenityBookingStatus, remark models.NullString) (bool, error)
}

// DowntimeStore persists maintenance windows
type DowntimeStore interface {
	Create(ctx context.Context, downtime *models.AmenityDowntime) error
	List(ctx context.Context, amenityID *uuid.UUID) ([]models.AmenityDowntime, error)
	ListOnDay(ctx context.Context, amenityID uuid.UUID, day time.Time) ([]models.AmenityDowntime, error)
}

// AmenityLookup resolves an amenity by id, returning nil when it does not exist
type AmenityLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Amenity, error)
}

// BookingNotifier fans out lifecycle events. Implementations must not block
// on slow recipients; failures are theirs to log.
type BookingNotifier interface {
	BookingRequested(ctx context.Context, booking *models.AmenityBooking)
	BookingDecided(ctx context.Context, booking *models.AdminBookingView)
	BookingsExpired(ctx context.Context, count int64, trigger string)
	DowntimeScheduled(ctx context.Context, downtime *models.AmenityDowntime)
}

// SweepAuditor records sweeps that changed rows
type SweepAuditor interface {
	LogExpirySweep(trigger string, expired int64) error
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the actor carries the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// BookingRequest is a resident's request for one slot on one day
type BookingRequest struct {
	AmenityID   string `json:"amenity_id" binding:"required"`
	BookingDate string `json:"booking_date" binding:"required"`
	TimeSlot    string `json:"time_slot" binding:"required,time_slot"`
}

// DowntimeRequest schedules a maintenance window
type DowntimeRequest struct {
	AmenityID     string `json:"amenity_id" binding:"required"`
	StartDatetime string `json:"start_datetime" binding:"required"`
	EndDatetime   string `json:"end_datetime" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

// Sweep triggers, recorded in logs and audit entries
const (
	SweepTriggerResidentList = "resident_list"
	SweepTriggerAdminList    = "admin_list"
	SweepTriggerAdjudication = "adjudication"
	SweepTriggerAdmission    = "admission"
	SweepTriggerCron         = "cron"
	SweepTriggerManual       = "manual"
)

// downtimeLayouts are accepted for start_datetime / end_datetime; naive
// values are read as UTC
var downtimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// AmenityBookingService implements the amenity booking lifecycle: admission,
// expiry, adjudication, downtime and availability
type AmenityBookingService struct {
	ledger     BookingLedger
	downtime   DowntimeStore
	amenities  AmenityLookup
	notifier   BookingNotifier
	auditor    SweepAuditor
	pendingTTL time.Duration
	now        func() time.Time
	logger     *logrus.Logger
}

// NewAmenityBookingService creates a new AmenityBookingService
func NewAmenityBookingService(
	ledger BookingLedger,
	downtime DowntimeStore,
	amenities AmenityLookup,
	notifier BookingNotifier,
	auditor SweepAuditor,
	pendingTTL time.Duration,
	logger *logrus.Logger,
) *AmenityBookingService {
	return &AmenityBookingService{
		ledger:     ledger,
		downtime:   downtime,
		amenities:  amenities,
		notifier:   notifier,
		auditor:    auditor,
		pendingTTL: pendingTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// ============================================================================
// ADMISSION
// ============================================================================

// RequestBooking validates the request and, in one transaction holding the
// amenity row lock, checks amenity status, downtime and slot conflicts before
// inserting a Pending booking. Business refusals are *RejectionError.
func (s *AmenityBookingService) RequestBooking(ctx context.Context, actor Actor, req BookingRequest) (*models.AmenityBooking, error) {
	amenityID, day, slot, err := s.validateBookingRequest(req)
	if err != nil {
		return nil, err
	}

	// Stale Pending rows must not hold slots during admission
	if _, err := s.SweepExpired(ctx, SweepTriggerAdmission); err != nil {
		return nil, err
	}

	booking := &models.AmenityBooking{
		AmenityID:   amenityID,
		UserID:      actor.UserID,
		BookingDate: day,
		TimeSlot:    slot,
	}

	err = s.ledger.InAdmissionTx(ctx, func(tx database.AdmissionTx) error {
		amenity, err := tx.LockAmenity(amenityID)
		if err != nil {
			return err
		}
		if amenity == nil {
			return ErrAmenityNotFound
		}
		if !amenity.IsBookable() {
			return amenityUnavailableRejection(string(amenity.Status))
		}

		windows, err := tx.DowntimeOnDay(amenityID, day)
		if err != nil {
			return err
		}
		for i := range windows {
			if windows[i].CoversDay(day) {
				return downtimeRejection(windows[i].Reason)
			}
		}

		existing, err := tx.ActiveBookingsOn(amenityID, day)
		if err != nil {
			return err
		}
		if models.HasSlotConflict(existing, day, slot) {
			return &RejectionError{Reason: reasonSlotTaken}
		}

		if err := tx.InsertBooking(booking); err != nil {
			if database.IsUniqueViolation(err) {
				return &RejectionError{Reason: reasonSlotTaken}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"amenity_id":   amenityID,
		"user_id":      actor.UserID,
		"booking_date": booking.BookingDateString(),
		"time_slot":    slot,
	}).Info("Amenity booking requested")

	s.notifier.BookingRequested(ctx, booking)

	return booking, nil
}

func (s *AmenityBookingService) validateBookingRequest(req BookingRequest) (uuid.UUID, time.Time, models.TimeSlot, error) {
	amenityID, err := uuid.Parse(strings.TrimSpace(req.AmenityID))
	if err != nil {
		return uuid.Nil, time.Time{}, "", newValidationError("amenity_id", "must be a valid amenity id")
	}

	day, err := models.ParseBookingDate(req.BookingDate)
	if err != nil {
		return uuid.Nil, time.Time{}, "", newValidationError("booking_date", "must be a date in YYYY-MM-DD format")
	}
	if day.Format(models.BookingDateLayout) < s.now().Format(models.BookingDateLayout) {
		return uuid.Nil, time.Time{}, "", newValidationError("booking_date", "cannot be in the past")
	}

	slot := models.TimeSlot(req.TimeSlot)
	if !slot.IsValid() {
		return uuid.Nil, time.Time{}, "", newValidationError("time_slot", "must be one of morning, evening, full-day")
	}

	return amenityID, day, slot, nil
}

// ============================================================================
// EXPIRY
// ============================================================================

// SweepExpired expires every Pending booking older than the pending TTL.
// Idempotent: a second call with no new stale rows changes nothing.
func (s *AmenityBookingService) SweepExpired(ctx context.Context, trigger string) (int64, error) {
	expired, err := s.ledger.ExpireStale(ctx, s.pendingTTL)
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired": expired,
			"trigger": trigger,
		}).Info("Expired stale amenity bookings")

		if err := s.auditor.LogExpirySweep(trigger, expired); err != nil {
			s.logger.WithError(err).Warn("Failed to audit expiry sweep")
		}
		s.notifier.BookingsExpired(ctx, expired, trigger)
	}

	return expired, nil
}

// ListMyBookings sweeps, then returns the actor's bookings latest date first
func (s *AmenityBookingService) ListMyBookings(ctx context.Context, actor Actor) ([]models.ResidentBookingView, error) {
	if _, err := s.SweepExpired(ctx, SweepTriggerResidentList); err != nil {
		return nil, err
	}
	return s.ledger.ListByUser(ctx, actor.UserID)
}

// ListAllBookings sweeps, then returns every booking newest request first
func (s *AmenityBookingService) ListAllBookings(ctx context.Context) ([]models.AdminBookingView, error) {
	if _, err := s.SweepExpired(ctx, SweepTriggerAdminList); err != nil {
		return nil, err
	}
	return s.ledger.ListAll(ctx)
}

// ============================================================================
// ADJUDICATION
// ============================================================================

// Adjudicate moves a Pending booking to Approved, Rejected or Cancelled.
// Admins may apply any of the three; a resident may only cancel their own
// booking. Stale bookings are swept first so they can no longer be approved.
// Terminal bookings are refused with ErrBookingNotPending.
func (s *AmenityBookingService) Adjudicate(ctx context.Context, actor Actor, rawID, rawStatus, remark string) (*models.AdminBookingView, error) {
	bookingID, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, newValidationError("id", "must be a valid booking id")
	}

	status, ok := models.ParseAdjudicationStatus(rawStatus)
	if !ok {
		return nil, newValidationError("status", "must be Approved, Rejected or Cancelled")
	}

	if !actor.IsAdmin() {
		if status != models.BookingStatusCancelled {
			return nil, ErrForbidden
		}
		booking, err := s.ledger.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if booking == nil {
			return nil, ErrBookingNotFound
		}
		if booking.UserID != actor.UserID {
			return nil, ErrForbidden
		}
		// Residents do not annotate their own cancellations
		remark = ""
	}

	if _, err := s.SweepExpired(ctx, SweepTriggerAdjudication); err != nil {
		return nil, err
	}

	changed, err := s.ledger.TransitionFromPending(ctx, bookingID, status, models.NewNullString(strings.TrimSpace(remark)))
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.ledger.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("%w: booking is %s", ErrBookingNotPending, current.Status)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"status":     status,
		"actor_id":   actor.UserID,
		"actor_role": actor.Role,
	}).Info("Amenity booking adjudicated")

	detail, err := s.ledger.GetDetail(ctx, bookingID)
	if err != nil {
		// Committed already; the caller only loses the echo
		s.logger.WithError(err).WithField("booking_id", bookingID).Warn("Failed to reload adjudicated booking")
		return &models.AdminBookingView{AmenityBooking: models.AmenityBooking{ID: bookingID, Status: status}}, nil
	}
	if detail != nil {
		s.notifier.BookingDecided(ctx, detail)
		return detail, nil
	}
	return &models.AdminBookingView{AmenityBooking: models.AmenityBooking{ID: bookingID, Status: status}}, nil
}

// ============================================================================
// DOWNTIME
// ============================================================================

// ScheduleDowntime records a maintenance window. Bookings already admitted
// for the window are left untouched.
func (s *AmenityBookingService) ScheduleDowntime(ctx context.Context, actor Actor, req DowntimeRequest) (*models.AmenityDowntime, error) {
	amenityID, err := uuid.Parse(strings.TrimSpace(req.AmenityID))
	if err != nil {
		return nil, newValidationError("amenity_id", "must be a valid amenity id")
	}

	start, err := parseDowntimeTime(req.StartDatetime)
	if err != nil {
		return nil, newValidationError("start_datetime", "must be an ISO 8601 date-time")
	}
	end, err := parseDowntimeTime(req.EndDatetime)
	if err != nil {
		return nil, newValidationError("end_datetime", "must be an ISO 8601 date-time")
	}
	if end.Before(start) {
		return nil, newValidationError("end_datetime", "must not be before start_datetime")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, newValidationError("reason", "is required")
	}

	amenity, err := s.amenities.GetByID(ctx, amenityID)
	if err != nil {
		return nil, err
	}
	if amenity == nil {
		return nil, ErrAmenityNotFound
	}

	createdBy := actor.UserID
	downtime := &models.AmenityDowntime{
		AmenityID:     amenityID,
		StartDatetime: start,
		EndDatetime:   end,
		Reason:        reason,
		CreatedBy:     &createdBy,
	}
	if err := s.downtime.Create(ctx, downtime); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"downtime_id": downtime.ID,
		"amenity_id":  amenityID,
		"start":       start,
		"end":         end,
	}).Info("Amenity downtime scheduled")

	s.notifier.DowntimeScheduled(ctx, downtime)

	return downtime, nil
}

// ListDowntime returns downtime windows, optionally for one amenity
func (s *AmenityBookingService) ListDowntime(ctx context.Context, rawAmenityID string) ([]models.AmenityDowntime, error) {
	if strings.TrimSpace(rawAmenityID) == "" {
		return s.downtime.List(ctx, nil)
	}

	amenityID, err := uuid.Parse(strings.TrimSpace(rawAmenityID))
	if err != nil {
		return nil, newValidationError("amenity_id", "must be a valid amenity id")
	}
	return s.downtime.List(ctx, &amenityID)
}

func parseDowntimeTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range downtimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date-time")
}

// ============================================================================
// AVAILABILITY
// ============================================================================

// Availability returns the calendar view of one amenity on one day
func (s *AmenityBookingService) Availability(ctx context.Context, rawAmenityID, rawDate string) (*models.DayAvailability, error) {
	amenityID, err := uuid.Parse(strings.TrimSpace(rawAmenityID))
	if err != nil {
		return nil, newValidationError("id", "must be a valid amenity id")
	}
	day, err := models.ParseBookingDate(rawDate)
	if err != nil {
		return nil, newValidationError("date", "must be a date in YYYY-MM-DD format")
	}

	amenity, err := s.amenities.GetByID(ctx, amenityID)
	if err != nil {
		return nil, err
	}
	if amenity == nil || !amenity.VisibleToResidents() {
		return nil, ErrAmenityNotFound
	}

	bookings, err := s.ledger.ListActiveOnDay(ctx, amenityID, day)
	if err != nil {
		return nil, err
	}
	windows, err := s.downtime.ListOnDay(ctx, amenityID, day)
	if err != nil {
		return nil, err
	}

	view := models.BuildDayAvailability(amenityID, day, bookings, windows)
	if !amenity.IsBookable() && !view.Closed {
		view.MarkClosed(string(amenity.Status))
	}
	return &view, nil
}
