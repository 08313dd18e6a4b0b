package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// AMENITY BOOKING STATUS & TIME SLOTS
// ============================================================================

// AmenityBookingStatus represents the lifecycle state of an amenity booking
type AmenityBookingStatus string

const (
	BookingStatusPending   AmenityBookingStatus = "Pending"
	BookingStatusApproved  AmenityBookingStatus = "Approved"
	BookingStatusRejected  AmenityBookingStatus = "Rejected"
	BookingStatusCancelled AmenityBookingStatus = "Cancelled"
	BookingStatusExpired   AmenityBookingStatus = "Expired"
)

// AutoExpiredRemark is written over any admin remark when the sweeper expires a booking
const AutoExpiredRemark = "System: Auto-expired (No action within 24hrs)"

// IsValid checks if the status is one of the known values
func (s AmenityBookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusApproved, BookingStatusRejected,
		BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s AmenityBookingStatus) IsTerminal() bool {
	return s.IsValid() && s != BookingStatusPending
}

// IsActive reports whether the booking holds its slot (blocks other requests)
func (s AmenityBookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusApproved
}

// IsAdjudication reports whether an admin may move a Pending booking to s
func (s AmenityBookingStatus) IsAdjudication() bool {
	switch s {
	case BookingStatusApproved, BookingStatusRejected, BookingStatusCancelled:
		return true
	}
	return false
}

// ActiveBookingStatuses lists the statuses that occupy a slot
var ActiveBookingStatuses = []AmenityBookingStatus{BookingStatusPending, BookingStatusApproved}

// ParseAdjudicationStatus accepts "approved", "APPROVED" etc. and returns the canonical status
func ParseAdjudicationStatus(raw string) (AmenityBookingStatus, bool) {
	for _, s := range []AmenityBookingStatus{BookingStatusApproved, BookingStatusRejected, BookingStatusCancelled} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, true
		}
	}
	return "", false
}

// TimeSlot is one of the fixed daily partitions a booking occupies
type TimeSlot string

const (
	TimeSlotMorning TimeSlot = "morning"  // 6:00 AM - 12:00 PM
	TimeSlotEvening TimeSlot = "evening"  // 4:00 PM - 10:00 PM
	TimeSlotFullDay TimeSlot = "full-day" // 6:00 AM - 10:00 PM
)

// AllTimeSlots lists the slots in display order
var AllTimeSlots = []TimeSlot{TimeSlotMorning, TimeSlotEvening, TimeSlotFullDay}

// IsValid checks if the slot is one of the known values
func (t TimeSlot) IsValid() bool {
	switch t {
	case TimeSlotMorning, TimeSlotEvening, TimeSlotFullDay:
		return true
	}
	return false
}

// SlotsOverlap reports whether two slots on the same day occupy common time.
// full-day overlaps everything; morning and evening are disjoint.
func SlotsOverlap(a, b TimeSlot) bool {
	return a == TimeSlotFullDay || b == TimeSlotFullDay || a == b
}

// ============================================================================
// BOOKING DATES
// ============================================================================

// BookingDateLayout is the wire and storage format of booking_date
const BookingDateLayout = "2006-01-02"

var ErrInvalidBookingDate = errors.New("booking_date must be a date in YYYY-MM-DD format")

// ParseBookingDate parses YYYY-MM-DD, or an RFC 3339 timestamp truncated to
// its calendar date. The result is midnight UTC.
func ParseBookingDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(BookingDateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, ErrInvalidBookingDate
}

// TruncateToDay returns midnight of t's calendar day in t's location
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay compares calendar dates ignoring time and location offsets
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ============================================================================
// AMENITY BOOKING (amenity_bookings table)
// ============================================================================

// AmenityBooking is a row of the booking ledger
type AmenityBooking struct {
	ID          uuid.UUID            `db:"id" json:"id"`
	AmenityID   uuid.UUID            `db:"amenity_id" json:"amenity_id"`
	UserID      uuid.UUID            `db:"user_id" json:"user_id"`
	BookingDate time.Time            `db:"booking_date" json:"-"`
	TimeSlot    TimeSlot             `db:"time_slot" json:"time_slot"`
	Status      AmenityBookingStatus `db:"status" json:"status"`
	AdminRemark NullString           `db:"admin_remark" json:"admin_remark"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// BookingDateString formats booking_date as YYYY-MM-DD
func (b *AmenityBooking) BookingDateString() string {
	return b.BookingDate.Format(BookingDateLayout)
}

// IsStale reports whether a Pending booking has outlived ttl at now
func (b *AmenityBooking) IsStale(now time.Time, ttl time.Duration) bool {
	return b.Status == BookingStatusPending && b.CreatedAt.Before(now.Add(-ttl))
}

// ResidentBookingView is a booking joined with its amenity name (resident listing)
type ResidentBookingView struct {
	AmenityBooking
	AmenityName string `db:"amenity_name" json:"amenity_name"`
}

// AdminBookingView is a booking joined with amenity and resident details (admin listing)
type AdminBookingView struct {
	AmenityBooking
	AmenityName   string     `db:"amenity_name" json:"amenity_name"`
	ResidentName  string     `db:"resident_name" json:"resident_name"`
	ResidentPhone NullString `db:"resident_phone" json:"-"`
	FlatNumber    NullString `db:"flat_number" json:"flat_number"`
}

// bookingJSON is the wire shape of a booking; booking_date is a plain date
type bookingJSON struct {
	ID          uuid.UUID            `json:"id"`
	AmenityID   uuid.UUID            `json:"amenity_id"`
	UserID      uuid.UUID            `json:"user_id"`
	BookingDate string               `json:"booking_date"`
	TimeSlot    TimeSlot             `json:"time_slot"`
	Status      AmenityBookingStatus `json:"status"`
	AdminRemark NullString           `json:"admin_remark"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (b *AmenityBooking) wire() bookingJSON {
	return bookingJSON{
		ID:          b.ID,
		AmenityID:   b.AmenityID,
		UserID:      b.UserID,
		BookingDate: b.BookingDateString(),
		TimeSlot:    b.TimeSlot,
		Status:      b.Status,
		AdminRemark: b.AdminRemark,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// MarshalJSON implements json.Marshaler
func (b AmenityBooking) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.wire())
}

// MarshalJSON implements json.Marshaler
func (v ResidentBookingView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		bookingJSON
		AmenityName string `json:"amenity_name"`
	}{v.AmenityBooking.wire(), v.AmenityName})
}

// MarshalJSON implements json.Marshaler. The resident phone is not exposed.
func (v AdminBookingView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		bookingJSON
		AmenityName  string     `json:"amenity_name"`
		ResidentName string     `json:"resident_name"`
		FlatNumber   NullString `json:"flat_number"`
	}{v.AmenityBooking.wire(), v.AmenityName, v.ResidentName, v.FlatNumber})
}

// ============================================================================
// SLOT AVAILABILITY (calendar view)
// ============================================================================

// SlotAvailability describes one slot on one day
type SlotAvailability struct {
	TimeSlot TimeSlot `json:"time_slot"`
	Booked   bool     `json:"booked"`
}

// DayAvailability is the calendar view for one amenity on one day
type DayAvailability struct {
	AmenityID   uuid.UUID          `json:"amenity_id"`
	Date        string             `json:"date"`
	FullyBooked bool               `json:"fully_booked"`
	Closed      bool               `json:"closed"`
	ClosedFor   string             `json:"closed_for,omitempty"`
	Slots       []SlotAvailability `json:"slots"`
}

// BuildDayAvailability computes the calendar view from the active bookings
// and downtime windows of a single amenity and day.
//
// A slot is booked when any Pending/Approved booking overlaps it. The day is
// fully booked when an Approved full-day booking exists or both morning and
// evening are Approved.
func BuildDayAvailability(amenityID uuid.UUID, day time.Time, bookings []AmenityBooking, downtime []AmenityDowntime) DayAvailability {
	view := DayAvailability{
		AmenityID: amenityID,
		Date:      day.Format(BookingDateLayout),
		Slots:     make([]SlotAvailability, 0, len(AllTimeSlots)),
	}

	for i := range downtime {
		if downtime[i].CoversDay(day) {
			view.Closed = true
			view.ClosedFor = downtime[i].Reason
			break
		}
	}

	var approvedMorning, approvedEvening, approvedFullDay bool
	for _, b := range bookings {
		if !SameDay(b.BookingDate, day) || b.Status != BookingStatusApproved {
			continue
		}
		switch b.TimeSlot {
		case TimeSlotMorning:
			approvedMorning = true
		case TimeSlotEvening:
			approvedEvening = true
		case TimeSlotFullDay:
			approvedFullDay = true
		}
	}
	view.FullyBooked = approvedFullDay || (approvedMorning && approvedEvening)

	for _, slot := range AllTimeSlots {
		booked := view.Closed || HasSlotConflict(bookings, day, slot)
		view.Slots = append(view.Slots, SlotAvailability{TimeSlot: slot, Booked: booked})
	}

	return view
}

// MarkClosed marks every slot booked, e.g. for an amenity that is not accepting bookings
func (v *DayAvailability) MarkClosed(reason string) {
	v.Closed = true
	v.ClosedFor = reason
	for i := range v.Slots {
		v.Slots[i].Booked = true
	}
}

// HasSlotConflict reports whether any active booking on day overlaps slot
func HasSlotConflict(bookings []AmenityBooking, day time.Time, slot TimeSlot) bool {
	for _, b := range bookings {
		if b.Status.IsActive() && SameDay(b.BookingDate, day) && SlotsOverlap(b.TimeSlot, slot) {
			return true
		}
	}
	return false
}
