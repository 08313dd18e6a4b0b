package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/database"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryLedger is an in-memory booking ledger. One mutex serializes admission
// transactions the way the amenity row lock does in Postgres.
type memoryLedger struct {
	mu        sync.Mutex
	now       func() time.Time
	amenities map[uuid.UUID]*models.Amenity
	bookings  map[uuid.UUID]*models.AmenityBooking
	downtime  []models.AmenityDowntime
	users     map[uuid.UUID]*models.User

	// skipConflictCheck makes ActiveBookingsOn return nothing so the unique
	// index path is exercised
	skipConflictCheck bool
}

func newMemoryLedger(now func() time.Time) *memoryLedger {
	return &memoryLedger{
		now:       now,
		amenities: map[uuid.UUID]*models.Amenity{},
		bookings:  map[uuid.UUID]*models.AmenityBooking{},
		users:     map[uuid.UUID]*models.User{},
	}
}

func (m *memoryLedger) addAmenity(name string, status models.AmenityStatus) *models.Amenity {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &models.Amenity{ID: uuid.New(), Name: name, Status: status, IconName: models.DefaultAmenityIcon}
	m.amenities[a.ID] = a
	return a
}

func (m *memoryLedger) addUser(name, phone string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: uuid.New(), Name: name, Phone: models.NewNullString(phone), Role: models.RoleResident, Status: models.UserStatusActive}
	m.users[u.ID] = u
	return u
}

func (m *memoryLedger) ageBooking(id uuid.UUID, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[id].CreatedAt = m.bookings[id].CreatedAt.Add(-by)
}

func (m *memoryLedger) status(id uuid.UUID) models.AmenityBookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status
}

func (m *memoryLedger) InAdmissionTx(_ context.Context, fn func(database.AdmissionTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{ledger: m}
	if err := fn(tx); err != nil {
		return err
	}
	for _, b := range tx.inserted {
		m.bookings[b.ID] = b
	}
	return nil
}

type memoryTx struct {
	ledger   *memoryLedger
	inserted []*models.AmenityBooking
}

func (t *memoryTx) LockAmenity(id uuid.UUID) (*models.Amenity, error) {
	a, ok := t.ledger.amenities[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (t *memoryTx) DowntimeOnDay(amenityID uuid.UUID, day time.Time) ([]models.AmenityDowntime, error) {
	var out []models.AmenityDowntime
	for _, d := range t.ledger.downtime {
		if d.AmenityID == amenityID && d.CoversDay(day) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *memoryTx) ActiveBookingsOn(amenityID uuid.UUID, day time.Time) ([]models.AmenityBooking, error) {
	if t.ledger.skipConflictCheck {
		return nil, nil
	}
	return t.ledger.activeOn(amenityID, day), nil
}

func (t *memoryTx) InsertBooking(booking *models.AmenityBooking) error {
	for _, b := range t.ledger.activeOn(booking.AmenityID, booking.BookingDate) {
		if b.TimeSlot == booking.TimeSlot {
			return &pq.Error{Code: "23505", Constraint: "uq_amenity_bookings_active_slot"}
		}
	}
	booking.ID = uuid.New()
	booking.Status = models.BookingStatusPending
	booking.CreatedAt = t.ledger.now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	t.inserted = append(t.inserted, &cp)
	return nil
}

func (m *memoryLedger) activeOn(amenityID uuid.UUID, day time.Time) []models.AmenityBooking {
	var out []models.AmenityBooking
	for _, b := range m.bookings {
		if b.AmenityID == amenityID && models.SameDay(b.BookingDate, day) && b.Status.IsActive() {
			out = append(out, *b)
		}
	}
	return out
}

func (m *memoryLedger) ExpireStale(_ context.Context, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := m.now()
	for _, b := range m.bookings {
		if b.IsStale(now, ttl) {
			b.Status = models.BookingStatusExpired
			b.AdminRemark = models.NewNullString(models.AutoExpiredRemark)
			b.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memoryLedger) ListByUser(_ context.Context, userID uuid.UUID) ([]models.ResidentBookingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.ResidentBookingView{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, models.ResidentBookingView{AmenityBooking: *b, AmenityName: m.amenities[b.AmenityID].Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out, nil
}

func (m *memoryLedger) ListAll(_ context.Context) ([]models.AdminBookingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.AdminBookingView{}
	for _, b := range m.bookings {
		out = append(out, m.detail(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryLedger) detail(b *models.AmenityBooking) models.AdminBookingView {
	view := models.AdminBookingView{AmenityBooking: *b}
	if a, ok := m.amenities[b.AmenityID]; ok {
		view.AmenityName = a.Name
	}
	if u, ok := m.users[b.UserID]; ok {
		view.ResidentName = u.Name
		view.ResidentPhone = u.Phone
		view.FlatNumber = u.FlatNumber
	}
	return view
}

func (m *memoryLedger) GetByID(_ context.Context, id uuid.UUID) (*models.AmenityBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memoryLedger) GetDetail(_ context.Context, id uuid.UUID) (*models.AdminBookingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	view := m.detail(b)
	return &view, nil
}

func (m *memoryLedger) ListActiveOnDay(_ context.Context, amenityID uuid.UUID, day time.Time) ([]models.AmenityBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeOn(amenityID, day), nil
}

func (m *memoryLedger) TransitionFromPending(_ context.Context, id uuid.UUID, status models.AmenityBookingStatus, remark models.NullString) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingStatusPending {
		return false, nil
	}
	b.Status = status
	b.AdminRemark = remark
	b.UpdatedAt = m.now()
	return true, nil
}

// Downtime store and amenity lookup over the same state

func (m *memoryLedger) Create(_ context.Context, downtime *models.AmenityDowntime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	downtime.ID = uuid.New()
	downtime.CreatedAt = m.now()
	m.downtime = append(m.downtime, *downtime)
	return nil
}

func (m *memoryLedger) List(_ context.Context, amenityID *uuid.UUID) ([]models.AmenityDowntime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AmenityDowntime{}
	for _, d := range m.downtime {
		if amenityID == nil || d.AmenityID == *amenityID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryLedger) ListOnDay(_ context.Context, amenityID uuid.UUID, day time.Time) ([]models.AmenityDowntime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{ledger: m}
	return tx.DowntimeOnDay(amenityID, day)
}

type amenityLookupFunc func(ctx context.Context, id uuid.UUID) (*models.Amenity, error)

func (f amenityLookupFunc) GetByID(ctx context.Context, id uuid.UUID) (*models.Amenity, error) {
	return f(ctx, id)
}

func (m *memoryLedger) lookup() AmenityLookup {
	return amenityLookupFunc(func(_ context.Context, id uuid.UUID) (*models.Amenity, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		a, ok := m.amenities[id]
		if !ok {
			return nil, nil
		}
		cp := *a
		return &cp, nil
	})
}

// recordingNotifier captures lifecycle events
type recordingNotifier struct {
	mu        sync.Mutex
	requested []uuid.UUID
	decided   []models.AdminBookingView
	expired   []int64
	downtime  int
}

func (n *recordingNotifier) BookingRequested(_ context.Context, b *models.AmenityBooking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, b.ID)
}

func (n *recordingNotifier) BookingDecided(_ context.Context, b *models.AdminBookingView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decided = append(n.decided, *b)
}

func (n *recordingNotifier) BookingsExpired(_ context.Context, count int64, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, count)
}

func (n *recordingNotifier) DowntimeScheduled(context.Context, *models.AmenityDowntime) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.downtime++
}

type recordingAuditor struct {
	mu     sync.Mutex
	sweeps []string
}

func (a *recordingAuditor) LogExpirySweep(trigger string, _ int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweeps = append(a.sweeps, trigger)
	return nil
}
