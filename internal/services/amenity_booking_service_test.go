package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	svc      *AmenityBookingService
	ledger   *memoryLedger
	notifier *recordingNotifier
	auditor  *recordingAuditor
	clock    *time.Time
	resident Actor
	other    Actor
	admin    Actor
	pool     *models.Amenity
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	clock := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	f := &bookingFixture{clock: &clock}
	now := func() time.Time { return *f.clock }

	f.ledger = newMemoryLedger(now)
	f.notifier = &recordingNotifier{}
	f.auditor = &recordingAuditor{}
	f.svc = NewAmenityBookingService(f.ledger, f.ledger, f.ledger.lookup(), f.notifier, f.auditor, 24*time.Hour, quietLogger())
	f.svc.now = now

	resident := f.ledger.addUser("Asha Perera", "+94771234567")
	other := f.ledger.addUser("Nimal Silva", "")
	f.resident = Actor{UserID: resident.ID, Role: models.RoleResident}
	f.other = Actor{UserID: other.ID, Role: models.RoleResident}
	f.admin = Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	f.pool = f.ledger.addAmenity("Swimming Pool", models.AmenityStatusAvailable)

	return f
}

func (f *bookingFixture) book(actor Actor, date string, slot models.TimeSlot) (*models.AmenityBooking, error) {
	return f.svc.RequestBooking(context.Background(), actor, BookingRequest{
		AmenityID:   f.pool.ID.String(),
		BookingDate: date,
		TimeSlot:    string(slot),
	})
}

func requireRejection(t *testing.T, err error) *RejectionError {
	t.Helper()
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection), "expected rejection, got %v", err)
	return rejection
}

func TestRequestBooking_Admits(t *testing.T) {
	f := newBookingFixture(t)

	booking, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, booking.ID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, "2026-11-10", booking.BookingDateString())
	assert.Equal(t, f.resident.UserID, booking.UserID)
	assert.Equal(t, []uuid.UUID{booking.ID}, f.notifier.requested)
}

func TestRequestBooking_Validation(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   BookingRequest
		field string
	}{
		{"bad amenity id", BookingRequest{AmenityID: "pool", BookingDate: "2026-11-10", TimeSlot: "morning"}, "amenity_id"},
		{"bad date", BookingRequest{AmenityID: f.pool.ID.String(), BookingDate: "10/11/2026", TimeSlot: "morning"}, "booking_date"},
		{"past date", BookingRequest{AmenityID: f.pool.ID.String(), BookingDate: "2026-10-31", TimeSlot: "morning"}, "booking_date"},
		{"bad slot", BookingRequest{AmenityID: f.pool.ID.String(), BookingDate: "2026-11-10", TimeSlot: "night"}, "time_slot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestBooking(ctx, f.resident, tt.req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("today is allowed", func(t *testing.T) {
		_, err := f.book(f.resident, "2026-11-01", models.TimeSlotEvening)
		assert.NoError(t, err)
	})
}

func TestRequestBooking_AmenityState(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	t.Run("unknown amenity", func(t *testing.T) {
		_, err := f.svc.RequestBooking(ctx, f.resident, BookingRequest{
			AmenityID: uuid.New().String(), BookingDate: "2026-11-10", TimeSlot: "morning",
		})
		assert.ErrorIs(t, err, ErrAmenityNotFound)
	})

	for _, status := range []models.AmenityStatus{models.AmenityStatusUnderMaintenance, models.AmenityStatusClosed} {
		t.Run(string(status), func(t *testing.T) {
			gym := f.ledger.addAmenity("Gym", status)
			_, err := f.svc.RequestBooking(ctx, f.resident, BookingRequest{
				AmenityID: gym.ID.String(), BookingDate: "2026-11-10", TimeSlot: "morning",
			})
			rejection := requireRejection(t, err)
			assert.Contains(t, rejection.Reason, string(status))
		})
	}
}

func TestRequestBooking_ExactSlotConflict(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	_, err = f.book(f.other, "2026-11-10", models.TimeSlotMorning)
	rejection := requireRejection(t, err)
	assert.Equal(t, reasonSlotTaken, rejection.Reason)

	_, err = f.book(f.other, "2026-11-10", models.TimeSlotEvening)
	assert.NoError(t, err, "morning and evening do not overlap")

	_, err = f.book(f.other, "2026-11-11", models.TimeSlotMorning)
	assert.NoError(t, err, "different day")
}

func TestRequestBooking_FullDayExclusivity(t *testing.T) {
	t.Run("full-day blocks later partial slots", func(t *testing.T) {
		f := newBookingFixture(t)
		_, err := f.book(f.resident, "2026-11-10", models.TimeSlotFullDay)
		require.NoError(t, err)

		for _, slot := range models.AllTimeSlots {
			_, err := f.book(f.other, "2026-11-10", slot)
			requireRejection(t, err)
		}
	})

	t.Run("partial slot blocks later full-day", func(t *testing.T) {
		f := newBookingFixture(t)
		_, err := f.book(f.resident, "2026-11-10", models.TimeSlotEvening)
		require.NoError(t, err)

		_, err = f.book(f.other, "2026-11-10", models.TimeSlotFullDay)
		requireRejection(t, err)
	})

	t.Run("terminal bookings free the slot", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotFullDay)
		require.NoError(t, err)

		_, err = f.svc.Adjudicate(context.Background(), f.admin, b.ID.String(), "Rejected", "Clash with society event")
		require.NoError(t, err)

		_, err = f.book(f.other, "2026-11-10", models.TimeSlotMorning)
		assert.NoError(t, err)
	})
}

func TestRequestBooking_DowntimeTakesPrecedence(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	_, err = f.svc.ScheduleDowntime(ctx, f.admin, DowntimeRequest{
		AmenityID:     f.pool.ID.String(),
		StartDatetime: "2026-11-10T14:00",
		EndDatetime:   "2026-11-11T09:00:00Z",
		Reason:        "pump replacement",
	})
	require.NoError(t, err)

	// Same slot as an existing booking: downtime reason wins over the conflict
	_, err = f.book(f.other, "2026-11-10", models.TimeSlotMorning)
	rejection := requireRejection(t, err)
	assert.Contains(t, rejection.Reason, "pump replacement")

	_, err = f.book(f.other, "2026-11-11", models.TimeSlotEvening)
	rejection = requireRejection(t, err)
	assert.Contains(t, rejection.Reason, "pump replacement")

	_, err = f.book(f.other, "2026-11-12", models.TimeSlotEvening)
	assert.NoError(t, err)
}

func TestRequestBooking_UniqueIndexBackstop(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	f.ledger.skipConflictCheck = true
	_, err = f.book(f.other, "2026-11-10", models.TimeSlotMorning)
	rejection := requireRejection(t, err)
	assert.Equal(t, reasonSlotTaken, rejection.Reason)
}

func TestRequestBooking_ConcurrentAdmission(t *testing.T) {
	f := newBookingFixture(t)

	const requesters = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		admitted  int
		rejected  int
		unexpects []error
	)

	start := make(chan struct{})
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		slot := models.TimeSlotMorning
		if i%2 == 0 {
			slot = models.TimeSlotFullDay
		}
		go func(slot models.TimeSlot) {
			defer wg.Done()
			<-start
			_, err := f.book(f.other, "2026-11-20", slot)

			mu.Lock()
			defer mu.Unlock()
			var rejection *RejectionError
			switch {
			case err == nil:
				admitted++
			case errors.As(err, &rejection):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}(slot)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, unexpects)
	assert.Equal(t, 1, admitted)
	assert.Equal(t, requesters-1, rejected)

	active, err := f.ledger.ListActiveOnDay(context.Background(), f.pool.ID, time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSweepExpired_Idempotent(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	stale, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)
	fresh, err := f.book(f.resident, "2026-11-10", models.TimeSlotEvening)
	require.NoError(t, err)
	decided, err := f.book(f.other, "2026-11-11", models.TimeSlotFullDay)
	require.NoError(t, err)
	_, err = f.svc.Adjudicate(ctx, f.admin, decided.ID.String(), "approved", "")
	require.NoError(t, err)

	f.ledger.ageBooking(stale.ID, 25*time.Hour)
	f.ledger.ageBooking(fresh.ID, 23*time.Hour)
	f.ledger.ageBooking(decided.ID, 72*time.Hour)

	n, err := f.svc.SweepExpired(ctx, SweepTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.svc.SweepExpired(ctx, SweepTriggerManual)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, models.BookingStatusExpired, f.ledger.status(stale.ID))
	assert.Equal(t, models.BookingStatusPending, f.ledger.status(fresh.ID))
	assert.Equal(t, models.BookingStatusApproved, f.ledger.status(decided.ID))

	expired, err := f.ledger.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AutoExpiredRemark, expired.AdminRemark.String)

	assert.Equal(t, []int64{1}, f.notifier.expired)
	assert.Equal(t, []string{SweepTriggerManual}, f.auditor.sweeps)
}

func TestSweepExpired_FreesSlot(t *testing.T) {
	f := newBookingFixture(t)

	stale, err := f.book(f.resident, "2026-11-10", models.TimeSlotFullDay)
	require.NoError(t, err)
	f.ledger.ageBooking(stale.ID, 48*time.Hour)

	_, err = f.svc.SweepExpired(context.Background(), SweepTriggerCron)
	require.NoError(t, err)

	_, err = f.book(f.other, "2026-11-10", models.TimeSlotMorning)
	assert.NoError(t, err)
}

func TestRequestBooking_SweepsStalePendingFirst(t *testing.T) {
	f := newBookingFixture(t)

	stale, err := f.book(f.resident, "2026-11-10", models.TimeSlotFullDay)
	require.NoError(t, err)
	f.ledger.ageBooking(stale.ID, 48*time.Hour)

	// No list call in between: admission itself expires the stale row
	admitted, err := f.book(f.other, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, admitted.Status)

	assert.Equal(t, models.BookingStatusExpired, f.ledger.status(stale.ID))
	assert.Equal(t, []string{SweepTriggerAdmission}, f.auditor.sweeps)
	assert.Equal(t, []int64{1}, f.notifier.expired)
}

func TestListMyBookings_RoundTrip(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first, err := f.book(f.resident, "2026-11-05", models.TimeSlotMorning)
	require.NoError(t, err)
	second, err := f.book(f.resident, "2026-11-12", models.TimeSlotEvening)
	require.NoError(t, err)
	_, err = f.book(f.other, "2026-11-06", models.TimeSlotEvening)
	require.NoError(t, err)

	mine, err := f.svc.ListMyBookings(ctx, f.resident)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	assert.Equal(t, second.ID, mine[0].ID, "latest booking date first")
	assert.Equal(t, first.ID, mine[1].ID)
	assert.Equal(t, "Swimming Pool", mine[0].AmenityName)
	assert.Equal(t, models.BookingStatusPending, mine[0].Status)
	assert.Equal(t, "2026-11-12", mine[0].BookingDateString())
}

func TestListMyBookings_SweepsFirst(t *testing.T) {
	f := newBookingFixture(t)

	b, err := f.book(f.resident, "2026-11-05", models.TimeSlotMorning)
	require.NoError(t, err)
	f.ledger.ageBooking(b.ID, 30*time.Hour)

	mine, err := f.svc.ListMyBookings(context.Background(), f.resident)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.BookingStatusExpired, mine[0].Status)
	assert.Equal(t, []string{SweepTriggerResidentList}, f.auditor.sweeps)
}

func TestListAllBookings(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.book(f.resident, "2026-11-05", models.TimeSlotMorning)
	require.NoError(t, err)
	*f.clock = f.clock.Add(time.Minute)
	newest, err := f.book(f.other, "2026-11-04", models.TimeSlotEvening)
	require.NoError(t, err)

	all, err := f.svc.ListAllBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newest.ID, all[0].ID, "newest request first")
	assert.Equal(t, "Nimal Silva", all[0].ResidentName)
}

func TestAdjudicate(t *testing.T) {
	ctx := context.Background()

	t.Run("admin approves with remark", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
		require.NoError(t, err)

		view, err := f.svc.Adjudicate(ctx, f.admin, b.ID.String(), "APPROVED", "  Enjoy  ")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusApproved, view.Status)
		assert.Equal(t, "Enjoy", view.AdminRemark.String)
		assert.Equal(t, "Swimming Pool", view.AmenityName)

		require.Len(t, f.notifier.decided, 1)
		assert.Equal(t, b.ID, f.notifier.decided[0].ID)
	})

	t.Run("terminal bookings are immutable", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
		require.NoError(t, err)

		_, err = f.svc.Adjudicate(ctx, f.admin, b.ID.String(), "Rejected", "")
		require.NoError(t, err)

		for _, status := range []string{"Approved", "Rejected", "Cancelled"} {
			_, err = f.svc.Adjudicate(ctx, f.admin, b.ID.String(), status, "")
			assert.ErrorIs(t, err, ErrBookingNotPending)
		}
		assert.Equal(t, models.BookingStatusRejected, f.ledger.status(b.ID))
	})

	t.Run("stale pending booking cannot be approved", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
		require.NoError(t, err)
		f.ledger.ageBooking(b.ID, 25*time.Hour)

		_, err = f.svc.Adjudicate(ctx, f.admin, b.ID.String(), "Approved", "")
		assert.ErrorIs(t, err, ErrBookingNotPending)
		assert.Equal(t, models.BookingStatusExpired, f.ledger.status(b.ID))
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newBookingFixture(t)
		_, err := f.svc.Adjudicate(ctx, f.admin, uuid.New().String(), "Approved", "")
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("bad input", func(t *testing.T) {
		f := newBookingFixture(t)
		var verr *ValidationError

		_, err := f.svc.Adjudicate(ctx, f.admin, "not-a-uuid", "Approved", "")
		assert.True(t, errors.As(err, &verr))

		_, err = f.svc.Adjudicate(ctx, f.admin, uuid.New().String(), "Expired", "")
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "status", verr.Field)
	})

	t.Run("resident cancels own booking", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
		require.NoError(t, err)

		view, err := f.svc.Adjudicate(ctx, f.resident, b.ID.String(), "cancelled", "changed plans")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, view.Status)
		assert.False(t, view.AdminRemark.Valid, "residents do not set admin remarks")
	})

	t.Run("resident cannot touch another booking", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
		require.NoError(t, err)

		_, err = f.svc.Adjudicate(ctx, f.other, b.ID.String(), "Cancelled", "")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, models.BookingStatusPending, f.ledger.status(b.ID))
	})

	t.Run("resident cannot approve", func(t *testing.T) {
		f := newBookingFixture(t)
		b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
		require.NoError(t, err)

		_, err = f.svc.Adjudicate(ctx, f.resident, b.ID.String(), "Approved", "")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestAdjudicate_ConcurrentDecisions(t *testing.T) {
	f := newBookingFixture(t)
	b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, status := range []string{"Approved", "Rejected", "Cancelled", "Approved"} {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			_, err := f.svc.Adjudicate(context.Background(), f.admin, b.ID.String(), status, "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrBookingNotPending)
			}
		}(status)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestScheduleDowntime_Validation(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   DowntimeRequest
		field string
	}{
		{"bad amenity", DowntimeRequest{AmenityID: "x", StartDatetime: "2026-11-10T08:00", EndDatetime: "2026-11-10T10:00", Reason: "r"}, "amenity_id"},
		{"bad start", DowntimeRequest{AmenityID: f.pool.ID.String(), StartDatetime: "tomorrow", EndDatetime: "2026-11-10T10:00", Reason: "r"}, "start_datetime"},
		{"end before start", DowntimeRequest{AmenityID: f.pool.ID.String(), StartDatetime: "2026-11-10T10:00", EndDatetime: "2026-11-10T08:00", Reason: "r"}, "end_datetime"},
		{"blank reason", DowntimeRequest{AmenityID: f.pool.ID.String(), StartDatetime: "2026-11-10T08:00", EndDatetime: "2026-11-10T10:00", Reason: "  "}, "reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ScheduleDowntime(ctx, f.admin, tt.req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := f.svc.ScheduleDowntime(ctx, f.admin, DowntimeRequest{
		AmenityID: uuid.New().String(), StartDatetime: "2026-11-10T08:00", EndDatetime: "2026-11-10T10:00", Reason: "r",
	})
	assert.ErrorIs(t, err, ErrAmenityNotFound)
}

func TestScheduleDowntime_LeavesExistingBookings(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	dt, err := f.svc.ScheduleDowntime(ctx, f.admin, DowntimeRequest{
		AmenityID:     f.pool.ID.String(),
		StartDatetime: "2026-11-10T00:00:00Z",
		EndDatetime:   "2026-11-10T23:59:59Z",
		Reason:        "deep clean",
	})
	require.NoError(t, err)
	require.NotNil(t, dt.CreatedBy)
	assert.Equal(t, f.admin.UserID, *dt.CreatedBy)
	assert.Equal(t, 1, f.notifier.downtime)

	assert.Equal(t, models.BookingStatusPending, f.ledger.status(b.ID))

	all, err := f.svc.ListDowntime(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	forPool, err := f.svc.ListDowntime(ctx, f.pool.ID.String())
	require.NoError(t, err)
	assert.Len(t, forPool, 1)

	none, err := f.svc.ListDowntime(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAvailability(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.book(f.resident, "2026-11-10", models.TimeSlotMorning)
	require.NoError(t, err)

	view, err := f.svc.Availability(ctx, f.pool.ID.String(), "2026-11-10")
	require.NoError(t, err)
	assert.Equal(t, "2026-11-10", view.Date)
	assert.False(t, view.Closed)
	assert.Equal(t, []models.SlotAvailability{
		{TimeSlot: models.TimeSlotMorning, Booked: true},
		{TimeSlot: models.TimeSlotEvening, Booked: false},
		{TimeSlot: models.TimeSlotFullDay, Booked: true},
	}, view.Slots)

	t.Run("under maintenance shows closed", func(t *testing.T) {
		hall := f.ledger.addAmenity("Party Hall", models.AmenityStatusUnderMaintenance)
		view, err := f.svc.Availability(ctx, hall.ID.String(), "2026-11-10")
		require.NoError(t, err)
		assert.True(t, view.Closed)
		assert.Equal(t, string(models.AmenityStatusUnderMaintenance), view.ClosedFor)
	})

	t.Run("closed amenity is hidden", func(t *testing.T) {
		court := f.ledger.addAmenity("Tennis Court", models.AmenityStatusClosed)
		_, err := f.svc.Availability(ctx, court.ID.String(), "2026-11-10")
		assert.ErrorIs(t, err, ErrAmenityNotFound)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := f.svc.Availability(ctx, f.pool.ID.String(), "soon")
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}
