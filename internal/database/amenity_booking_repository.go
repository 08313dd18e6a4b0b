package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const bookingColumns = `ab.id, ab.amenity_id, ab.user_id, ab.booking_date, ab.time_slot, ab.status, ab.admin_remark, ab.created_at, ab.updated_at`

// activeBookingsOnDayQuery selects Pending/Approved bookings of an amenity on day $2 (YYYY-MM-DD)
const activeBookingsOnDayQuery = `
	SELECT ` + bookingColumns + `
	FROM amenity_bookings ab
	WHERE ab.amenity_id = $1
	  AND ab.booking_date = $2::date
	  AND ab.status IN ('Pending', 'Approved')
`

// AdmissionTx is the view of the ledger available inside an admission
// transaction. The amenity row lock taken by LockAmenity is held until the
// transaction ends, serializing admissions for the same amenity.
type AdmissionTx interface {
	LockAmenity(id uuid.UUID) (*models.Amenity, error)
	DowntimeOnDay(amenityID uuid.UUID, day time.Time) ([]models.AmenityDowntime, error)
	ActiveBookingsOn(amenityID uuid.UUID, day time.Time) ([]models.AmenityBooking, error)
	InsertBooking(booking *models.AmenityBooking) error
}

// AmenityBookingRepository handles booking ledger database operations
type AmenityBookingRepository struct {
	db *sqlx.DB
}

// NewAmenityBookingRepository creates a new AmenityBookingRepository
func NewAmenityBookingRepository(db *sqlx.DB) *AmenityBookingRepository {
	return &AmenityBookingRepository{db: db}
}

// ============================================================================
// ADMISSION
// ============================================================================

// InAdmissionTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (r *AmenityBookingRepository) InAdmissionTx(ctx context.Context, fn func(AdmissionTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin admission transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&admissionTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit admission transaction: %w", err)
	}
	return nil
}

type admissionTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (a *admissionTx) LockAmenity(id uuid.UUID) (*models.Amenity, error) {
	var amenity models.Amenity
	query := `SELECT ` + amenityColumns + ` FROM amenities WHERE id = $1 FOR UPDATE`
	if err := a.tx.GetContext(a.ctx, &amenity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock amenity: %w", err)
	}
	return &amenity, nil
}

func (a *admissionTx) DowntimeOnDay(amenityID uuid.UUID, day time.Time) ([]models.AmenityDowntime, error) {
	windows := []models.AmenityDowntime{}
	if err := a.tx.SelectContext(a.ctx, &windows, downtimeOnDayQuery, amenityID, day.Format(models.BookingDateLayout)); err != nil {
		return nil, fmt.Errorf("failed to check downtime: %w", err)
	}
	return windows, nil
}

func (a *admissionTx) ActiveBookingsOn(amenityID uuid.UUID, day time.Time) ([]models.AmenityBooking, error) {
	bookings := []models.AmenityBooking{}
	if err := a.tx.SelectContext(a.ctx, &bookings, activeBookingsOnDayQuery, amenityID, day.Format(models.BookingDateLayout)); err != nil {
		return nil, fmt.Errorf("failed to check slot conflicts: %w", err)
	}
	return bookings, nil
}

func (a *admissionTx) InsertBooking(booking *models.AmenityBooking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.Status = models.BookingStatusPending

	query := `
		INSERT INTO amenity_bookings (id, amenity_id, user_id, booking_date, time_slot, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := a.tx.QueryRowxContext(a.ctx, query,
		booking.ID, booking.AmenityID, booking.UserID,
		booking.BookingDateString(), booking.TimeSlot, booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// ============================================================================
// EXPIRY
// ============================================================================

// ExpireStale moves every Pending booking created more than ttl ago to
// Expired, overwriting admin_remark with the system remark. Returns the
// number of rows changed; re-running immediately changes nothing.
func (r *AmenityBookingRepository) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `
		UPDATE amenity_bookings
		SET status = 'Expired', admin_remark = $1, updated_at = NOW()
		WHERE status = 'Pending'
		  AND created_at < NOW() - make_interval(secs => $2)
	`
	result, err := r.db.ExecContext(ctx, query, models.AutoExpiredRemark, ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale bookings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// ============================================================================
// READS
// ============================================================================

// ListByUser returns a resident's bookings with amenity names, latest booking date first
func (r *AmenityBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ResidentBookingView, error) {
	bookings := []models.ResidentBookingView{}
	query := `
		SELECT ` + bookingColumns + `, a.name AS amenity_name
		FROM amenity_bookings ab
		JOIN amenities a ON ab.amenity_id = a.id
		WHERE ab.user_id = $1
		ORDER BY ab.booking_date DESC, ab.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	return bookings, nil
}

const adminBookingViewQuery = `
	SELECT ` + bookingColumns + `,
	       a.name AS amenity_name,
	       u.name AS resident_name,
	       u.phone AS resident_phone,
	       u.flat_number
	FROM amenity_bookings ab
	JOIN amenities a ON ab.amenity_id = a.id
	JOIN users u ON ab.user_id = u.id
`

// ListAll returns every booking with amenity and resident details, newest request first
func (r *AmenityBookingRepository) ListAll(ctx context.Context) ([]models.AdminBookingView, error) {
	bookings := []models.AdminBookingView{}
	query := adminBookingViewQuery + ` ORDER BY ab.created_at DESC`
	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// GetDetail returns a booking with amenity and resident details, or nil when it does not exist
func (r *AmenityBookingRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.AdminBookingView, error) {
	var booking models.AdminBookingView
	query := adminBookingViewQuery + ` WHERE ab.id = $1`
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByID returns a booking row or nil when it does not exist
func (r *AmenityBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AmenityBooking, error) {
	var booking models.AmenityBooking
	query := `SELECT ` + bookingColumns + ` FROM amenity_bookings ab WHERE ab.id = $1`
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListActiveOnDay returns Pending/Approved bookings of an amenity on a day
func (r *AmenityBookingRepository) ListActiveOnDay(ctx context.Context, amenityID uuid.UUID, day time.Time) ([]models.AmenityBooking, error) {
	bookings := []models.AmenityBooking{}
	if err := r.db.SelectContext(ctx, &bookings, activeBookingsOnDayQuery, amenityID, day.Format(models.BookingDateLayout)); err != nil {
		return nil, fmt.Errorf("failed to list bookings for day: %w", err)
	}
	return bookings, nil
}

// ============================================================================
// ADJUDICATION
// ============================================================================

// TransitionFromPending sets status and admin_remark only if the booking is
// still Pending. Returns false when no row changed (missing or already terminal).
func (r *AmenityBookingRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, status models.AmenityBookingStatus, remark models.NullString) (bool, error) {
	query := `
		UPDATE amenity_bookings
		SET status = $2, admin_remark = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'Pending'
	`
	result, err := r.db.ExecContext(ctx, query, id, status, remark)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
