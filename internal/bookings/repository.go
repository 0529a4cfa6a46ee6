package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleTransition is returned when a guarded update finds the booking
// already moved on. Callers racing on the same row treat it as
// "already resolved, no-op".
var ErrStaleTransition = errors.New("booking was modified concurrently")

type BookingListQuery struct {
	Status   string
	VenueID  string
	DateFrom string
	DateTo   string
	Page     int
	Limit    int
}

type Repository interface {
	CreateWithConflictCheck(ctx context.Context, booking *Booking) error

	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)
	GetByGatewayOrderRef(ctx context.Context, orderRef string) (*Booking, error)

	// UpdateTransition persists a booking whose status was mutated through
	// a lifecycle method, guarded on the status the caller read.
	UpdateTransition(ctx context.Context, booking *Booking, from Status) error

	// SetGatewayOrder links a booking to its gateway payment order.
	SetGatewayOrder(ctx context.Context, bookingID uuid.UUID, orderRef string) error

	// FindBlocking returns bookings for the given courts and date whose
	// status can block slots (confirmed/in_progress/reserved/pending).
	// Hold-expiry filtering happens in the caller.
	FindBlocking(ctx context.Context, courtIDs []uuid.UUID, date time.Time) ([]Booking, error)

	// FindStuckHolds returns pending/reserved bookings whose hold lapsed
	// before the cutoff.
	FindStuckHolds(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error)

	GetUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)
	GetVenueBookings(ctx context.Context, venueID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateWithConflictCheck inserts a booking atomically: it locks the court
// rows, re-validates slot overlap against blocking bookings inside the same
// transaction, and only then inserts. This closes the check-then-act window
// between an earlier availability query and the write.
func (r *repository) CreateWithConflictCheck(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courtIDs := booking.CourtIDs()

		// Lock the courts so two concurrent holds for the same court
		// serialize here.
		var locked []struct {
			ID uuid.UUID `gorm:"column:id"`
		}
		err := tx.Table("courts").
			Select("id").
			Where("id IN ?", courtIDs).
			Set("gorm:query_option", "FOR UPDATE").
			Find(&locked).Error
		if err != nil {
			return fmt.Errorf("failed to lock courts: %w", err)
		}
		if len(locked) != len(courtIDs) {
			return &ValidationError{Field: "court_ids", Message: "one or more courts do not exist"}
		}

		existing, err := findBlocking(tx, courtIDs, booking.Date)
		if err != nil {
			return fmt.Errorf("failed to check conflicts: %w", err)
		}

		conflicts := collectConflicts(existing, courtIDs, booking.TimeSlots(), time.Now())
		if len(conflicts) > 0 {
			return &SlotConflictError{Conflicts: conflicts}
		}

		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Courts").
		Preload("Slots").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Courts").
		Preload("Slots").
		Where("booking_code = ?", code).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByGatewayOrderRef(ctx context.Context, orderRef string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Courts").
		Preload("Slots").
		Where("gateway_order_ref = ?", orderRef).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) UpdateTransition(ctx context.Context, booking *Booking, from Status) error {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", booking.ID, from).
		Updates(map[string]interface{}{
			"status":                  booking.Status,
			"payment_status":          booking.PaymentStatus,
			"gateway_transaction_ref": booking.GatewayTransactionRef,
			"hold_until":              booking.HoldUntil,
			"cancellation_reason":     booking.CancellationReason,
			"cancelled_by":            booking.CancelledBy,
			"confirmed_at":            booking.ConfirmedAt,
			"paid_at":                 booking.PaidAt,
			"checked_in_at":           booking.CheckedInAt,
			"completed_at":            booking.CompletedAt,
			"cancelled_at":            booking.CancelledAt,
			"expired_at":              booking.ExpiredAt,
			"updated_at":              booking.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *repository) SetGatewayOrder(ctx context.Context, bookingID uuid.UUID, orderRef string) error {
	return r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", bookingID).
		Update("gateway_order_ref", orderRef).Error
}

func (r *repository) FindBlocking(ctx context.Context, courtIDs []uuid.UUID, date time.Time) ([]Booking, error) {
	return findBlocking(r.db.WithContext(ctx), courtIDs, date)
}

// findBlocking runs against either the repository handle or an open
// transaction so conflict checks and inserts can share one snapshot.
func findBlocking(tx *gorm.DB, courtIDs []uuid.UUID, date time.Time) ([]Booking, error) {
	var bookings []Booking
	blocking := []Status{StatusConfirmed, StatusInProgress, StatusReserved, StatusPending}

	err := tx.
		Preload("Courts").
		Preload("Slots").
		Joins("JOIN booking_courts bc ON bc.booking_id = bookings.id").
		Where("bc.court_id IN ?", courtIDs).
		Where("bookings.date = ?", date.Format("2006-01-02")).
		Where("bookings.status IN ?", blocking).
		Distinct("bookings.*").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) FindStuckHolds(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	q := r.db.WithContext(ctx).
		Preload("Courts").
		Preload("Slots").
		Where("status IN ?", []Status{StatusPending, StatusReserved}).
		Where("hold_until IS NOT NULL AND hold_until < ?", cutoff).
		Order("hold_until ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) GetUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	base := r.db.WithContext(ctx).Model(&Booking{}).Where("user_id = ?", userID)
	return r.paginate(base, query)
}

func (r *repository) GetVenueBookings(ctx context.Context, venueID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	base := r.db.WithContext(ctx).Model(&Booking{}).Where("venue_id = ?", venueID)
	return r.paginate(base, query)
}

func (r *repository) paginate(base *gorm.DB, query BookingListQuery) ([]Booking, int64, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	base = applyFilters(base, query)

	var totalCount int64
	if err := base.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	var bookings []Booking
	offset := (query.Page - 1) * query.Limit
	err := base.
		Preload("Courts").
		Preload("Slots").
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error

	return bookings, totalCount, err
}

func applyFilters(query *gorm.DB, filters BookingListQuery) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.VenueID != "" {
		if venueID, err := uuid.Parse(filters.VenueID); err == nil {
			query = query.Where("venue_id = ?", venueID)
		}
	}
	if filters.DateFrom != "" {
		if dateFrom, err := time.Parse("2006-01-02", filters.DateFrom); err == nil {
			query = query.Where("date >= ?", dateFrom)
		}
	}
	if filters.DateTo != "" {
		if dateTo, err := time.Parse("2006-01-02", filters.DateTo); err == nil {
			query = query.Where("date <= ?", dateTo)
		}
	}
	return query
}
