package bookings

import (
	"time"

	"courtly/internal/timeslot"

	"github.com/google/uuid"
)

// Booking is the central entity: a claim on one or more courts of a venue
// for a set of time slots on a calendar date. A booking is never physically
// deleted; terminal statuses are final markers.
type Booking struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingCode string     `gorm:"unique;not null" json:"booking_code"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	VenueID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"venue_id"`
	Date        time.Time  `gorm:"type:date;index:idx_bookings_date;not null" json:"date"`

	Status        Status        `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentMethod string        `gorm:"type:varchar(20)" json:"payment_method,omitempty"`

	// Gateway correlation. OrderRef is assigned by us at link creation,
	// TransactionRef by the gateway once the payment settles.
	GatewayOrderRef       string `gorm:"index" json:"gateway_order_ref,omitempty"`
	GatewayTransactionRef string `json:"gateway_transaction_ref,omitempty"`

	TotalPrice    float64 `gorm:"not null" json:"total_price"`
	CourtQuantity int     `gorm:"not null" json:"court_quantity"`

	// HoldUntil is set iff status is pending or reserved. Availability
	// treats a passed HoldUntil as vacated even before the sweeper runs.
	HoldUntil *time.Time `gorm:"index" json:"hold_until,omitempty"`

	// Customer snapshot captured at booking time, decoupled from the
	// live user record.
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`

	CancellationReason string `json:"cancellation_reason,omitempty"`
	CancelledBy        string `json:"cancelled_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`

	Courts []BookingCourt `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;" json:"courts,omitempty"`
	Slots  []BookingSlot  `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;" json:"slots,omitempty"`
}

// BookingCourt links a booking to one court. Position keeps the requested
// court order stable; CourtQuantity on the booking is derived from these rows.
type BookingCourt struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	CourtID   uuid.UUID `gorm:"type:uuid;index:idx_booking_courts_court;not null" json:"court_id"`
	Position  int       `gorm:"not null" json:"position"`
}

// BookingSlot is one {start,end,price} range of a booking. Times are stored
// both as HH:MM strings (display) and minutes-since-midnight (comparison).
type BookingSlot struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	StartTime string    `gorm:"type:varchar(5);not null" json:"start"`
	EndTime   string    `gorm:"type:varchar(5);not null" json:"end"`
	StartMin  int       `gorm:"not null" json:"-"`
	EndMin    int       `gorm:"not null" json:"-"`
	Price     float64   `gorm:"not null" json:"price"`
}

func (Booking) TableName() string      { return "bookings" }
func (BookingCourt) TableName() string { return "booking_courts" }
func (BookingSlot) TableName() string  { return "booking_slots" }

// TimeSlots converts the stored slot rows back to timeslot values.
func (b *Booking) TimeSlots() []timeslot.Slot {
	slots := make([]timeslot.Slot, 0, len(b.Slots))
	for _, s := range b.Slots {
		slots = append(slots, timeslot.Slot{Start: s.StartTime, End: s.EndTime, Price: s.Price})
	}
	return slots
}

// CourtIDs returns the booking's court references in requested order.
func (b *Booking) CourtIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Courts))
	for _, c := range b.Courts {
		ids = append(ids, c.CourtID)
	}
	return ids
}

// CoversCourt reports whether this booking includes the given court.
func (b *Booking) CoversCourt(courtID uuid.UUID) bool {
	for _, c := range b.Courts {
		if c.CourtID == courtID {
			return true
		}
	}
	return false
}

// HoldExpired reports whether the booking's hold has lapsed at the given
// instant. Bookings without a hold never expire this way.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.HoldUntil != nil && !b.HoldUntil.After(now)
}

// ActiveAt reports whether this booking blocks its slots at the given
// instant: confirmed and later non-terminal statuses always do,
// pending/reserved only while the hold is unexpired.
func (b *Booking) ActiveAt(now time.Time) bool {
	switch b.Status {
	case StatusConfirmed, StatusInProgress:
		return true
	case StatusPending, StatusReserved:
		return !b.HoldExpired(now)
	default:
		return false
	}
}

// OwnedBy reports whether the given user created the booking. Guest
// bookings have no owner.
func (b *Booking) OwnedBy(userID uuid.UUID) bool {
	return b.UserID != nil && *b.UserID == userID
}
