package bookings

import (
	"time"

	"courtly/internal/timeslot"
)

type CustomerInfo struct {
	FullName string `json:"full_name" binding:"required,min=2,max=128"`
	Phone    string `json:"phone" binding:"required,min=8,max=20"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type CreateHoldRequest struct {
	VenueID       string          `json:"venue_id" binding:"required,uuid"`
	CourtIDs      []string        `json:"court_ids" binding:"required,min=1,dive,uuid"`
	Date          string          `json:"date" binding:"required"`
	Slots         []timeslot.Slot `json:"slots" binding:"required,min=1,dive"`
	Customer      CustomerInfo    `json:"customer" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"omitempty,oneof=gateway cash"`
	Reserve       bool            `json:"reserve"`
}

type HoldResponse struct {
	Booking      *Booking     `json:"booking"`
	HoldUntil    time.Time    `json:"hold_until"`
	Payment      *PaymentLink `json:"payment,omitempty"`
	PaymentError string       `json:"payment_error,omitempty"`
}

type ActionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type SweepRequest struct {
	MaxAgeMinutes int `json:"max_age_minutes" binding:"omitempty,min=0,max=1440"`
}

type BookingResponse struct {
	ID             string          `json:"id"`
	BookingCode    string          `json:"booking_code"`
	VenueID        string          `json:"venue_id"`
	CourtIDs       []string        `json:"court_ids"`
	Date           string          `json:"date"`
	Slots          []timeslot.Slot `json:"slots"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	TotalPrice     float64         `json:"total_price"`
	CourtQuantity  int             `json:"court_quantity"`
	HoldUntil      *time.Time      `json:"hold_until,omitempty"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone"`
	CustomerEmail  string          `json:"customer_email,omitempty"`
	CancelReason   string          `json:"cancellation_reason,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CheckedInAt    *time.Time      `json:"checked_in_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	ExpiredAt      *time.Time      `json:"expired_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func ToBookingResponse(b *Booking) BookingResponse {
	courtIDs := make([]string, 0, len(b.Courts))
	for _, id := range b.CourtIDs() {
		courtIDs = append(courtIDs, id.String())
	}
	return BookingResponse{
		ID:            b.ID.String(),
		BookingCode:   b.BookingCode,
		VenueID:       b.VenueID.String(),
		CourtIDs:      courtIDs,
		Date:          b.Date.Format("2006-01-02"),
		Slots:         b.TimeSlots(),
		Status:        b.Status.String(),
		PaymentStatus: b.PaymentStatus.String(),
		PaymentMethod: b.PaymentMethod,
		TotalPrice:    b.TotalPrice,
		CourtQuantity: b.CourtQuantity,
		HoldUntil:     b.HoldUntil,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		CustomerEmail: b.CustomerEmail,
		CancelReason:  b.CancellationReason,
		ConfirmedAt:   b.ConfirmedAt,
		PaidAt:        b.PaidAt,
		CheckedInAt:   b.CheckedInAt,
		CompletedAt:   b.CompletedAt,
		CancelledAt:   b.CancelledAt,
		ExpiredAt:     b.ExpiredAt,
		CreatedAt:     b.CreatedAt,
	}
}

// RedactContact clears the customer snapshot for callers who have not
// proven they own the booking.
func (r *BookingResponse) RedactContact() {
	r.CustomerName = ""
	r.CustomerPhone = ""
	r.CustomerEmail = ""
}

func ToBookingResponses(list []Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(list))
	for i := range list {
		out = append(out, ToBookingResponse(&list[i]))
	}
	return out
}
