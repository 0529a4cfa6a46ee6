package bookings

import (
	"errors"
	"fmt"
	"time"

	"courtly/internal/timeslot"

	"github.com/google/uuid"
)

var ErrBookingNotFound = errors.New("booking not found")

// ValidationError reports a malformed or missing request field. Never
// retried automatically.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ConflictInfo describes one booking that blocks a requested slot, with
// enough detail for the UI to show "held by someone else until HH:MM".
type ConflictInfo struct {
	BookingID   uuid.UUID       `json:"booking_id"`
	BookingCode string          `json:"booking_code"`
	CourtID     uuid.UUID       `json:"court_id"`
	Status      Status          `json:"status"`
	HeldBy      *uuid.UUID      `json:"held_by,omitempty"`
	HoldUntil   *time.Time      `json:"hold_until,omitempty"`
	Slots       []timeslot.Slot `json:"slots"`
}

// SlotConflictError is returned when a hold or booking attempt collides
// with other active bookings. The caller may retry with different slots.
type SlotConflictError struct {
	Conflicts []ConflictInfo
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("requested slots conflict with %d active booking(s)", len(e.Conflicts))
}

// NotAuthorizedError reports that the actor may not perform the requested
// mutation on this booking.
type NotAuthorizedError struct {
	Reason string
}

func (e *NotAuthorizedError) Error() string {
	return "not authorized: " + e.Reason
}

// InvalidStateTransitionError reports an attempted transition the lifecycle
// forbids. The current status is included so clients can refresh their view.
type InvalidStateTransitionError struct {
	BookingID uuid.UUID
	From      Status
	To        Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot transition from %s to %s", e.BookingID, e.From, e.To)
}
