package bookings

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusReserved   Status = "RESERVED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusExpired    Status = "EXPIRED"
	StatusNoShow     Status = "NO_SHOW"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentExpired   PaymentStatus = "EXPIRED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

func (s Status) String() string { return string(s) }

func (p PaymentStatus) String() string { return string(p) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReserved, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusExpired, StatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusNoShow:
		return true
	}
	return false
}

// HoldStates are the only statuses for which HoldUntil is meaningful.
func (s Status) IsHoldState() bool {
	return s == StatusPending || s == StatusReserved
}

// allowedTransitions is the single source of truth for the lifecycle.
// cancelled/expired are reachable from every non-terminal state except
// in_progress (an in-progress session runs to completion); no_show only
// from confirmed.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusReserved, StatusConfirmed, StatusCancelled, StatusExpired},
	StatusReserved:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusExpired, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransitionTo reports whether the lifecycle permits moving to the
// target status.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition methods. Every status mutation in the codebase goes through
// one of these so no code path can set Status without its timestamp stamp
// and, where applicable, a reason. All return InvalidStateTransitionError
// when the guard fails and leave the booking untouched.

func (b *Booking) guard(to Status) error {
	if !b.Status.CanTransitionTo(to) {
		return &InvalidStateTransitionError{BookingID: b.ID, From: b.Status, To: to}
	}
	return nil
}

// ConfirmPayment moves a held booking to confirmed after the gateway
// reported PAID. The only path from reserved/pending to confirmed besides
// an explicit owner approval.
func (b *Booking) ConfirmPayment(transactionRef string, paidAt time.Time) error {
	if err := b.guard(StatusConfirmed); err != nil {
		return err
	}
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentPaid
	b.GatewayTransactionRef = transactionRef
	b.HoldUntil = nil
	b.ConfirmedAt = ptr(paidAt)
	b.PaidAt = ptr(paidAt)
	b.UpdatedAt = paidAt
	return nil
}

// Approve is the venue-owner action confirming a pending booking without
// payment (cash on arrival and similar).
func (b *Booking) Approve(now time.Time) error {
	if b.Status != StatusPending {
		return &InvalidStateTransitionError{BookingID: b.ID, From: b.Status, To: StatusConfirmed}
	}
	b.Status = StatusConfirmed
	b.HoldUntil = nil
	b.ConfirmedAt = ptr(now)
	b.UpdatedAt = now
	return nil
}

// Reject is the venue-owner action declining a held booking.
func (b *Booking) Reject(by, reason string, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusReserved {
		return &InvalidStateTransitionError{BookingID: b.ID, From: b.Status, To: StatusCancelled}
	}
	return b.Cancel(by, reason, now)
}

// Cancel moves the booking to cancelled with a reason. Disallowed once
// completed or already cancelled (and from any other terminal state).
func (b *Booking) Cancel(by, reason string, now time.Time) error {
	if err := b.guard(StatusCancelled); err != nil {
		return err
	}
	b.Status = StatusCancelled
	if b.PaymentStatus == PaymentPending {
		b.PaymentStatus = PaymentCancelled
	}
	b.HoldUntil = nil
	b.CancelledBy = by
	b.CancellationReason = reason
	b.CancelledAt = ptr(now)
	b.UpdatedAt = now
	return nil
}

// Expire marks a lapsed hold as expired. Used by the sweeper.
func (b *Booking) Expire(reason string, now time.Time) error {
	if err := b.guard(StatusExpired); err != nil {
		return err
	}
	b.Status = StatusExpired
	if b.PaymentStatus == PaymentPending {
		b.PaymentStatus = PaymentExpired
	}
	b.HoldUntil = nil
	b.CancellationReason = reason
	b.ExpiredAt = ptr(now)
	b.UpdatedAt = now
	return nil
}

// CheckIn records the customer's arrival.
func (b *Booking) CheckIn(now time.Time) error {
	if b.Status != StatusConfirmed {
		return &InvalidStateTransitionError{BookingID: b.ID, From: b.Status, To: StatusInProgress}
	}
	b.Status = StatusInProgress
	b.CheckedInAt = ptr(now)
	b.UpdatedAt = now
	return nil
}

// Complete finishes an in-progress session.
func (b *Booking) Complete(now time.Time) error {
	if err := b.guard(StatusCompleted); err != nil {
		return err
	}
	b.Status = StatusCompleted
	b.CompletedAt = ptr(now)
	b.UpdatedAt = now
	return nil
}

// MarkNoShow records that a confirmed booking was never used.
func (b *Booking) MarkNoShow(now time.Time) error {
	if err := b.guard(StatusNoShow); err != nil {
		return err
	}
	b.Status = StatusNoShow
	b.CancellationReason = "customer did not show up"
	b.UpdatedAt = now
	return nil
}

func ptr(t time.Time) *time.Time { return &t }
