package payments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"courtly/internal/bookings"
	"courtly/pkg/logger"
)

// BookingResolver is the slice of the bookings service reconciliation
// needs. All transitions it triggers are idempotent on that side.
type BookingResolver interface {
	GetByGatewayOrderRef(ctx context.Context, orderRef string) (*bookings.Booking, error)
	ApplyPaymentPaid(ctx context.Context, booking *bookings.Booking, transactionRef string, paidAt time.Time) error
	ApplyPaymentCancelled(ctx context.Context, booking *bookings.Booking, reason string) error
}

// Reconciler converges booking state with the gateway's truth. Webhooks,
// the client verify poll, the browser redirect, and the hold sweeper all
// funnel through it, so any one trigger arriving is enough and repeats
// are harmless.
type Reconciler struct {
	repo     Repository
	resolver BookingResolver
	gateway  Gateway
}

func NewReconciler(repo Repository, resolver BookingResolver, gateway Gateway) *Reconciler {
	return &Reconciler{
		repo:     repo,
		resolver: resolver,
		gateway:  gateway,
	}
}

// HandleWebhook verifies and applies one gateway webhook delivery.
// Signature failures are the only hard rejection; an unknown order code is
// acknowledged so the gateway stops retrying deliveries we can never use.
func (r *Reconciler) HandleWebhook(ctx context.Context, rawBody []byte) error {
	payload, err := r.gateway.VerifyWebhook(rawBody)
	if err != nil {
		return err
	}

	booking, err := r.resolver.GetByGatewayOrderRef(ctx, strconv.FormatInt(payload.OrderCode, 10))
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			logger.GetDefault().Warn("webhook for unknown order, acknowledging",
				"order_code", payload.OrderCode,
			)
			return nil
		}
		return err
	}

	paidAt := time.Now()
	if parsed, perr := time.Parse(time.RFC3339, payload.TransactionAt); perr == nil {
		paidAt = parsed
	}

	return r.apply(ctx, booking, payload.Status, payload.TransactionRef, paidAt)
}

// VerifyOrder polls the gateway for an order and reconciles the booking
// against the answer. A gateway outage leaves the booking exactly as it
// was: pending is never converted to failed on a read error.
func (r *Reconciler) VerifyOrder(ctx context.Context, orderRef string) (*bookings.Booking, error) {
	booking, err := r.resolver.GetByGatewayOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	orderCode, err := strconv.ParseInt(orderRef, 10, 64)
	if err != nil {
		return nil, errors.New("invalid order reference")
	}

	info, err := r.gateway.GetOrder(ctx, orderCode)
	if err != nil {
		var unavailable *GatewayUnavailableError
		if errors.As(err, &unavailable) {
			logger.GetDefault().Warn("gateway unreachable during verify, leaving booking untouched",
				"order_code", orderCode,
				"error", err.Error(),
			)
			return booking, nil
		}
		return nil, err
	}

	paidAt := time.Now()
	if info.PaidAt != nil {
		paidAt = *info.PaidAt
	}
	if err := r.apply(ctx, booking, info.Status, info.TransactionRef, paidAt); err != nil {
		return nil, err
	}
	return booking, nil
}

// ResolveExpiredHold settles a hold that lapsed with a payment session
// attached. The gateway is consulted first so a payment that completed
// moments before expiry still rescues the booking.
func (r *Reconciler) ResolveExpiredHold(ctx context.Context, booking *bookings.Booking) (bookings.ResolveOutcome, error) {
	orderCode, err := strconv.ParseInt(booking.GatewayOrderRef, 10, 64)
	if err != nil {
		return "", errors.New("invalid gateway order reference on booking")
	}

	info, err := r.gateway.GetOrder(ctx, orderCode)
	if err != nil {
		// Gateway unreachable: the hold has already lapsed, so free the
		// slots now. If a paid webhook arrives later it lands on a
		// terminal booking and is ignored with a logged anomaly.
		logger.GetDefault().Warn("gateway unreachable during hold sweep, cancelling locally",
			"booking_code", booking.BookingCode,
			"order_code", orderCode,
			"error", err.Error(),
		)
		if cErr := r.resolver.ApplyPaymentCancelled(ctx, booking, "hold expired, gateway status unknown"); cErr != nil {
			return "", cErr
		}
		return bookings.OutcomeCancelled, nil
	}

	switch info.Status {
	case OrderPaid:
		paidAt := time.Now()
		if info.PaidAt != nil {
			paidAt = *info.PaidAt
		}
		if err := r.apply(ctx, booking, OrderPaid, info.TransactionRef, paidAt); err != nil {
			return "", err
		}
		return bookings.OutcomeRescued, nil

	case OrderCancelled:
		if err := r.apply(ctx, booking, OrderCancelled, "", time.Time{}); err != nil {
			return "", err
		}
		return bookings.OutcomeCancelled, nil

	case OrderExpired:
		if err := r.resolver.ApplyPaymentCancelled(ctx, booking, "payment link expired"); err != nil {
			return "", err
		}
		r.markSession(ctx, orderCode, SessionExpired)
		return bookings.OutcomeExpired, nil

	default:
		// Still pending at the gateway but the hold is gone. Cancel the
		// order so a late payment cannot land on freed slots, then
		// release them.
		if cErr := r.gateway.CancelOrder(ctx, orderCode, "booking hold expired"); cErr != nil {
			logger.GetDefault().Warn("failed to cancel gateway order",
				"order_code", orderCode,
				"error", cErr.Error(),
			)
		}
		if err := r.resolver.ApplyPaymentCancelled(ctx, booking, "hold expired before payment completed"); err != nil {
			return "", err
		}
		r.markSession(ctx, orderCode, SessionCancelled)
		return bookings.OutcomeCancelled, nil
	}
}

// apply maps a gateway order status onto the booking lifecycle. Statuses
// that are still in flight are a deliberate no-op.
func (r *Reconciler) apply(ctx context.Context, booking *bookings.Booking, status OrderStatus, transactionRef string, paidAt time.Time) error {
	orderCode, _ := strconv.ParseInt(booking.GatewayOrderRef, 10, 64)

	switch status {
	case OrderPaid:
		if err := r.resolver.ApplyPaymentPaid(ctx, booking, transactionRef, paidAt); err != nil {
			return err
		}
		r.markSessionPaid(ctx, orderCode, transactionRef, paidAt)
		logger.GetDefault().LogPaymentReconciled(ctx, booking.GatewayOrderRef, "paid")
		return nil

	case OrderCancelled:
		if err := r.resolver.ApplyPaymentCancelled(ctx, booking, "payment cancelled at gateway"); err != nil {
			return err
		}
		r.markSession(ctx, orderCode, SessionCancelled)
		logger.GetDefault().LogPaymentReconciled(ctx, booking.GatewayOrderRef, "cancelled")
		return nil

	case OrderExpired:
		if err := r.resolver.ApplyPaymentCancelled(ctx, booking, "payment link expired"); err != nil {
			return err
		}
		r.markSession(ctx, orderCode, SessionExpired)
		return nil

	default:
		// PENDING or PROCESSING: nothing to converge yet.
		return nil
	}
}

func (r *Reconciler) markSessionPaid(ctx context.Context, orderCode int64, transactionRef string, paidAt time.Time) {
	session, err := r.repo.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return
	}
	if session.Status == SessionPaid {
		return
	}
	if err := r.repo.MarkPaid(ctx, session, transactionRef, paidAt); err != nil {
		logger.GetDefault().Warn("failed to mark session paid", "order_code", orderCode, "error", err.Error())
	}
}

func (r *Reconciler) markSession(ctx context.Context, orderCode int64, status SessionStatus) {
	session, err := r.repo.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return
	}
	if session.Status == status || session.Status == SessionPaid {
		return
	}
	if err := r.repo.MarkStatus(ctx, session, status); err != nil {
		logger.GetDefault().Warn("failed to update session status", "order_code", orderCode, "error", err.Error())
	}
}
