package bookings

import (
	"context"
	"fmt"
	"time"

	"courtly/pkg/logger"
)

// sweepBatchSize bounds one pass so a backlog cannot hold the ticker loop
// for minutes.
const sweepBatchSize = 500

// ResolveOutcome describes how the payments layer resolved a stuck hold.
type ResolveOutcome string

const (
	OutcomeRescued   ResolveOutcome = "rescued"
	OutcomeCancelled ResolveOutcome = "cancelled"
	OutcomeExpired   ResolveOutcome = "expired"
)

// ExpiredHoldResolver consults the payment gateway for a hold that lapsed
// with a payment session attached. Implemented by the payments package.
type ExpiredHoldResolver interface {
	ResolveExpiredHold(ctx context.Context, booking *Booking) (ResolveOutcome, error)
}

// SweepReport summarizes one sweeper pass.
type SweepReport struct {
	Scanned   int      `json:"scanned"`
	Cancelled int      `json:"cancelled"`
	Expired   int      `json:"expired"`
	Rescued   int      `json:"rescued"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// SweepExpiredHolds resolves every hold whose window lapsed at least
// maxAge ago. Holds with no payment session are cancelled outright; holds
// with a session are resolved against the gateway's answer. Failures are
// isolated per booking so one bad row never stalls the sweep.
func (s *service) SweepExpiredHolds(ctx context.Context, maxAge time.Duration) (*SweepReport, error) {
	cutoff := time.Now().Add(-maxAge)
	stuck, err := s.repo.FindStuckHolds(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck holds: %w", err)
	}

	report := &SweepReport{Scanned: len(stuck)}
	for i := range stuck {
		booking := &stuck[i]
		if err := s.sweepOne(ctx, booking, report); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", booking.BookingCode, err))
			logger.GetDefault().Error("failed to resolve stuck hold",
				"booking_id", booking.ID.String(),
				"booking_code", booking.BookingCode,
				"error", err.Error(),
			)
		}
	}

	if report.Scanned > 0 {
		logger.GetDefault().Info("hold sweep finished",
			"scanned", report.Scanned,
			"cancelled", report.Cancelled,
			"expired", report.Expired,
			"rescued", report.Rescued,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (s *service) sweepOne(ctx context.Context, booking *Booking, report *SweepReport) error {
	// No payment session was ever attached: nothing can still pay for
	// this hold, cancel it.
	if booking.GatewayOrderRef == "" || s.resolver == nil {
		if err := s.ApplyPaymentCancelled(ctx, booking, "hold expired, no payment method"); err != nil {
			return err
		}
		report.Cancelled++
		return nil
	}

	outcome, err := s.resolver.ResolveExpiredHold(ctx, booking)
	if err != nil {
		return err
	}
	switch outcome {
	case OutcomeRescued:
		report.Rescued++
	case OutcomeExpired:
		report.Expired++
	default:
		report.Cancelled++
	}
	return nil
}

// Sweeper runs the expired-hold sweep on a fixed cadence.
type Sweeper struct {
	service  Service
	interval time.Duration
	maxAge   time.Duration
	done     chan struct{}
}

func NewSweeper(service Service, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		maxAge:   maxAge,
		done:     make(chan struct{}),
	}
}

func (sw *Sweeper) Start(ctx context.Context) {
	go sw.run(ctx)
	logger.GetDefault().Info("hold sweeper started", "interval", sw.interval.String())
}

func (sw *Sweeper) Stop() {
	close(sw.done)
	logger.GetDefault().Info("hold sweeper stopped")
}

func (sw *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := sw.service.SweepExpiredHolds(ctx, sw.maxAge); err != nil {
				logger.GetDefault().Error("hold sweep failed", "error", err.Error())
			}
		case <-sw.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
