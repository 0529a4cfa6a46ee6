package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"courtly/internal/bookings"
	"courtly/internal/shared/config"
	"courtly/pkg/logger"

	"github.com/google/uuid"
)

// BookingStore is the slice of the bookings repository the payments
// service needs to link a gateway order back to its booking.
type BookingStore interface {
	SetGatewayOrder(ctx context.Context, bookingID uuid.UUID, orderRef string) error
}

type Service interface {
	bookings.PaymentLinker

	CreateSessionForBooking(ctx context.Context, booking *bookings.Booking) (*bookings.PaymentLink, error)
	GetSessionByOrderCode(ctx context.Context, orderCode int64) (*PaymentSession, error)
}

type service struct {
	repo    Repository
	store   BookingStore
	gateway Gateway
	cfg     *config.Config
}

func NewService(repo Repository, store BookingStore, gateway Gateway, cfg *config.Config) Service {
	return &service{
		repo:    repo,
		store:   store,
		gateway: gateway,
		cfg:     cfg,
	}
}

// CreatePaymentSession builds a gateway checkout for a booking hold. The
// session expires with the hold so an abandoned checkout cannot outlive
// the slots it reserves.
func (s *service) CreatePaymentSession(ctx context.Context, booking *bookings.Booking) (*bookings.PaymentLink, error) {
	return s.CreateSessionForBooking(ctx, booking)
}

func (s *service) CreateSessionForBooking(ctx context.Context, booking *bookings.Booking) (*bookings.PaymentLink, error) {
	if booking.HoldUntil == nil {
		return nil, fmt.Errorf("booking %s has no hold window", booking.BookingCode)
	}

	// Any previous pending session for this booking is superseded.
	if err := s.repo.SupersedeActive(ctx, booking.ID); err != nil {
		return nil, fmt.Errorf("failed to supersede old sessions: %w", err)
	}

	orderCode, err := generateOrderCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order code: %w", err)
	}

	amount := int64(booking.TotalPrice)
	expiresAt := *booking.HoldUntil

	checkout, err := s.gateway.CreatePaymentLink(ctx, CheckoutRequest{
		OrderCode:   orderCode,
		Amount:      amount,
		Description: "Booking " + booking.BookingCode,
		Items: []CheckoutItem{{
			Name:     fmt.Sprintf("Court booking %s", booking.Date.Format("2006-01-02")),
			Quantity: booking.CourtQuantity,
			Price:    amount,
		}},
		ReturnURL: s.cfg.Gateway.ReturnURL,
		CancelURL: s.cfg.Gateway.CancelURL,
		ExpiredAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	session := &PaymentSession{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		OrderCode:     orderCode,
		Amount:        amount,
		Status:        SessionPending,
		CheckoutURL:   checkout.CheckoutURL,
		QRCode:        checkout.QRCode,
		GatewayLinkID: checkout.PaymentLinkID,
		ExpiresAt:     expiresAt,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist payment session: %w", err)
	}

	orderRef := strconv.FormatInt(orderCode, 10)
	if err := s.store.SetGatewayOrder(ctx, booking.ID, orderRef); err != nil {
		return nil, fmt.Errorf("failed to link gateway order: %w", err)
	}
	booking.GatewayOrderRef = orderRef

	logger.GetDefault().Info("payment session created",
		"booking_code", booking.BookingCode,
		"order_code", orderCode,
		"amount", amount,
	)

	return &bookings.PaymentLink{
		OrderRef:    orderRef,
		CheckoutURL: checkout.CheckoutURL,
		QRCode:      checkout.QRCode,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *service) GetSessionByOrderCode(ctx context.Context, orderCode int64) (*PaymentSession, error) {
	return s.repo.GetByOrderCode(ctx, orderCode)
}

// generateOrderCode builds a gateway-unique numeric order code from the
// current milliseconds plus two random digits.
func generateOrderCode() (int64, error) {
	suffix, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return 0, err
	}
	return time.Now().UnixMilli()*100 + suffix.Int64(), nil
}
