package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtly/internal/bookings"
	"courtly/internal/shared/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionForBooking(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Gateway: config.GatewayConfig{
		ReturnURL: "https://app.example/return",
		CancelURL: "https://app.example/cancel",
	}}

	t.Run("happy path links the order back to the booking", func(t *testing.T) {
		gw := new(mockGateway)
		repo := new(mockSessionRepo)
		store := new(mockBookingStore)
		svc := NewService(repo, store, gw, cfg)

		hold := time.Now().Add(15 * time.Minute)
		booking := &bookings.Booking{
			ID:            uuid.New(),
			BookingCode:   "CRT-20250110-LNKAAA",
			Status:        bookings.StatusReserved,
			TotalPrice:    300000,
			CourtQuantity: 2,
			HoldUntil:     &hold,
			Date:          time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		}

		repo.On("SupersedeActive", mock.Anything, booking.ID).Return(nil)
		gw.On("CreatePaymentLink", mock.Anything, mock.MatchedBy(func(req CheckoutRequest) bool {
			return req.Amount == 300000 && req.ExpiredAt == hold.Unix()
		})).Return(&CheckoutSession{
			PaymentLinkID: "pl-1",
			CheckoutURL:   "https://pay.example/pl-1",
			QRCode:        "qr-data",
		}, nil)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*payments.PaymentSession")).Return(nil)
		store.On("SetGatewayOrder", mock.Anything, booking.ID, mock.AnythingOfType("string")).Return(nil)

		link, err := svc.CreateSessionForBooking(ctx, booking)
		require.NoError(t, err)

		assert.Equal(t, "https://pay.example/pl-1", link.CheckoutURL)
		assert.Equal(t, hold, link.ExpiresAt)
		assert.Equal(t, link.OrderRef, booking.GatewayOrderRef)
		assert.NotEmpty(t, booking.GatewayOrderRef)
		repo.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("booking without a hold cannot start checkout", func(t *testing.T) {
		svc := NewService(new(mockSessionRepo), new(mockBookingStore), new(mockGateway), cfg)

		booking := &bookings.Booking{ID: uuid.New(), BookingCode: "CRT-20250110-NOHOLD"}
		_, err := svc.CreateSessionForBooking(ctx, booking)
		assert.Error(t, err)
	})

	t.Run("gateway failure creates nothing", func(t *testing.T) {
		gw := new(mockGateway)
		repo := new(mockSessionRepo)
		store := new(mockBookingStore)
		svc := NewService(repo, store, gw, cfg)

		hold := time.Now().Add(15 * time.Minute)
		booking := &bookings.Booking{ID: uuid.New(), HoldUntil: &hold}

		repo.On("SupersedeActive", mock.Anything, booking.ID).Return(nil)
		gw.On("CreatePaymentLink", mock.Anything, mock.Anything).
			Return(nil, &GatewayUnavailableError{Op: "POST", Err: errors.New("down")})

		_, err := svc.CreateSessionForBooking(ctx, booking)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "SetGatewayOrder", mock.Anything, mock.Anything, mock.Anything)
	})
}

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) SetGatewayOrder(ctx context.Context, bookingID uuid.UUID, orderRef string) error {
	args := m.Called(ctx, bookingID, orderRef)
	return args.Error(0)
}

