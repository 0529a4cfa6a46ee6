package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"courtly/internal/bookings"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentLink(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

func (m *mockGateway) GetOrder(ctx context.Context, orderCode int64) (*OrderInfo, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderInfo), args.Error(1)
}

func (m *mockGateway) CancelOrder(ctx context.Context, orderCode int64, reason string) error {
	args := m.Called(ctx, orderCode, reason)
	return args.Error(0)
}

func (m *mockGateway) VerifyWebhook(rawBody []byte) (*WebhookPayload, error) {
	args := m.Called(rawBody)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WebhookPayload), args.Error(1)
}

type mockBookingResolver struct {
	mock.Mock
}

func (m *mockBookingResolver) GetByGatewayOrderRef(ctx context.Context, orderRef string) (*bookings.Booking, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookings.Booking), args.Error(1)
}

func (m *mockBookingResolver) ApplyPaymentPaid(ctx context.Context, booking *bookings.Booking, transactionRef string, paidAt time.Time) error {
	args := m.Called(ctx, booking, transactionRef, paidAt)
	return args.Error(0)
}

func (m *mockBookingResolver) ApplyPaymentCancelled(ctx context.Context, booking *bookings.Booking, reason string) error {
	args := m.Called(ctx, booking, reason)
	return args.Error(0)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, session *PaymentSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) GetByOrderCode(ctx context.Context, orderCode int64) (*PaymentSession, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentSession), args.Error(1)
}

func (m *mockSessionRepo) GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*PaymentSession, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentSession), args.Error(1)
}

func (m *mockSessionRepo) MarkPaid(ctx context.Context, session *PaymentSession, transactionRef string, paidAt time.Time) error {
	args := m.Called(ctx, session, transactionRef, paidAt)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkStatus(ctx context.Context, session *PaymentSession, status SessionStatus) error {
	args := m.Called(ctx, session, status)
	return args.Error(0)
}

func (m *mockSessionRepo) SupersedeActive(ctx context.Context, bookingID uuid.UUID) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func heldBooking(orderCode int64) *bookings.Booking {
	hold := time.Now().Add(-time.Minute)
	return &bookings.Booking{
		ID:              uuid.New(),
		BookingCode:     "CRT-20250110-PAYXYZ",
		Status:          bookings.StatusReserved,
		PaymentStatus:   bookings.PaymentPending,
		HoldUntil:       &hold,
		GatewayOrderRef: fmt.Sprintf("%d", orderCode),
	}
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("paid webhook confirms the booking", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		repo := new(mockSessionRepo)
		rec := NewReconciler(repo, resolver, gw)

		booking := heldBooking(1001)
		raw := []byte(`{"code":"00","data":{},"signature":"x"}`)

		gw.On("VerifyWebhook", raw).Return(&WebhookPayload{
			OrderCode:      1001,
			Status:         OrderPaid,
			TransactionRef: "txn-abc",
			TransactionAt:  time.Now().Format(time.RFC3339),
		}, nil)
		resolver.On("GetByGatewayOrderRef", mock.Anything, "1001").Return(booking, nil)
		resolver.On("ApplyPaymentPaid", mock.Anything, booking, "txn-abc", mock.Anything).Return(nil)
		repo.On("GetByOrderCode", mock.Anything, int64(1001)).Return(&PaymentSession{Status: SessionPending}, nil)
		repo.On("MarkPaid", mock.Anything, mock.Anything, "txn-abc", mock.Anything).Return(nil)

		require.NoError(t, rec.HandleWebhook(ctx, raw))
		resolver.AssertExpectations(t)
	})

	t.Run("bad signature is the only hard rejection", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		rec := NewReconciler(new(mockSessionRepo), resolver, gw)

		raw := []byte(`{"data":{},"signature":"forged"}`)
		gw.On("VerifyWebhook", raw).Return(nil, ErrInvalidSignature)

		err := rec.HandleWebhook(ctx, raw)
		assert.ErrorIs(t, err, ErrInvalidSignature)
		resolver.AssertNotCalled(t, "GetByGatewayOrderRef", mock.Anything, mock.Anything)
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		rec := NewReconciler(new(mockSessionRepo), resolver, gw)

		raw := []byte(`{"data":{},"signature":"x"}`)
		gw.On("VerifyWebhook", raw).Return(&WebhookPayload{OrderCode: 9999, Status: OrderPaid}, nil)
		resolver.On("GetByGatewayOrderRef", mock.Anything, "9999").Return(nil, bookings.ErrBookingNotFound)

		assert.NoError(t, rec.HandleWebhook(ctx, raw),
			"acknowledging stops the gateway from retrying a delivery we can never use")
	})

	t.Run("cancelled webhook releases the booking", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		repo := new(mockSessionRepo)
		rec := NewReconciler(repo, resolver, gw)

		booking := heldBooking(1002)
		raw := []byte(`{"data":{},"signature":"x"}`)

		gw.On("VerifyWebhook", raw).Return(&WebhookPayload{OrderCode: 1002, Status: OrderCancelled}, nil)
		resolver.On("GetByGatewayOrderRef", mock.Anything, "1002").Return(booking, nil)
		resolver.On("ApplyPaymentCancelled", mock.Anything, booking, "payment cancelled at gateway").Return(nil)
		repo.On("GetByOrderCode", mock.Anything, int64(1002)).Return(&PaymentSession{Status: SessionPending}, nil)
		repo.On("MarkStatus", mock.Anything, mock.Anything, SessionCancelled).Return(nil)

		require.NoError(t, rec.HandleWebhook(ctx, raw))
	})

	t.Run("pending webhook converges nothing", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		rec := NewReconciler(new(mockSessionRepo), resolver, gw)

		booking := heldBooking(1003)
		raw := []byte(`{"data":{},"signature":"x"}`)

		gw.On("VerifyWebhook", raw).Return(&WebhookPayload{OrderCode: 1003, Status: OrderProcessing}, nil)
		resolver.On("GetByGatewayOrderRef", mock.Anything, "1003").Return(booking, nil)

		require.NoError(t, rec.HandleWebhook(ctx, raw))
		resolver.AssertNotCalled(t, "ApplyPaymentPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		resolver.AssertNotCalled(t, "ApplyPaymentCancelled", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestVerifyOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("paid order confirms on poll", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		repo := new(mockSessionRepo)
		rec := NewReconciler(repo, resolver, gw)

		booking := heldBooking(2001)
		paidAt := time.Now()

		resolver.On("GetByGatewayOrderRef", mock.Anything, "2001").Return(booking, nil)
		gw.On("GetOrder", mock.Anything, int64(2001)).Return(&OrderInfo{
			OrderCode:      2001,
			Status:         OrderPaid,
			TransactionRef: "txn-poll",
			PaidAt:         &paidAt,
		}, nil)
		resolver.On("ApplyPaymentPaid", mock.Anything, booking, "txn-poll", paidAt).Return(nil)
		repo.On("GetByOrderCode", mock.Anything, int64(2001)).Return(nil, ErrSessionNotFound)

		got, err := rec.VerifyOrder(ctx, "2001")
		require.NoError(t, err)
		assert.Equal(t, booking.ID, got.ID)
	})

	t.Run("gateway outage leaves a pending booking untouched", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		rec := NewReconciler(new(mockSessionRepo), resolver, gw)

		booking := heldBooking(2002)
		resolver.On("GetByGatewayOrderRef", mock.Anything, "2002").Return(booking, nil)
		gw.On("GetOrder", mock.Anything, int64(2002)).
			Return(nil, &GatewayUnavailableError{Op: "GET", Err: errors.New("timeout")})

		got, err := rec.VerifyOrder(ctx, "2002")
		require.NoError(t, err)
		assert.Equal(t, bookings.StatusReserved, got.Status, "a read failure must never fail the payment")
		resolver.AssertNotCalled(t, "ApplyPaymentCancelled", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed order ref is rejected", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		rec := NewReconciler(new(mockSessionRepo), resolver, gw)

		booking := heldBooking(1)
		resolver.On("GetByGatewayOrderRef", mock.Anything, "not-a-number").Return(booking, nil)

		_, err := rec.VerifyOrder(ctx, "not-a-number")
		assert.Error(t, err)
	})
}

func TestResolveExpiredHold(t *testing.T) {
	ctx := context.Background()

	t.Run("payment that settled before expiry rescues the booking", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		repo := new(mockSessionRepo)
		rec := NewReconciler(repo, resolver, gw)

		booking := heldBooking(3001)
		paidAt := time.Now().Add(-30 * time.Second)

		gw.On("GetOrder", mock.Anything, int64(3001)).Return(&OrderInfo{
			Status:         OrderPaid,
			TransactionRef: "txn-last-second",
			PaidAt:         &paidAt,
		}, nil)
		resolver.On("ApplyPaymentPaid", mock.Anything, booking, "txn-last-second", paidAt).Return(nil)
		repo.On("GetByOrderCode", mock.Anything, int64(3001)).Return(nil, ErrSessionNotFound)

		outcome, err := rec.ResolveExpiredHold(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, bookings.OutcomeRescued, outcome)
	})

	t.Run("pending at the gateway cancels the order first", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		repo := new(mockSessionRepo)
		rec := NewReconciler(repo, resolver, gw)

		booking := heldBooking(3002)

		gw.On("GetOrder", mock.Anything, int64(3002)).Return(&OrderInfo{Status: OrderPending}, nil)
		gw.On("CancelOrder", mock.Anything, int64(3002), "booking hold expired").Return(nil)
		resolver.On("ApplyPaymentCancelled", mock.Anything, booking, "hold expired before payment completed").Return(nil)
		repo.On("GetByOrderCode", mock.Anything, int64(3002)).Return(&PaymentSession{Status: SessionPending}, nil)
		repo.On("MarkStatus", mock.Anything, mock.Anything, SessionCancelled).Return(nil)

		outcome, err := rec.ResolveExpiredHold(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, bookings.OutcomeCancelled, outcome)
		gw.AssertCalled(t, "CancelOrder", mock.Anything, int64(3002), "booking hold expired")
	})

	t.Run("expired payment link expires the hold", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		repo := new(mockSessionRepo)
		rec := NewReconciler(repo, resolver, gw)

		booking := heldBooking(3003)

		gw.On("GetOrder", mock.Anything, int64(3003)).Return(&OrderInfo{Status: OrderExpired}, nil)
		resolver.On("ApplyPaymentCancelled", mock.Anything, booking, "payment link expired").Return(nil)
		repo.On("GetByOrderCode", mock.Anything, int64(3003)).Return(&PaymentSession{Status: SessionPending}, nil)
		repo.On("MarkStatus", mock.Anything, mock.Anything, SessionExpired).Return(nil)

		outcome, err := rec.ResolveExpiredHold(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, bookings.OutcomeExpired, outcome)
	})

	t.Run("unreachable gateway cancels locally", func(t *testing.T) {
		gw := new(mockGateway)
		resolver := new(mockBookingResolver)
		rec := NewReconciler(new(mockSessionRepo), resolver, gw)

		booking := heldBooking(3004)

		gw.On("GetOrder", mock.Anything, int64(3004)).
			Return(nil, &GatewayUnavailableError{Op: "GET", Err: errors.New("connection refused")})
		resolver.On("ApplyPaymentCancelled", mock.Anything, booking, "hold expired, gateway status unknown").Return(nil)

		outcome, err := rec.ResolveExpiredHold(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, bookings.OutcomeCancelled, outcome)
	})

	t.Run("garbage order ref fails", func(t *testing.T) {
		rec := NewReconciler(new(mockSessionRepo), new(mockBookingResolver), new(mockGateway))

		booking := heldBooking(1)
		booking.GatewayOrderRef = "garbage"

		_, err := rec.ResolveExpiredHold(ctx, booking)
		assert.Error(t, err)
	})
}

