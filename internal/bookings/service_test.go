package bookings

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"courtly/internal/shared/config"
	"courtly/internal/timeslot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateWithConflictCheck(ctx context.Context, booking *Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (*Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *mockRepository) GetByGatewayOrderRef(ctx context.Context, orderRef string) (*Booking, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *mockRepository) UpdateTransition(ctx context.Context, booking *Booking, from Status) error {
	args := m.Called(ctx, booking, from)
	return args.Error(0)
}

func (m *mockRepository) SetGatewayOrder(ctx context.Context, bookingID uuid.UUID, orderRef string) error {
	args := m.Called(ctx, bookingID, orderRef)
	return args.Error(0)
}

func (m *mockRepository) FindBlocking(ctx context.Context, courtIDs []uuid.UUID, date time.Time) ([]Booking, error) {
	args := m.Called(ctx, courtIDs, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Booking), args.Error(1)
}

func (m *mockRepository) FindStuckHolds(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Booking), args.Error(1)
}

func (m *mockRepository) GetUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	args := m.Called(ctx, userID, query)
	return args.Get(0).([]Booking), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepository) GetVenueBookings(ctx context.Context, venueID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	args := m.Called(ctx, venueID, query)
	return args.Get(0).([]Booking), args.Get(1).(int64), args.Error(2)
}

type mockVenueDirectory struct {
	mock.Mock
}

func (m *mockVenueDirectory) ValidateCourts(ctx context.Context, venueID uuid.UUID, courtIDs []uuid.UUID) error {
	args := m.Called(ctx, venueID, courtIDs)
	return args.Error(0)
}

func (m *mockVenueDirectory) VenueOwner(ctx context.Context, venueID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, venueID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type mockPaymentLinker struct {
	mock.Mock
}

func (m *mockPaymentLinker) CreatePaymentSession(ctx context.Context, booking *Booking) (*PaymentLink, error) {
	args := m.Called(ctx, booking)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentLink), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Booking: config.BookingConfig{
			QuickHoldTTL:   5 * time.Minute,
			PaymentHoldTTL: 15 * time.Minute,
			SweepInterval:  time.Minute,
			SweepMaxAge:    time.Minute,
		},
	}
}

func TestCreateHold(t *testing.T) {
	actor := Actor{UserID: uuid.New(), Role: "USER"}

	newRequest := func() CreateHoldRequest {
		return CreateHoldRequest{
			VenueID:  uuid.NewString(),
			CourtIDs: []string{uuid.NewString()},
			Date:     "2025-06-15",
			Slots:    []timeslot.Slot{{Start: "09:00", End: "10:00", Price: 150000}},
			Customer: CustomerInfo{FullName: "Nguyen Van A", Phone: "0901234567", Email: "a@example.com"},
		}
	}

	t.Run("quick hold gets the short window and pending status", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		venues.On("ValidateCourts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateWithConflictCheck", mock.Anything, mock.AnythingOfType("*bookings.Booking")).Return(nil)

		before := time.Now()
		resp, err := svc.CreateHold(context.Background(), actor, newRequest())
		require.NoError(t, err)

		assert.Equal(t, StatusPending, resp.Booking.Status)
		assert.Equal(t, PaymentPending, resp.Booking.PaymentStatus)
		require.NotNil(t, resp.Booking.HoldUntil)
		assert.WithinDuration(t, before.Add(5*time.Minute), *resp.Booking.HoldUntil, 2*time.Second)
		assert.Regexp(t, regexp.MustCompile(`^CRT-\d{8}-[A-Z]{6}$`), resp.Booking.BookingCode)
		require.NotNil(t, resp.Booking.UserID)
		assert.Equal(t, actor.UserID, *resp.Booking.UserID)
		repo.AssertExpectations(t)
	})

	t.Run("gateway payment method extends the hold and reserves", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		linker := new(mockPaymentLinker)
		svc := NewService(repo, venues, testConfig())
		svc.SetPaymentLinker(linker)

		venues.On("ValidateCourts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateWithConflictCheck", mock.Anything, mock.Anything).Return(nil)
		linker.On("CreatePaymentSession", mock.Anything, mock.Anything).Return(&PaymentLink{
			OrderRef:    "173640000012",
			CheckoutURL: "https://pay.example/link",
		}, nil)

		req := newRequest()
		req.PaymentMethod = "gateway"

		before := time.Now()
		resp, err := svc.CreateHold(context.Background(), actor, req)
		require.NoError(t, err)

		assert.Equal(t, StatusReserved, resp.Booking.Status)
		assert.WithinDuration(t, before.Add(15*time.Minute), *resp.Booking.HoldUntil, 2*time.Second)
		require.NotNil(t, resp.Payment)
		assert.Equal(t, "173640000012", resp.Payment.OrderRef)
		assert.Empty(t, resp.PaymentError)
	})

	t.Run("payment link failure keeps the hold", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		linker := new(mockPaymentLinker)
		svc := NewService(repo, venues, testConfig())
		svc.SetPaymentLinker(linker)

		venues.On("ValidateCourts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateWithConflictCheck", mock.Anything, mock.Anything).Return(nil)
		linker.On("CreatePaymentSession", mock.Anything, mock.Anything).Return(nil, errors.New("gateway down"))

		req := newRequest()
		req.PaymentMethod = "gateway"

		resp, err := svc.CreateHold(context.Background(), actor, req)
		require.NoError(t, err, "link failure is not a hold failure")
		assert.Nil(t, resp.Payment)
		assert.Contains(t, resp.PaymentError, "gateway down")
		assert.Equal(t, StatusReserved, resp.Booking.Status)
	})

	t.Run("slot conflict from the transactional check surfaces", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		venues.On("ValidateCourts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateWithConflictCheck", mock.Anything, mock.Anything).
			Return(&SlotConflictError{Conflicts: []ConflictInfo{{BookingCode: "CRT-20250615-AAAAAA"}}})

		_, err := svc.CreateHold(context.Background(), actor, newRequest())

		var conflict *SlotConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Len(t, conflict.Conflicts, 1)
	})

	t.Run("guest hold has no owner", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		venues.On("ValidateCourts", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateWithConflictCheck", mock.Anything, mock.Anything).Return(nil)

		resp, err := svc.CreateHold(context.Background(), Actor{IsGuest: true}, newRequest())
		require.NoError(t, err)
		assert.Nil(t, resp.Booking.UserID)
	})

	t.Run("validation failures never reach the repository", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		testCases := []struct {
			name   string
			mutate func(*CreateHoldRequest)
		}{
			{"bad date", func(r *CreateHoldRequest) { r.Date = "15-06-2025" }},
			{"no slots", func(r *CreateHoldRequest) { r.Slots = nil }},
			{"inverted slot", func(r *CreateHoldRequest) { r.Slots = []timeslot.Slot{{Start: "10:00", End: "09:00"}} }},
			{"overlapping slots", func(r *CreateHoldRequest) {
				r.Slots = []timeslot.Slot{{Start: "09:00", End: "10:30"}, {Start: "10:00", End: "11:00"}}
			}},
			{"bad court id", func(r *CreateHoldRequest) { r.CourtIDs = []string{"not-a-uuid"} }},
			{"duplicate court", func(r *CreateHoldRequest) {
				id := uuid.NewString()
				r.CourtIDs = []string{id, id}
			}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				req := newRequest()
				tc.mutate(&req)

				_, err := svc.CreateHold(context.Background(), actor, req)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
			})
		}
		repo.AssertNotCalled(t, "CreateWithConflictCheck", mock.Anything, mock.Anything)
	})
}

func TestApplyPaymentPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("already paid is a no-op", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusConfirmed, PaymentStatus: PaymentPaid}
		require.NoError(t, svc.ApplyPaymentPaid(ctx, booking, "txn-2", time.Now()))

		repo.AssertNotCalled(t, "UpdateTransition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("terminal booking logs and ignores", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusCancelled, PaymentStatus: PaymentCancelled}
		require.NoError(t, svc.ApplyPaymentPaid(ctx, booking, "txn-late", time.Now()))

		assert.Equal(t, StatusCancelled, booking.Status)
		repo.AssertNotCalled(t, "UpdateTransition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reserved booking confirms", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		hold := time.Now().Add(5 * time.Minute)
		booking := &Booking{ID: uuid.New(), Status: StatusReserved, PaymentStatus: PaymentPending, HoldUntil: &hold}
		repo.On("UpdateTransition", mock.Anything, booking, StatusReserved).Return(nil)

		paidAt := time.Now()
		require.NoError(t, svc.ApplyPaymentPaid(ctx, booking, "txn-1", paidAt))

		assert.Equal(t, StatusConfirmed, booking.Status)
		assert.Equal(t, PaymentPaid, booking.PaymentStatus)
		assert.Nil(t, booking.HoldUntil)
		repo.AssertExpectations(t)
	})

	t.Run("lost guarded update race is swallowed", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusReserved, PaymentStatus: PaymentPending}
		repo.On("UpdateTransition", mock.Anything, booking, StatusReserved).Return(ErrStaleTransition)

		assert.NoError(t, svc.ApplyPaymentPaid(ctx, booking, "txn-1", time.Now()),
			"a concurrent trigger resolving first is not an error")
	})
}

func TestApplyPaymentCancelled(t *testing.T) {
	ctx := context.Background()

	t.Run("already cancelled is a no-op", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusCancelled}
		require.NoError(t, svc.ApplyPaymentCancelled(ctx, booking, "again"))
		repo.AssertNotCalled(t, "UpdateTransition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("completed booking is never cancelled by payments", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusCompleted}
		require.NoError(t, svc.ApplyPaymentCancelled(ctx, booking, "late cancel"))
		assert.Equal(t, StatusCompleted, booking.Status)
	})

	t.Run("pending hold cancels with reason", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusPending, PaymentStatus: PaymentPending}
		repo.On("UpdateTransition", mock.Anything, booking, StatusPending).Return(nil)

		require.NoError(t, svc.ApplyPaymentCancelled(ctx, booking, "hold expired, no payment method"))

		assert.Equal(t, StatusCancelled, booking.Status)
		assert.Equal(t, "hold expired, no payment method", booking.CancellationReason)
		assert.Equal(t, "payment-gateway", booking.CancelledBy)
	})
}

func TestReleaseHold(t *testing.T) {
	ctx := context.Background()
	holder := uuid.New()

	t.Run("holder releases own hold", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		hold := time.Now().Add(3 * time.Minute)
		booking := &Booking{ID: uuid.New(), Status: StatusPending, UserID: &holder, HoldUntil: &hold}
		repo.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
		repo.On("UpdateTransition", mock.Anything, booking, StatusPending).Return(nil)

		require.NoError(t, svc.ReleaseHold(ctx, Actor{UserID: holder, Role: "USER"}, booking.ID))
		assert.Equal(t, StatusCancelled, booking.Status)
	})

	t.Run("stranger may not release", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusPending, UserID: &holder}
		repo.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)

		err := svc.ReleaseHold(ctx, Actor{UserID: uuid.New(), Role: "USER"}, booking.ID)
		var authErr *NotAuthorizedError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("confirmed booking is not a hold", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, new(mockVenueDirectory), testConfig())

		booking := &Booking{ID: uuid.New(), Status: StatusConfirmed, UserID: &holder}
		repo.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)

		err := svc.ReleaseHold(ctx, Actor{UserID: holder, Role: "USER"}, booking.ID)
		var invalid *InvalidStateTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestGetVenueBookings(t *testing.T) {
	ctx := context.Background()
	venueID := uuid.New()
	ownerID := uuid.New()

	t.Run("owner reads their venue", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		venues.On("VenueOwner", mock.Anything, venueID).Return(ownerID, nil)
		repo.On("GetVenueBookings", mock.Anything, venueID, mock.Anything).Return([]Booking{}, int64(0), nil)

		_, _, err := svc.GetVenueBookings(ctx, Actor{UserID: ownerID, Role: "OWNER"}, venueID, BookingListQuery{})
		assert.NoError(t, err)
	})

	t.Run("other owner is refused", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		venues.On("VenueOwner", mock.Anything, venueID).Return(ownerID, nil)

		_, _, err := svc.GetVenueBookings(ctx, Actor{UserID: uuid.New(), Role: "OWNER"}, venueID, BookingListQuery{})
		var authErr *NotAuthorizedError
		assert.ErrorAs(t, err, &authErr)
		repo.AssertNotCalled(t, "GetVenueBookings", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("admin bypasses the owner check", func(t *testing.T) {
		repo := new(mockRepository)
		venues := new(mockVenueDirectory)
		svc := NewService(repo, venues, testConfig())

		repo.On("GetVenueBookings", mock.Anything, venueID, mock.Anything).Return([]Booking{}, int64(0), nil)

		_, _, err := svc.GetVenueBookings(ctx, Actor{UserID: uuid.New(), Role: "ADMIN"}, venueID, BookingListQuery{})
		assert.NoError(t, err)
		venues.AssertNotCalled(t, "VenueOwner", mock.Anything, mock.Anything)
	})
}

func TestGenerateBookingCode(t *testing.T) {
	seen := make(map[string]bool)
	pattern := regexp.MustCompile(`^CRT-\d{8}-[A-Z]{6}$`)

	for i := 0; i < 50; i++ {
		code, err := generateBookingCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "codes must not repeat: %s", code)
		seen[code] = true
	}
}
