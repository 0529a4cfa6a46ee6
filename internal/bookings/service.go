package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"courtly/internal/notifications"
	"courtly/internal/shared/config"
	"courtly/internal/shared/constants"
	"courtly/internal/timeslot"
	"courtly/pkg/cache"
	"courtly/pkg/logger"

	"github.com/google/uuid"
)

// VenueDirectory is the slice of the venues service the booking core needs
// (kept as a local interface to avoid a package cycle).
type VenueDirectory interface {
	ValidateCourts(ctx context.Context, venueID uuid.UUID, courtIDs []uuid.UUID) error
	VenueOwner(ctx context.Context, venueID uuid.UUID) (uuid.UUID, error)
}

// PaymentLink is what the payments service hands back after creating a
// gateway checkout session for a booking.
type PaymentLink struct {
	OrderRef    string    `json:"order_ref"`
	CheckoutURL string    `json:"checkout_url"`
	QRCode      string    `json:"qr_code,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PaymentLinker is the slice of the payments service used during hold
// creation.
type PaymentLinker interface {
	CreatePaymentSession(ctx context.Context, booking *Booking) (*PaymentLink, error)
}

// Actor identifies who is performing a mutation, resolved from the JWT by
// the controller.
type Actor struct {
	UserID  uuid.UUID
	Role    string
	IsGuest bool
}

func (a Actor) isAdmin() bool { return a.Role == "ADMIN" }

type Service interface {
	CheckAvailability(ctx context.Context, req AvailabilityRequest) (*AvailabilityResult, error)

	CreateHold(ctx context.Context, actor Actor, req CreateHoldRequest) (*HoldResponse, error)
	ReleaseHold(ctx context.Context, actor Actor, bookingID uuid.UUID) error

	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)
	GetVenueBookings(ctx context.Context, actor Actor, venueID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)

	CancelBooking(ctx context.Context, actor Actor, id uuid.UUID, reason string) error
	ApproveBooking(ctx context.Context, actor Actor, id uuid.UUID) error
	RejectBooking(ctx context.Context, actor Actor, id uuid.UUID, reason string) error
	CheckInBooking(ctx context.Context, actor Actor, id uuid.UUID) error
	CompleteBooking(ctx context.Context, actor Actor, id uuid.UUID) error
	MarkNoShow(ctx context.Context, actor Actor, id uuid.UUID) error

	// Reconciliation entry points. All three payment triggers and the
	// sweeper converge on these; both are idempotent.
	GetByGatewayOrderRef(ctx context.Context, orderRef string) (*Booking, error)
	ApplyPaymentPaid(ctx context.Context, booking *Booking, transactionRef string, paidAt time.Time) error
	ApplyPaymentCancelled(ctx context.Context, booking *Booking, reason string) error

	SweepExpiredHolds(ctx context.Context, maxAge time.Duration) (*SweepReport, error)

	// Payments wiring happens after both services exist, so these are
	// setters rather than constructor arguments.
	SetPaymentLinker(linker PaymentLinker)
	SetExpiredHoldResolver(resolver ExpiredHoldResolver)
}

type service struct {
	repo     Repository
	venues   VenueDirectory
	payments PaymentLinker
	lock     *SlotLock
	cache    cache.Service
	producer notifications.Producer
	resolver ExpiredHoldResolver
	cfg      *config.Config
}

func NewService(repo Repository, venues VenueDirectory, cfg *config.Config) *service {
	return &service{
		repo:   repo,
		venues: venues,
		cfg:    cfg,
	}
}

// Optional collaborators, injected by the composition root.

func (s *service) SetPaymentLinker(linker PaymentLinker)        { s.payments = linker }
func (s *service) SetSlotLock(lock *SlotLock)                   { s.lock = lock }
func (s *service) SetCacheService(cacheService cache.Service)   { s.cache = cacheService }
func (s *service) SetProducer(producer notifications.Producer)  { s.producer = producer }
func (s *service) SetExpiredHoldResolver(r ExpiredHoldResolver) { s.resolver = r }

//  HOLD CREATION

// CreateHold re-validates availability inside the same atomic operation
// that inserts the booking. A Redis slot lock gates the transaction so
// concurrent holds for the same court/date/slot fail fast; the FOR UPDATE
// re-check inside CreateWithConflictCheck is the authority either way.
func (s *service) CreateHold(ctx context.Context, actor Actor, req CreateHoldRequest) (*HoldResponse, error) {
	booking, err := s.buildBooking(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	holdTTL := s.cfg.Booking.QuickHoldTTL
	if req.PaymentMethod != "" {
		holdTTL = s.cfg.Booking.PaymentHoldTTL
	}
	holdUntil := time.Now().Add(holdTTL)
	booking.HoldUntil = &holdUntil
	if req.Reserve || req.PaymentMethod != "" {
		booking.Status = StatusReserved
	} else {
		booking.Status = StatusPending
	}

	if s.lock != nil {
		acquired, conflictKey, err := s.lock.Acquire(ctx, booking.CourtIDs(), req.Date, timeslot.Signature(booking.TimeSlots()), holdTTL)
		if err != nil {
			logger.GetDefault().Warn("slot lock unavailable, relying on transactional check", "error", err)
		} else if !acquired {
			conflicts, cErr := s.conflictsFor(ctx, booking)
			if cErr != nil || len(conflicts) == 0 {
				// The lock holder has not inserted yet; report the
				// collision without booking details.
				return nil, &SlotConflictError{Conflicts: nil}
			}
			logger.GetDefault().Debug("slot lock collision", "key", conflictKey)
			return nil, &SlotConflictError{Conflicts: conflicts}
		}
	}

	if err := s.repo.CreateWithConflictCheck(ctx, booking); err != nil {
		if s.lock != nil {
			s.lock.Release(ctx, booking.CourtIDs(), req.Date, timeslot.Signature(booking.TimeSlots()))
		}
		return nil, err
	}

	s.invalidateAvailability(ctx, booking)
	logger.GetDefault().LogHoldCreated(ctx, booking.BookingCode, booking.VenueID.String(), holdUntil)
	s.publish(ctx, notifications.EventHoldCreated, booking)

	resp := &HoldResponse{Booking: booking, HoldUntil: holdUntil}

	// Payment-link failure keeps the hold active within its window: the
	// client sees the error and may retry link creation; the normal
	// expiry path reaps the hold if retry never succeeds.
	if req.PaymentMethod != "" && s.payments != nil {
		link, err := s.payments.CreatePaymentSession(ctx, booking)
		if err != nil {
			logger.GetDefault().Warn("payment link creation failed, hold kept",
				"booking_id", booking.ID.String(),
				"error", err.Error(),
			)
			resp.PaymentError = err.Error()
			return resp, nil
		}
		booking.GatewayOrderRef = link.OrderRef
		resp.Payment = link
	}

	return resp, nil
}

func (s *service) buildBooking(ctx context.Context, actor Actor, req CreateHoldRequest) (*Booking, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: "expected YYYY-MM-DD"}
	}
	if len(req.Slots) == 0 {
		return nil, &ValidationError{Field: "slots", Message: "at least one slot is required"}
	}
	if err := timeslot.Validate(req.Slots); err != nil {
		return nil, &ValidationError{Field: "slots", Message: err.Error()}
	}
	if timeslot.OverlapWithin(req.Slots) {
		return nil, &ValidationError{Field: "slots", Message: "requested slots overlap each other"}
	}

	venueID, err := uuid.Parse(req.VenueID)
	if err != nil {
		return nil, &ValidationError{Field: "venue_id", Message: "invalid venue id"}
	}
	courtIDs, err := parseCourtIDs(req.CourtIDs)
	if err != nil {
		return nil, err
	}
	if err := s.venues.ValidateCourts(ctx, venueID, courtIDs); err != nil {
		return nil, &ValidationError{Field: "court_ids", Message: err.Error()}
	}

	code, err := generateBookingCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking code: %w", err)
	}

	booking := &Booking{
		ID:            uuid.New(),
		BookingCode:   code,
		VenueID:       venueID,
		Date:          date,
		PaymentStatus: PaymentPending,
		PaymentMethod: req.PaymentMethod,
		TotalPrice:    timeslot.TotalPrice(req.Slots, len(courtIDs)),
		CourtQuantity: len(courtIDs),
		CustomerName:  req.Customer.FullName,
		CustomerPhone: req.Customer.Phone,
		CustomerEmail: req.Customer.Email,
	}
	if !actor.IsGuest {
		userID := actor.UserID
		booking.UserID = &userID
	}

	for i, courtID := range courtIDs {
		booking.Courts = append(booking.Courts, BookingCourt{
			ID:        uuid.New(),
			BookingID: booking.ID,
			CourtID:   courtID,
			Position:  i,
		})
	}
	for _, slot := range req.Slots {
		startMin, _ := timeslot.ToMinutes(slot.Start)
		endMin, _ := timeslot.ToMinutes(slot.End)
		booking.Slots = append(booking.Slots, BookingSlot{
			ID:        uuid.New(),
			BookingID: booking.ID,
			StartTime: slot.Start,
			EndTime:   slot.End,
			StartMin:  startMin,
			EndMin:    endMin,
			Price:     slot.Price,
		})
	}

	return booking, nil
}

func (s *service) conflictsFor(ctx context.Context, booking *Booking) ([]ConflictInfo, error) {
	existing, err := s.repo.FindBlocking(ctx, booking.CourtIDs(), booking.Date)
	if err != nil {
		return nil, err
	}
	return collectConflicts(existing, booking.CourtIDs(), booking.TimeSlots(), time.Now()), nil
}

//  OWNER AND CUSTOMER ACTIONS

func (s *service) ReleaseHold(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !booking.OwnedBy(actor.UserID) && !actor.isAdmin() {
		return &NotAuthorizedError{Reason: "only the holder or an admin may release a hold"}
	}
	if !booking.Status.IsHoldState() {
		return &InvalidStateTransitionError{BookingID: booking.ID, From: booking.Status, To: StatusCancelled}
	}

	return s.transition(ctx, booking, func(b *Booking) error {
		return b.Cancel(actor.UserID.String(), "hold released by holder", time.Now())
	}, notifications.EventBookingCancelled)
}

func (s *service) CancelBooking(ctx context.Context, actor Actor, id uuid.UUID, reason string) error {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeMutation(ctx, actor, booking); err != nil {
		return err
	}
	if reason == "" {
		reason = "cancelled by user"
	}
	return s.transition(ctx, booking, func(b *Booking) error {
		return b.Cancel(actor.UserID.String(), reason, time.Now())
	}, notifications.EventBookingCancelled)
}

func (s *service) ApproveBooking(ctx context.Context, actor Actor, id uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, actor, booking); err != nil {
		return err
	}
	return s.transition(ctx, booking, func(b *Booking) error {
		return b.Approve(time.Now())
	}, notifications.EventBookingConfirmed)
}

func (s *service) RejectBooking(ctx context.Context, actor Actor, id uuid.UUID, reason string) error {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, actor, booking); err != nil {
		return err
	}
	if reason == "" {
		reason = "rejected by venue owner"
	}
	return s.transition(ctx, booking, func(b *Booking) error {
		return b.Reject(actor.UserID.String(), reason, time.Now())
	}, notifications.EventBookingCancelled)
}

func (s *service) CheckInBooking(ctx context.Context, actor Actor, id uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, actor, booking); err != nil {
		return err
	}
	return s.transition(ctx, booking, func(b *Booking) error {
		return b.CheckIn(time.Now())
	}, notifications.EventBookingCheckedIn)
}

func (s *service) CompleteBooking(ctx context.Context, actor Actor, id uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, actor, booking); err != nil {
		return err
	}
	return s.transition(ctx, booking, func(b *Booking) error {
		return b.Complete(time.Now())
	}, notifications.EventBookingCompleted)
}

func (s *service) MarkNoShow(ctx context.Context, actor Actor, id uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, actor, booking); err != nil {
		return err
	}
	return s.transition(ctx, booking, func(b *Booking) error {
		return b.MarkNoShow(time.Now())
	}, notifications.EventBookingCancelled)
}

func (s *service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// bookingListing pairs a page of bookings with the total so both survive
// a round trip through the cache.
type bookingListing struct {
	Bookings []Booking `json:"bookings"`
	Total    int64     `json:"total"`
}

func (s *service) GetUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	// Only the plain paged listing is cached; filtered queries go straight
	// to the database.
	filtered := query.Status != "" || query.VenueID != "" || query.DateFrom != "" || query.DateTo != ""
	if s.cache == nil || filtered {
		return s.repo.GetUserBookings(ctx, userID, query)
	}

	var cached bookingListing
	key := constants.BuildUserBookingsKey(userID.String(), query.Page, query.Limit)
	err := s.cache.GetOrSet(ctx, key, constants.TTL_REALTIME_MEDIUM,
		func() (interface{}, error) {
			items, total, err := s.repo.GetUserBookings(ctx, userID, query)
			if err != nil {
				return nil, err
			}
			return bookingListing{Bookings: items, Total: total}, nil
		}, &cached)
	if err != nil {
		return nil, 0, err
	}
	return cached.Bookings, cached.Total, nil
}

func (s *service) GetVenueBookings(ctx context.Context, actor Actor, venueID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	if !actor.isAdmin() {
		ownerID, err := s.venues.VenueOwner(ctx, venueID)
		if err != nil {
			return nil, 0, err
		}
		if ownerID != actor.UserID {
			return nil, 0, &NotAuthorizedError{Reason: "not the venue owner"}
		}
	}
	return s.repo.GetVenueBookings(ctx, venueID, query)
}

//  RECONCILIATION TRANSITIONS

func (s *service) GetByGatewayOrderRef(ctx context.Context, orderRef string) (*Booking, error) {
	return s.repo.GetByGatewayOrderRef(ctx, orderRef)
}

// ApplyPaymentPaid converges a booking onto confirmed/paid. Applying it to
// an already-paid booking is a no-op, so repeated webhooks, polls, and
// redirect verifications are safe.
func (s *service) ApplyPaymentPaid(ctx context.Context, booking *Booking, transactionRef string, paidAt time.Time) error {
	if booking.PaymentStatus == PaymentPaid {
		return nil
	}
	if booking.Status.IsTerminal() {
		logger.GetDefault().Warn("PAID received for terminal booking, ignoring",
			"booking_id", booking.ID.String(),
			"status", booking.Status.String(),
		)
		return nil
	}

	return s.transition(ctx, booking, func(b *Booking) error {
		return b.ConfirmPayment(transactionRef, paidAt)
	}, notifications.EventBookingConfirmed)
}

// ApplyPaymentCancelled converges a booking onto cancelled after the
// gateway reported the payment cancelled or the hold lapsed unresolved.
func (s *service) ApplyPaymentCancelled(ctx context.Context, booking *Booking, reason string) error {
	if booking.Status == StatusCancelled || booking.Status == StatusExpired {
		return nil
	}
	if booking.Status.IsTerminal() {
		logger.GetDefault().Warn("payment cancellation for terminal booking, ignoring",
			"booking_id", booking.ID.String(),
			"status", booking.Status.String(),
		)
		return nil
	}

	return s.transition(ctx, booking, func(b *Booking) error {
		return b.Cancel("payment-gateway", reason, time.Now())
	}, notifications.EventBookingCancelled)
}

// transition applies a lifecycle mutation and persists it guarded on the
// status the caller read. A stale guard means another trigger resolved the
// booking first; that is a no-op, not an error.
func (s *service) transition(ctx context.Context, booking *Booking, mutate func(*Booking) error, eventType notifications.EventType) error {
	from := booking.Status
	if err := mutate(booking); err != nil {
		return err
	}

	if err := s.repo.UpdateTransition(ctx, booking, from); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			logger.GetDefault().Info("transition lost race, already resolved",
				"booking_id", booking.ID.String(),
				"from", from.String(),
				"to", booking.Status.String(),
			)
			return nil
		}
		return err
	}

	s.invalidateAvailability(ctx, booking)
	s.releaseSlotLockIfFreed(ctx, booking)
	switch booking.Status {
	case StatusConfirmed:
		logger.GetDefault().LogBookingConfirmed(ctx, booking.BookingCode, booking.GatewayTransactionRef)
	case StatusCancelled:
		logger.GetDefault().LogBookingCancelled(ctx, booking.BookingCode, booking.CancellationReason)
	}
	s.publish(ctx, eventType, booking)
	return nil
}

func (s *service) releaseSlotLockIfFreed(ctx context.Context, booking *Booking) {
	if s.lock == nil {
		return
	}
	if booking.Status == StatusCancelled || booking.Status == StatusExpired {
		s.lock.Release(ctx, booking.CourtIDs(), booking.Date.Format("2006-01-02"), timeslot.Signature(booking.TimeSlots()))
	}
}

func (s *service) publish(ctx context.Context, eventType notifications.EventType, booking *Booking) {
	if s.producer == nil {
		return
	}
	event := notifications.BookingEvent{
		Type:        eventType,
		BookingID:   booking.ID.String(),
		BookingCode: booking.BookingCode,
		VenueID:     booking.VenueID.String(),
		Status:      booking.Status.String(),
		TotalPrice:  booking.TotalPrice,
		Email:       booking.CustomerEmail,
		OccurredAt:  time.Now(),
	}
	if err := s.producer.PublishBookingEvent(ctx, event); err != nil {
		// Notifications are best effort and never fail a booking.
		logger.GetDefault().Warn("failed to publish booking event",
			"booking_id", booking.ID.String(),
			"event", string(eventType),
			"error", err.Error(),
		)
	}
}

func (s *service) authorizeMutation(ctx context.Context, actor Actor, booking *Booking) error {
	if actor.isAdmin() || booking.OwnedBy(actor.UserID) {
		return nil
	}
	ownerID, err := s.venues.VenueOwner(ctx, booking.VenueID)
	if err == nil && ownerID == actor.UserID {
		return nil
	}
	return &NotAuthorizedError{Reason: "not the booking owner, venue owner, or an admin"}
}

func (s *service) authorizeOwner(ctx context.Context, actor Actor, booking *Booking) error {
	if actor.isAdmin() {
		return nil
	}
	ownerID, err := s.venues.VenueOwner(ctx, booking.VenueID)
	if err != nil {
		return err
	}
	if ownerID != actor.UserID {
		return &NotAuthorizedError{Reason: "not the venue owner"}
	}
	return nil
}

func parseCourtIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "court_ids", Message: "at least one court is required"}
	}
	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, idStr := range raw {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, &ValidationError{Field: "court_ids", Message: "invalid court id: " + idStr}
		}
		if seen[id] {
			return nil, &ValidationError{Field: "court_ids", Message: "duplicate court id: " + idStr}
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// generateBookingCode builds a human-readable unique code,
// e.g. CRT-20250110-KQZMXA.
func generateBookingCode() (string, error) {
	timestamp := time.Now().Format("20060102")

	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomPart := make([]byte, 6)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("CRT-%s-%s", timestamp, string(randomPart)), nil
}
