package bookings

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"courtly/internal/shared/utils/response"
	"courtly/internal/timeslot"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// actorFromContext resolves the acting user from the JWT claims set by the
// auth middleware. Hold creation also accepts guests.
func actorFromContext(ctx *gin.Context) (Actor, bool) {
	userIDStr, exists := ctx.Get("user_id")
	if !exists {
		return Actor{IsGuest: true}, false
	}
	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return Actor{IsGuest: true}, false
	}
	role, _ := ctx.Get("user_role")
	roleStr, _ := role.(string)
	return Actor{UserID: userID, Role: roleStr}, true
}

// CheckAvailability handles GET /api/v1/bookings/availability
func (c *Controller) CheckAvailability(ctx *gin.Context) {
	req := AvailabilityRequest{
		VenueID:  ctx.Query("venue_id"),
		Date:     ctx.Query("date"),
		CourtIDs: ctx.QueryArray("court_ids"),
	}
	// Slots arrive as parallel start/end query params.
	starts := ctx.QueryArray("start")
	ends := ctx.QueryArray("end")
	if len(starts) != len(ends) {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "start and end params must pair up", nil, nil)
		return
	}
	for i := range starts {
		req.Slots = append(req.Slots, timeslot.Slot{Start: starts[i], End: ends[i]})
	}

	result, err := c.service.CheckAvailability(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Availability checked", result, nil)
}

// CreateHold handles POST /api/v1/bookings/hold
func (c *Controller) CreateHold(ctx *gin.Context) {
	var req CreateHoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	actor, _ := actorFromContext(ctx)
	hold, err := c.service.CreateHold(ctx.Request.Context(), actor, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	data := gin.H{
		"booking":    ToBookingResponse(hold.Booking),
		"hold_until": hold.HoldUntil,
	}
	if hold.Payment != nil {
		data["payment"] = hold.Payment
	}
	if hold.PaymentError != "" {
		data["payment_error"] = hold.PaymentError
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Hold created", data, nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	actor, authenticated := actorFromContext(ctx)
	if authenticated && !actor.isAdmin() && booking.UserID != nil && !booking.OwnedBy(actor.UserID) {
		// Venue owners read through the venue listing endpoint instead.
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Not your booking", nil, nil)
		return
	}

	resp := ToBookingResponse(booking)
	if !canSeeContact(actor, authenticated, ctx.Query("code"), booking) {
		resp.RedactContact()
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved", resp, nil)
}

// canSeeContact decides whether a caller may read the customer snapshot on
// a booking. Owners and admins always may; everyone else must present the
// booking code, which acts as a bearer capability for guest flows.
func canSeeContact(actor Actor, authenticated bool, code string, booking *Booking) bool {
	if authenticated && (actor.isAdmin() || booking.OwnedBy(actor.UserID)) {
		return true
	}
	return code != "" && code == booking.BookingCode
}

// GetUserBookings handles GET /api/v1/users/bookings
func (c *Controller) GetUserBookings(ctx *gin.Context) {
	actor, authenticated := actorFromContext(ctx)
	if !authenticated {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	query := listQueryFromContext(ctx)
	bookings, total, err := c.service.GetUserBookings(ctx.Request.Context(), actor.UserID, query)
	if err != nil {
		respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved", gin.H{
		"bookings": ToBookingResponses(bookings),
		"total":    total,
		"page":     query.Page,
		"limit":    query.Limit,
	}, nil)
}

// GetVenueBookings handles GET /api/v1/venues/:id/bookings
func (c *Controller) GetVenueBookings(ctx *gin.Context) {
	venueID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid venue ID", nil, nil)
		return
	}
	actor, authenticated := actorFromContext(ctx)
	if !authenticated {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	query := listQueryFromContext(ctx)
	bookings, total, err := c.service.GetVenueBookings(ctx.Request.Context(), actor, venueID, query)
	if err != nil {
		respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved", gin.H{
		"bookings": ToBookingResponses(bookings),
		"total":    total,
		"page":     query.Page,
		"limit":    query.Limit,
	}, nil)
}

// ReleaseHold handles POST /api/v1/bookings/:id/release
func (c *Controller) ReleaseHold(ctx *gin.Context) {
	c.act(ctx, "Hold released", func(actor Actor, id uuid.UUID, _ ActionRequest) error {
		return c.service.ReleaseHold(ctx.Request.Context(), actor, id)
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	c.act(ctx, "Booking cancelled", func(actor Actor, id uuid.UUID, req ActionRequest) error {
		return c.service.CancelBooking(ctx.Request.Context(), actor, id, req.Reason)
	})
}

// ApproveBooking handles POST /api/v1/bookings/:id/approve
func (c *Controller) ApproveBooking(ctx *gin.Context) {
	c.act(ctx, "Booking approved", func(actor Actor, id uuid.UUID, _ ActionRequest) error {
		return c.service.ApproveBooking(ctx.Request.Context(), actor, id)
	})
}

// RejectBooking handles POST /api/v1/bookings/:id/reject
func (c *Controller) RejectBooking(ctx *gin.Context) {
	c.act(ctx, "Booking rejected", func(actor Actor, id uuid.UUID, req ActionRequest) error {
		return c.service.RejectBooking(ctx.Request.Context(), actor, id, req.Reason)
	})
}

// CheckInBooking handles POST /api/v1/bookings/:id/checkin
func (c *Controller) CheckInBooking(ctx *gin.Context) {
	c.act(ctx, "Customer checked in", func(actor Actor, id uuid.UUID, _ ActionRequest) error {
		return c.service.CheckInBooking(ctx.Request.Context(), actor, id)
	})
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete
func (c *Controller) CompleteBooking(ctx *gin.Context) {
	c.act(ctx, "Booking completed", func(actor Actor, id uuid.UUID, _ ActionRequest) error {
		return c.service.CompleteBooking(ctx.Request.Context(), actor, id)
	})
}

// MarkNoShow handles POST /api/v1/bookings/:id/no-show
func (c *Controller) MarkNoShow(ctx *gin.Context) {
	c.act(ctx, "Booking marked as no-show", func(actor Actor, id uuid.UUID, _ ActionRequest) error {
		return c.service.MarkNoShow(ctx.Request.Context(), actor, id)
	})
}

// SweepHolds handles POST /api/v1/bookings/cleanup (admin)
func (c *Controller) SweepHolds(ctx *gin.Context) {
	var req SweepRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	report, err := c.service.SweepExpiredHolds(ctx.Request.Context(), time.Duration(req.MaxAgeMinutes)*time.Minute)
	if err != nil {
		respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Sweep finished", report, nil)
}

func (c *Controller) act(ctx *gin.Context, message string, fn func(Actor, uuid.UUID, ActionRequest) error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}
	actor, authenticated := actorFromContext(ctx)
	if !authenticated {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}
	var req ActionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := fn(actor, id, req); err != nil {
		respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message, nil, nil)
}

func listQueryFromContext(ctx *gin.Context) BookingListQuery {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	query := BookingListQuery{
		Page:     page,
		Limit:    limit,
		Status:   ctx.Query("status"),
		DateFrom: ctx.Query("date_from"),
		DateTo:   ctx.Query("date_to"),
	}
	// A bare date param bounds both ends of the range to that one day.
	if date := ctx.Query("date"); date != "" {
		query.DateFrom = date
		query.DateTo = date
	}
	return query
}

// respondError maps domain errors onto HTTP statuses.
func respondError(ctx *gin.Context, err error) {
	var validationErr *ValidationError
	var conflictErr *SlotConflictError
	var authErr *NotAuthorizedError
	var stateErr *InvalidStateTransitionError

	switch {
	case errors.As(err, &validationErr):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, validationErr.Error(), nil, validationErr)
	case errors.As(err, &conflictErr):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Requested slots are not available", gin.H{
			"conflicts": conflictErr.Conflicts,
		}, nil)
	case errors.As(err, &authErr):
		response.RespondJSON(ctx, "error", http.StatusForbidden, authErr.Error(), nil, nil)
	case errors.As(err, &stateErr):
		response.RespondJSON(ctx, "error", http.StatusConflict, stateErr.Error(), nil, nil)
	case errors.Is(err, ErrBookingNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Booking not found", nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
	}
}
