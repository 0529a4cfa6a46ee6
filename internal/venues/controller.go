package venues

import (
	"errors"
	"net/http"
	"strconv"

	"courtly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func actorFromContext(ctx *gin.Context) (uuid.UUID, bool, bool) {
	userIDStr, exists := ctx.Get("user_id")
	if !exists {
		return uuid.Nil, false, false
	}
	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, false, false
	}
	role, _ := ctx.Get("user_role")
	roleStr, _ := role.(string)
	return userID, roleStr == "ADMIN", true
}

// ListVenues handles GET /api/v1/venues
func (c *Controller) ListVenues(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	query := VenueListQuery{
		City:  ctx.Query("city"),
		Sport: ctx.Query("sport"),
		Page:  page,
		Limit: limit,
	}

	venues, total, err := c.service.ListVenues(ctx.Request.Context(), query)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list venues", nil, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Venues retrieved", gin.H{
		"venues": venues,
		"total":  total,
		"page":   page,
		"limit":  limit,
	}, nil)
}

// GetVenue handles GET /api/v1/venues/:id
func (c *Controller) GetVenue(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid venue ID", nil, nil)
		return
	}

	venue, err := c.service.GetVenue(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Venue retrieved", venue, nil)
}

// CreateVenue handles POST /api/v1/venues
func (c *Controller) CreateVenue(ctx *gin.Context) {
	ownerID, _, ok := actorFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateVenueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	venue, err := c.service.CreateVenue(ctx.Request.Context(), ownerID, req)
	if err != nil {
		c.respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Venue created", venue, nil)
}

// UpdateVenue handles PUT /api/v1/venues/:id
func (c *Controller) UpdateVenue(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid venue ID", nil, nil)
		return
	}
	actorID, isAdmin, ok := actorFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req UpdateVenueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	venue, err := c.service.UpdateVenue(ctx.Request.Context(), actorID, isAdmin, id, req)
	if err != nil {
		c.respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Venue updated", venue, nil)
}

// AddCourt handles POST /api/v1/venues/:id/courts
func (c *Controller) AddCourt(ctx *gin.Context) {
	venueID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid venue ID", nil, nil)
		return
	}
	actorID, isAdmin, ok := actorFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateCourtRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	court, err := c.service.AddCourt(ctx.Request.Context(), actorID, isAdmin, venueID, req)
	if err != nil {
		c.respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Court added", court, nil)
}

// SetCourtActive handles PATCH /api/v1/courts/:id/active
func (c *Controller) SetCourtActive(ctx *gin.Context) {
	courtID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid court ID", nil, nil)
		return
	}
	actorID, isAdmin, ok := actorFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req SetCourtActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.service.SetCourtActive(ctx.Request.Context(), actorID, isAdmin, courtID, *req.Active); err != nil {
		c.respondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Court updated", nil, nil)
}

func (c *Controller) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrVenueNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Venue not found", nil, nil)
	case errors.Is(err, ErrCourtNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Court not found", nil, nil)
	case errors.Is(err, ErrNotVenueOwner):
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Not the venue owner", nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
	}
}
