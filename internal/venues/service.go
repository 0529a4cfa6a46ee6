package venues

import (
	"context"
	"errors"
	"fmt"

	"courtly/internal/shared/constants"
	"courtly/pkg/cache"

	"github.com/google/uuid"
)

var ErrNotVenueOwner = errors.New("not the venue owner")

type Service interface {
	CreateVenue(ctx context.Context, ownerID uuid.UUID, req CreateVenueRequest) (*Venue, error)
	GetVenue(ctx context.Context, id uuid.UUID) (*Venue, error)
	UpdateVenue(ctx context.Context, actorID uuid.UUID, isAdmin bool, id uuid.UUID, req UpdateVenueRequest) (*Venue, error)
	ListVenues(ctx context.Context, query VenueListQuery) ([]Venue, int64, error)

	AddCourt(ctx context.Context, actorID uuid.UUID, isAdmin bool, venueID uuid.UUID, req CreateCourtRequest) (*Court, error)
	SetCourtActive(ctx context.Context, actorID uuid.UUID, isAdmin bool, courtID uuid.UUID, active bool) error

	// ValidateCourts and VenueOwner back the bookings package's
	// VenueDirectory interface.
	ValidateCourts(ctx context.Context, venueID uuid.UUID, courtIDs []uuid.UUID) error
	VenueOwner(ctx context.Context, venueID uuid.UUID) (uuid.UUID, error)

	SetCacheService(cacheService cache.Service)
}

type service struct {
	repo  Repository
	cache cache.Service
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// SetCacheService enables cache-aside reads; the service works without it.
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cache = cacheService
}

func (s *service) CreateVenue(ctx context.Context, ownerID uuid.UUID, req CreateVenueRequest) (*Venue, error) {
	venue := &Venue{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Phone:       req.Phone,
		OpenTime:    defaultStr(req.OpenTime, "06:00"),
		CloseTime:   defaultStr(req.CloseTime, "23:00"),
		IsActive:    true,
	}
	if err := s.repo.CreateVenue(ctx, venue); err != nil {
		return nil, fmt.Errorf("failed to create venue: %w", err)
	}
	s.invalidateListings(ctx)
	return venue, nil
}

func (s *service) GetVenue(ctx context.Context, id uuid.UUID) (*Venue, error) {
	if s.cache == nil {
		return s.repo.GetVenueByID(ctx, id)
	}

	var venue Venue
	err := s.cache.GetOrSet(ctx, constants.BuildVenueDetailKey(id.String()), constants.TTL_SEMI_STATIC_MEDIUM,
		func() (interface{}, error) {
			return s.repo.GetVenueByID(ctx, id)
		}, &venue)
	if err != nil {
		return nil, err
	}
	return &venue, nil
}

func (s *service) UpdateVenue(ctx context.Context, actorID uuid.UUID, isAdmin bool, id uuid.UUID, req UpdateVenueRequest) (*Venue, error) {
	venue, err := s.repo.GetVenueByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && venue.OwnerID != actorID {
		return nil, ErrNotVenueOwner
	}

	if req.Name != "" {
		venue.Name = req.Name
	}
	if req.Description != "" {
		venue.Description = req.Description
	}
	if req.Phone != "" {
		venue.Phone = req.Phone
	}
	if req.OpenTime != "" {
		venue.OpenTime = req.OpenTime
	}
	if req.CloseTime != "" {
		venue.CloseTime = req.CloseTime
	}
	if req.IsActive != nil {
		venue.IsActive = *req.IsActive
	}

	if err := s.repo.UpdateVenue(ctx, venue); err != nil {
		return nil, err
	}
	s.invalidateVenue(ctx, venue.ID)
	return venue, nil
}

// venueListing pairs a page of venues with the unfiltered total so both
// survive a round trip through the cache.
type venueListing struct {
	Venues []Venue `json:"venues"`
	Total  int64   `json:"total"`
}

func (s *service) ListVenues(ctx context.Context, query VenueListQuery) ([]Venue, int64, error) {
	if s.cache == nil {
		return s.repo.ListVenues(ctx, query)
	}

	var cached venueListing
	key := constants.BuildVenuesListKey(query.Page, query.Limit, query.City, query.Sport)
	err := s.cache.GetOrSet(ctx, key, constants.TTL_SEMI_STATIC_SHORT,
		func() (interface{}, error) {
			venues, total, err := s.repo.ListVenues(ctx, query)
			if err != nil {
				return nil, err
			}
			return venueListing{Venues: venues, Total: total}, nil
		}, &cached)
	if err != nil {
		return nil, 0, err
	}
	return cached.Venues, cached.Total, nil
}

func (s *service) AddCourt(ctx context.Context, actorID uuid.UUID, isAdmin bool, venueID uuid.UUID, req CreateCourtRequest) (*Court, error) {
	venue, err := s.repo.GetVenueByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && venue.OwnerID != actorID {
		return nil, ErrNotVenueOwner
	}

	court := &Court{
		ID:           uuid.New(),
		VenueID:      venueID,
		Name:         req.Name,
		Sport:        req.Sport,
		Surface:      req.Surface,
		Indoor:       req.Indoor,
		PricePerSlot: req.PricePerSlot,
		IsActive:     true,
	}
	if err := s.repo.CreateCourt(ctx, court); err != nil {
		return nil, fmt.Errorf("failed to create court: %w", err)
	}
	s.invalidateVenue(ctx, venueID)
	return court, nil
}

func (s *service) SetCourtActive(ctx context.Context, actorID uuid.UUID, isAdmin bool, courtID uuid.UUID, active bool) error {
	court, err := s.repo.GetCourtByID(ctx, courtID)
	if err != nil {
		return err
	}
	venue, err := s.repo.GetVenueByID(ctx, court.VenueID)
	if err != nil {
		return err
	}
	if !isAdmin && venue.OwnerID != actorID {
		return ErrNotVenueOwner
	}

	court.IsActive = active
	if err := s.repo.UpdateCourt(ctx, court); err != nil {
		return err
	}
	s.invalidateVenue(ctx, venue.ID)
	return nil
}

// ValidateCourts confirms every requested court exists, is active, and
// belongs to the venue.
func (s *service) ValidateCourts(ctx context.Context, venueID uuid.UUID, courtIDs []uuid.UUID) error {
	count, err := s.repo.CountActiveCourts(ctx, venueID, courtIDs)
	if err != nil {
		return err
	}
	if count != int64(len(courtIDs)) {
		return fmt.Errorf("one or more courts are unknown, inactive, or belong to another venue")
	}
	return nil
}

func (s *service) VenueOwner(ctx context.Context, venueID uuid.UUID) (uuid.UUID, error) {
	venue, err := s.repo.GetVenueByID(ctx, venueID)
	if err != nil {
		return uuid.Nil, err
	}
	return venue.OwnerID, nil
}

func (s *service) invalidateVenue(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, constants.BuildVenueDetailKey(id.String()))
	s.invalidateListings(ctx)
}

func (s *service) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.DeletePattern(ctx, constants.CACHE_KEY_VENUES_LIST+"*")
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
