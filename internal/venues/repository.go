package venues

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrVenueNotFound = errors.New("venue not found")
	ErrCourtNotFound = errors.New("court not found")
)

type VenueListQuery struct {
	City  string
	Sport string
	Page  int
	Limit int
}

type Repository interface {
	CreateVenue(ctx context.Context, venue *Venue) error
	GetVenueByID(ctx context.Context, id uuid.UUID) (*Venue, error)
	UpdateVenue(ctx context.Context, venue *Venue) error
	ListVenues(ctx context.Context, query VenueListQuery) ([]Venue, int64, error)

	CreateCourt(ctx context.Context, court *Court) error
	GetCourtByID(ctx context.Context, id uuid.UUID) (*Court, error)
	UpdateCourt(ctx context.Context, court *Court) error
	CountActiveCourts(ctx context.Context, venueID uuid.UUID, courtIDs []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateVenue(ctx context.Context, venue *Venue) error {
	return r.db.WithContext(ctx).Create(venue).Error
}

func (r *repository) GetVenueByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	var venue Venue
	err := r.db.WithContext(ctx).Preload("Courts").First(&venue, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return &venue, nil
}

func (r *repository) UpdateVenue(ctx context.Context, venue *Venue) error {
	return r.db.WithContext(ctx).Save(venue).Error
}

func (r *repository) ListVenues(ctx context.Context, query VenueListQuery) ([]Venue, int64, error) {
	db := r.db.WithContext(ctx).Model(&Venue{}).Where("is_active = ?", true)
	if query.City != "" {
		db = db.Where("city = ?", query.City)
	}
	if query.Sport != "" {
		db = db.Where("EXISTS (SELECT 1 FROM courts c WHERE c.venue_id = venues.id AND c.sport = ? AND c.is_active)", query.Sport)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var venues []Venue
	err := db.Preload("Courts", "is_active = ?", true).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&venues).Error
	if err != nil {
		return nil, 0, err
	}
	return venues, total, nil
}

func (r *repository) CreateCourt(ctx context.Context, court *Court) error {
	return r.db.WithContext(ctx).Create(court).Error
}

func (r *repository) GetCourtByID(ctx context.Context, id uuid.UUID) (*Court, error) {
	var court Court
	err := r.db.WithContext(ctx).First(&court, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, err
	}
	return &court, nil
}

func (r *repository) UpdateCourt(ctx context.Context, court *Court) error {
	return r.db.WithContext(ctx).Save(court).Error
}

func (r *repository) CountActiveCourts(ctx context.Context, venueID uuid.UUID, courtIDs []uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Court{}).
		Where("venue_id = ? AND id IN ? AND is_active = ?", venueID, courtIDs, true).
		Count(&count).Error
	return count, err
}
