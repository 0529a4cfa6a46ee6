package bookings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"courtly/internal/shared/constants"
	"courtly/internal/timeslot"

	"courtly/pkg/logger"

	"github.com/google/uuid"
)

type AvailabilityRequest struct {
	VenueID  string          `form:"venue_id" binding:"required,uuid"`
	Date     string          `form:"date" binding:"required"`
	CourtIDs []string        `form:"court_ids" binding:"required,min=1"`
	Slots    []timeslot.Slot `form:"-"`
}

// SlotAvailability reports one requested slot across all requested courts.
type SlotAvailability struct {
	Slot      timeslot.Slot  `json:"slot"`
	Available bool           `json:"available"`
	Conflicts []ConflictInfo `json:"conflicts,omitempty"`
}

type AvailabilityResult struct {
	VenueID   string             `json:"venue_id"`
	Date      string             `json:"date"`
	CourtIDs  []string           `json:"court_ids"`
	Available bool               `json:"available"`
	Slots     []SlotAvailability `json:"slots"`
	CheckedAt time.Time          `json:"checked_at"`
}

// CheckAvailability answers whether every requested slot is free on every
// requested court. A booking blocks a slot only while it is active:
// confirmed or in progress, or holding with an unexpired hold window.
// Expired holds stop blocking the moment their window lapses, with no
// dependency on the sweeper having run.
func (s *service) CheckAvailability(ctx context.Context, req AvailabilityRequest) (*AvailabilityResult, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: "expected YYYY-MM-DD"}
	}
	courtIDs, err := parseCourtIDs(req.CourtIDs)
	if err != nil {
		return nil, err
	}
	if len(req.Slots) > 0 {
		if err := timeslot.Validate(req.Slots); err != nil {
			return nil, &ValidationError{Field: "slots", Message: err.Error()}
		}
	}

	cacheKey := availabilityCacheKey(req.VenueID, req.Date, courtIDs, req.Slots)
	if s.cache != nil {
		var cached AvailabilityResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	existing, err := s.repo.FindBlocking(ctx, courtIDs, date)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := evaluateAvailability(req, courtIDs, existing, now)

	if s.cache != nil {
		if ttl := availabilityCacheTTL(result, now); ttl > 0 {
			if err := s.cache.Set(ctx, cacheKey, result, ttl); err != nil {
				logger.GetDefault().Debug("availability cache write failed", "error", err)
			}
		}
	}
	return result, nil
}

// availabilityCacheTTL caps the cache lifetime so a cached answer never
// reports a hold as blocking past its own hold window. Conflicts from
// confirmed bookings carry no hold expiry and keep the full TTL.
func availabilityCacheTTL(result *AvailabilityResult, now time.Time) time.Duration {
	ttl := constants.AvailabilityCacheTTL
	for _, slot := range result.Slots {
		for _, conflict := range slot.Conflicts {
			if conflict.HoldUntil == nil {
				continue
			}
			if remaining := conflict.HoldUntil.Sub(now); remaining < ttl {
				ttl = remaining
			}
		}
	}
	return ttl
}

// evaluateAvailability is the pure core of the check, shared with tests.
func evaluateAvailability(req AvailabilityRequest, courtIDs []uuid.UUID, existing []Booking, now time.Time) *AvailabilityResult {
	result := &AvailabilityResult{
		VenueID:   req.VenueID,
		Date:      req.Date,
		CourtIDs:  req.CourtIDs,
		Available: true,
		CheckedAt: now,
	}

	// No slots requested: vacuously available.
	for _, slot := range req.Slots {
		conflicts := collectConflicts(existing, courtIDs, []timeslot.Slot{slot}, now)
		entry := SlotAvailability{
			Slot:      slot,
			Available: len(conflicts) == 0,
			Conflicts: conflicts,
		}
		if !entry.Available {
			result.Available = false
		}
		result.Slots = append(result.Slots, entry)
	}
	return result
}

// collectConflicts applies the single blocking rule: a booking conflicts
// when it is active now, covers one of the requested courts, and any of
// its slots overlaps any requested slot.
func collectConflicts(existing []Booking, courtIDs []uuid.UUID, requested []timeslot.Slot, now time.Time) []ConflictInfo {
	var conflicts []ConflictInfo
	for i := range existing {
		b := &existing[i]
		if !b.ActiveAt(now) {
			continue
		}
		if !timeslot.AnyOverlap(requested, b.TimeSlots()) {
			continue
		}
		for _, courtID := range courtIDs {
			if !b.CoversCourt(courtID) {
				continue
			}
			conflicts = append(conflicts, ConflictInfo{
				BookingID:   b.ID,
				BookingCode: b.BookingCode,
				CourtID:     courtID,
				Status:      b.Status,
				HeldBy:      b.UserID,
				HoldUntil:   b.HoldUntil,
				Slots:       b.TimeSlots(),
			})
		}
	}
	return conflicts
}

func availabilityCacheKey(venueID, date string, courtIDs []uuid.UUID, slots []timeslot.Slot) string {
	ids := make([]string, len(courtIDs))
	for i, id := range courtIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return fmt.Sprintf("%s%s:%s:%s:%s",
		constants.AvailabilityKeyPrefix,
		venueID,
		date,
		strings.Join(ids, ","),
		strings.Join(timeslot.Signature(slots), ","),
	)
}

// invalidateAvailability drops every cached availability answer for the
// booking's venue and date after any state change.
func (s *service) invalidateAvailability(ctx context.Context, booking *Booking) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("%s%s:%s:*",
		constants.AvailabilityKeyPrefix,
		booking.VenueID.String(),
		booking.Date.Format("2006-01-02"),
	)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		logger.GetDefault().Debug("availability cache invalidation failed", "error", err)
	}

	if booking.UserID != nil {
		userPattern := constants.CACHE_KEY_USER_BOOKINGS + booking.UserID.String() + "*"
		if err := s.cache.DeletePattern(ctx, userPattern); err != nil {
			logger.GetDefault().Debug("user bookings cache invalidation failed", "error", err)
		}
	}
}
