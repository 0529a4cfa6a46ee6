package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// This file centralizes all Redis cache keys and TTL values for the Courtly application
// Pattern: courtly:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Semi-Static Data (Medium TTL: changes occasionally)
const (
	TTL_SEMI_STATIC_MEDIUM = 2 * time.Hour // venue and court details
	TTL_SEMI_STATIC_SHORT  = 1 * time.Hour // venue listings
)

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_MEDIUM = 1 * time.Minute  // booking listings
	TTL_REALTIME_SHORT  = 30 * time.Second // slot availability
)

// AvailabilityCacheTTL bounds how stale an availability answer can be.
const AvailabilityCacheTTL = TTL_REALTIME_SHORT

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "courtly"
)

// ================== VENUES MODULE ==================

const (
	CACHE_KEY_VENUES_LIST  = CACHE_PREFIX + ":venues:list"         // + :page:X:limit:Y:city:Z
	CACHE_KEY_VENUE_DETAIL = CACHE_PREFIX + ":venues:detail:uuid:" // + venue-id
)

// ================== BOOKINGS MODULE ==================

const (
	// AvailabilityKeyPrefix is followed by venue-id:date:courts:slots.
	AvailabilityKeyPrefix = CACHE_PREFIX + ":availability:"

	// SlotLockKeyPrefix is followed by court-id:date:slot-signature.
	SlotLockKeyPrefix = CACHE_PREFIX + ":slotlock:"

	CACHE_KEY_USER_BOOKINGS = CACHE_PREFIX + ":bookings:user:uuid:" // + user-id
)

// ================== KEY BUILDERS ==================

// BuildVenueDetailKey builds a cache key for one venue
func BuildVenueDetailKey(venueID string) string {
	return CACHE_KEY_VENUE_DETAIL + venueID
}

// BuildVenuesListKey builds a cache key for a venue listing page
func BuildVenuesListKey(page, limit int, city, sport string) string {
	return fmt.Sprintf("%s:page:%d:limit:%d:city:%s:sport:%s", CACHE_KEY_VENUES_LIST, page, limit, city, sport)
}

// BuildUserBookingsKey builds a cache key for a user's booking list page
func BuildUserBookingsKey(userID string, page, limit int) string {
	return fmt.Sprintf("%s%s:page:%d:limit:%d", CACHE_KEY_USER_BOOKINGS, userID, page, limit)
}
