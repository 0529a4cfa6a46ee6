package timeslot

import (
	"fmt"
	"strconv"
	"strings"
)

// Slot is a time range on a single calendar date. Start and End are
// "HH:MM" wall-clock strings; Price is the cost of booking this slot on
// one court.
type Slot struct {
	Start string  `json:"start" binding:"required"`
	End   string  `json:"end" binding:"required"`
	Price float64 `json:"price"`
}

// ToMinutes converts an "HH:MM" string to minutes since midnight.
func ToMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", hhmm)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}

	if hours < 0 || hours > 24 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", hhmm)
	}
	if hours == 24 && minutes != 0 {
		return 0, fmt.Errorf("invalid time %q: out of range", hhmm)
	}

	return hours*60 + minutes, nil
}

// Overlaps reports whether two slots intersect. Touching endpoints do not
// overlap: a slot ending at 10:00 and one starting at 10:00 are compatible.
// Slots with unparseable times never overlap anything.
func Overlaps(a, b Slot) bool {
	aStart, err := ToMinutes(a.Start)
	if err != nil {
		return false
	}
	aEnd, err := ToMinutes(a.End)
	if err != nil {
		return false
	}
	bStart, err := ToMinutes(b.Start)
	if err != nil {
		return false
	}
	bEnd, err := ToMinutes(b.End)
	if err != nil {
		return false
	}

	return aStart < bEnd && aEnd > bStart
}

// AnyOverlap reports whether any requested slot intersects any existing slot.
func AnyOverlap(requested, existing []Slot) bool {
	for _, r := range requested {
		for _, e := range existing {
			if Overlaps(r, e) {
				return true
			}
		}
	}
	return false
}

// Validate checks that every slot parses and that each slot's start precedes
// its end. It does not require the slots to be sorted or disjoint among
// themselves; OverlapWithin covers the latter.
func Validate(slots []Slot) error {
	for i, s := range slots {
		start, err := ToMinutes(s.Start)
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		end, err := ToMinutes(s.End)
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		if start >= end {
			return fmt.Errorf("slot %d: start %s must be before end %s", i, s.Start, s.End)
		}
		if s.Price < 0 {
			return fmt.Errorf("slot %d: price must not be negative", i)
		}
	}
	return nil
}

// OverlapWithin reports whether any two slots in the same list intersect.
// A booking request must not conflict with itself.
func OverlapWithin(slots []Slot) bool {
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			if Overlaps(slots[i], slots[j]) {
				return true
			}
		}
	}
	return false
}

// TotalPrice sums slot prices across the given court count.
func TotalPrice(slots []Slot, courtCount int) float64 {
	var sum float64
	for _, s := range slots {
		sum += s.Price
	}
	return sum * float64(courtCount)
}

// Signature returns a canonical "start-end" list for a slot set, used in
// lock keys and conflict payloads.
func Signature(slots []Slot) []string {
	sigs := make([]string, 0, len(slots))
	for _, s := range slots {
		sigs = append(sigs, s.Start+"-"+s.End)
	}
	return sigs
}
