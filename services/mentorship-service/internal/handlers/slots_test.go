package handlers

import (
	"testing"
	"time"

	"github.com/mentorloop/backend/services/mentorship-service/internal/availability"
)

// An east-of-UTC rule can produce an occurrence earlier in UTC than the
// window's first UTC midnight. The fetch window for confirmed bookings has
// to reach back far enough that such a booking still feeds the collision
// filter, otherwise the taken occurrence is re-offered as free.
func TestConfirmedFetchWindowCoversEastOfUTCOccurrences(t *testing.T) {
	rule := availability.Rule{
		ID:          "rule-tokyo",
		MentorID:    "mentor-1",
		Weekday:     time.Monday,
		Start:       "05:00",
		End:         "06:00",
		MaxBookings: 1,
		Active:      true,
		Timezone:    "Asia/Tokyo",
	}
	windowStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	slots := availability.Expand([]availability.Rule{rule}, nil, windowStart, windowEnd, now)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	occ := slots[0].StartsAt
	// Monday 05:00 in Tokyo is Sunday 20:00 UTC, before windowStart.
	if !occ.UTC().Before(windowStart) {
		t.Fatalf("occurrence %s is not before windowStart %s", occ.UTC(), windowStart)
	}

	fetchFrom, fetchTo := confirmedFetchWindow(windowStart, windowEnd)
	if occ.Before(fetchFrom) || occ.After(fetchTo) {
		t.Fatalf("occurrence %s outside fetch window [%s, %s]", occ.UTC(), fetchFrom, fetchTo)
	}

	// A confirmed booking inside the fetch window must suppress the slot.
	slots = availability.Expand([]availability.Rule{rule}, []time.Time{occ}, windowStart, windowEnd, now)
	if len(slots) != 0 {
		t.Fatalf("booked occurrence %s was re-offered", occ.UTC())
	}
}

// West-of-UTC rules push occurrences past windowEnd in UTC; the upper
// bound has to cover those too.
func TestConfirmedFetchWindowCoversWestOfUTCOccurrences(t *testing.T) {
	rule := availability.Rule{
		ID:          "rule-idlw",
		MentorID:    "mentor-1",
		Weekday:     time.Saturday,
		Start:       "23:00",
		End:         "23:30",
		MaxBookings: 1,
		Active:      true,
		Timezone:    "Etc/GMT+12",
	}
	windowStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	slots := availability.Expand([]availability.Rule{rule}, nil, windowStart, windowEnd, now)
	if len(slots) == 0 {
		t.Fatal("expected at least one slot")
	}
	last := slots[len(slots)-1].StartsAt
	if !last.UTC().After(windowEnd) {
		t.Fatalf("occurrence %s is not after windowEnd %s", last.UTC(), windowEnd)
	}

	fetchFrom, fetchTo := confirmedFetchWindow(windowStart, windowEnd)
	if last.Before(fetchFrom) || last.After(fetchTo) {
		t.Fatalf("occurrence %s outside fetch window [%s, %s]", last.UTC(), fetchFrom, fetchTo)
	}
}
