package availability

import (
	"sort"
	"time"
)

// Slot is one concrete, bookable occurrence of a weekly rule. Slots are
// derived on every query and never persisted; their lifetime is the
// duration of a single slot lookup.
type Slot struct {
	RuleID   string
	MentorID string
	StartsAt time.Time
	EndsAt   time.Time
	Weekday  time.Weekday
}

// Expand enumerates every calendar occurrence of the given weekly rules in
// the inclusive [windowStart, windowEnd] date window, drops occurrences in
// the past and occurrences already held by a confirmed booking, and returns
// the rest in chronological order.
//
// now is threaded explicitly so the past filter is deterministic under test.
// confirmedAt carries the start timestamps of the mentor's confirmed
// bookings; occupancy is binary per exact timestamp, so one confirmed
// booking takes the whole occurrence regardless of the rule's MaxBookings.
//
// A window with windowEnd before windowStart yields no slots, not an error.
func Expand(rules []Rule, confirmedAt []time.Time, windowStart, windowEnd, now time.Time) []Slot {
	if windowEnd.Before(windowStart) {
		return nil
	}

	taken := make(map[int64]struct{}, len(confirmedAt))
	for _, t := range confirmedAt {
		taken[t.Unix()] = struct{}{}
	}

	var slots []Slot
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		loc, err := rule.Location()
		if err != nil {
			continue
		}
		startMin, err := ParseClock(rule.Start)
		if err != nil {
			continue
		}
		endMin, err := ParseClock(rule.End)
		if err != nil {
			continue
		}

		first := windowStart.In(loc)
		day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
		last := windowEnd.In(loc)
		for ; !day.After(last); day = day.AddDate(0, 0, 1) {
			if day.Weekday() != rule.Weekday {
				continue
			}
			occ := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc)
			if occ.Before(now) {
				continue
			}
			if _, booked := taken[occ.Unix()]; booked {
				continue
			}
			end := time.Date(day.Year(), day.Month(), day.Day(), endMin/60, endMin%60, 0, 0, loc)
			slots = append(slots, Slot{
				RuleID:   rule.ID,
				MentorID: rule.MentorID,
				StartsAt: occ,
				EndsAt:   end,
				Weekday:  rule.Weekday,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartsAt.Before(slots[j].StartsAt)
	})
	return slots
}
