package availability

import (
	"fmt"
	"time"

	"github.com/mentorloop/backend/services/mentorship-service/internal/model"
)

// Rule is one recurring weekly window a mentor is willing to take
// bookings in. Start and End are mentor-local wall-clock times ("HH:MM");
// Timezone anchors them to a concrete IANA location so occurrences are
// unambiguous across DST changes.
type Rule struct {
	ID          string
	MentorID    string
	Weekday     time.Weekday
	Start       string
	End         string
	MaxBookings int
	Active      bool
	Timezone    string
}

// Validate checks the rule invariants: a parseable start/end pair with
// start < end, a weekday in range, max bookings at least 1, and a
// loadable timezone (empty means UTC).
func (r Rule) Validate() error {
	start, err := ParseClock(r.Start)
	if err != nil {
		return fmt.Errorf("%w: start time %q: %v", model.ErrValidation, r.Start, err)
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return fmt.Errorf("%w: end time %q: %v", model.ErrValidation, r.End, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start time %s must be before end time %s", model.ErrValidation, r.Start, r.End)
	}
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", model.ErrValidation, r.Weekday)
	}
	if r.MaxBookings < 1 {
		return fmt.Errorf("%w: max bookings must be at least 1", model.ErrValidation)
	}
	if _, err := r.Location(); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", model.ErrValidation, r.Timezone)
	}
	return nil
}

// Location resolves the rule's timezone; empty means UTC.
func (r Rule) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, err
	}
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}
