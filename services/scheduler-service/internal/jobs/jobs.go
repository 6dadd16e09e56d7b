package jobs

import (
	"fmt"
	"time"
)

// Event types this service emits. Due reminders go to notification-service;
// the DLQ topic collects jobs that exhausted their attempts.
const (
	EventReminderDue = "session.reminder.due.v1"
	EventReminderDLQ = "session.reminder.dlq.v1"
)

// Job is one scheduled reminder for a confirmed session.
type Job struct {
	ID             int64
	IdempotencyKey string
	BookingID      string
	StudentID      string
	StudentEmail   string
	MentorID       string
	ScheduledAt    time.Time
	RemindAt       time.Time
	Traceparent    string
	Tracestate     string
	Attempts       int
	MaxAttempts    int
	NextRunAt      time.Time
}

// IdempotencyKey ties a job to its (booking, offset) pair, so replayed
// confirmation events insert-conflict instead of double-scheduling.
func IdempotencyKey(bookingID string, offset time.Duration) string {
	return fmt.Sprintf("booking:%s:offset:%dm", bookingID, int(offset.Minutes()))
}

// PlanTimes returns one reminder time per offset, dropping any that would
// already be in the past. A confirmation landing inside the 24h window
// still gets its 1h reminder.
func PlanTimes(scheduledAt, now time.Time, offsets []time.Duration) map[time.Duration]time.Time {
	plan := make(map[time.Duration]time.Time, len(offsets))
	for _, offset := range offsets {
		if offset <= 0 {
			continue
		}
		remindAt := scheduledAt.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		plan[offset] = remindAt
	}
	return plan
}
