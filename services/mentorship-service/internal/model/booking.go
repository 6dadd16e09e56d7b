package model

import "time"

// Status is the booking lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions is the full set of legal lifecycle edges. Everything absent
// is rejected; declined and completed are terminal, cancelled is terminal.
var transitions = map[Status][]Status{
	StatusRequested: {StatusConfirmed, StatusDeclined},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStates returns the statuses reachable from the given one.
func NextStates(from Status) []Status {
	return transitions[from]
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusDeclined, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Booking is a student's claim on one occurrence slot of a mentor's
// recurring availability.
type Booking struct {
	ID              string
	StudentID       string
	StudentEmail    string
	MentorID        string
	Status          Status
	ScheduledAt     time.Time
	DurationMinutes int
	CareerTopic     string
	DeclineReason   string
	Rating          int // 0 = unrated
	RequestedAt     time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	CancelledBy     string
}

// Party reports which side of the booking the given user is on.
func (b Booking) Party(userID string) (student, mentor bool) {
	return b.StudentID == userID, b.MentorID == userID
}
