package message

import (
	"fmt"
	"time"
)

// BookingEvent is the flattened payload of every booking lifecycle and
// reminder event the service consumes. Fields not present on a given
// event type are empty.
type BookingEvent struct {
	BookingID    string `json:"booking_id"`
	StudentID    string `json:"student_id"`
	StudentEmail string `json:"student_email"`
	MentorID     string `json:"mentor_id"`
	ScheduledAt  string `json:"scheduled_at"`
	CareerTopic  string `json:"career_topic"`
	Reason       string `json:"reason"`
	CancelledBy  string `json:"cancelled_by"`
	RemindAt     string `json:"remind_at"`
}

// Note is one in-app notification to create; Email marks the ones that
// additionally go out over SMTP (student side only, the platform holds no
// mentor addresses).
type Note struct {
	UserID string
	Kind   string
	Title  string
	Body   string
	Email  bool
}

const (
	KindRequested = "booking_requested"
	KindConfirmed = "booking_confirmed"
	KindDeclined  = "booking_declined"
	KindCompleted = "booking_completed"
	KindCancelled = "booking_cancelled"
	KindReminder  = "session_reminder"
)

func when(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}

// ForEvent maps an event type to the notes each party should receive.
// Unknown event types produce nothing.
func ForEvent(eventType string, evt BookingEvent) []Note {
	at := when(evt.ScheduledAt)
	switch eventType {
	case "booking.requested.v1":
		body := fmt.Sprintf("A student requested a session on %s.", at)
		if evt.CareerTopic != "" {
			body = fmt.Sprintf("A student requested a session on %s about %q.", at, evt.CareerTopic)
		}
		return []Note{
			{UserID: evt.MentorID, Kind: KindRequested, Title: "New session request", Body: body},
		}
	case "booking.confirmed.v1":
		return []Note{
			{
				UserID: evt.StudentID,
				Kind:   KindConfirmed,
				Title:  "Session confirmed",
				Body:   fmt.Sprintf("Your mentor confirmed the session on %s.", at),
				Email:  true,
			},
		}
	case "booking.declined.v1":
		body := fmt.Sprintf("Your session request for %s was declined.", at)
		if evt.Reason != "" {
			body = fmt.Sprintf("Your session request for %s was declined: %s", at, evt.Reason)
		}
		return []Note{
			{UserID: evt.StudentID, Kind: KindDeclined, Title: "Session declined", Body: body, Email: true},
		}
	case "booking.completed.v1":
		return []Note{
			{
				UserID: evt.StudentID,
				Kind:   KindCompleted,
				Title:  "Session completed",
				Body:   "Your session is complete. Leave a rating for your mentor.",
			},
			{
				UserID: evt.MentorID,
				Kind:   KindCompleted,
				Title:  "Session completed",
				Body:   fmt.Sprintf("The session on %s is marked complete.", at),
			},
		}
	case "booking.cancelled.v1":
		// Only the party that did not cancel is told about it.
		body := fmt.Sprintf("The session on %s was cancelled.", at)
		var notes []Note
		if evt.CancelledBy != evt.StudentID {
			notes = append(notes, Note{UserID: evt.StudentID, Kind: KindCancelled, Title: "Session cancelled", Body: body, Email: true})
		}
		if evt.CancelledBy != evt.MentorID {
			notes = append(notes, Note{UserID: evt.MentorID, Kind: KindCancelled, Title: "Session cancelled", Body: body})
		}
		return notes
	case "session.reminder.due.v1":
		return []Note{
			{
				UserID: evt.StudentID,
				Kind:   KindReminder,
				Title:  "Upcoming session",
				Body:   fmt.Sprintf("Reminder: you have a session on %s.", at),
				Email:  true,
			},
			{
				UserID: evt.MentorID,
				Kind:   KindReminder,
				Title:  "Upcoming session",
				Body:   fmt.Sprintf("Reminder: you have a session on %s.", at),
			},
		}
	default:
		return nil
	}
}
