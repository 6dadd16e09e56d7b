package message

import (
	"strings"
	"testing"
)

func baseEvent() BookingEvent {
	return BookingEvent{
		BookingID:    "b-1",
		StudentID:    "student-1",
		StudentEmail: "student@example.com",
		MentorID:     "mentor-1",
		ScheduledAt:  "2026-09-07T14:00:00Z",
	}
}

func TestRequestedNotifiesMentorOnly(t *testing.T) {
	notes := ForEvent("booking.requested.v1", baseEvent())
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	if notes[0].UserID != "mentor-1" {
		t.Errorf("UserID = %q, want mentor-1", notes[0].UserID)
	}
	if notes[0].Email {
		t.Error("requested note should not email")
	}
}

func TestRequestedIncludesTopic(t *testing.T) {
	evt := baseEvent()
	evt.CareerTopic = "switching to data engineering"
	notes := ForEvent("booking.requested.v1", evt)
	if len(notes) != 1 || !strings.Contains(notes[0].Body, "data engineering") {
		t.Fatalf("body = %q, want topic mentioned", notes[0].Body)
	}
}

func TestConfirmedEmailsStudent(t *testing.T) {
	notes := ForEvent("booking.confirmed.v1", baseEvent())
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	if notes[0].UserID != "student-1" || !notes[0].Email {
		t.Errorf("note = %+v, want emailed student note", notes[0])
	}
	if notes[0].Kind != KindConfirmed {
		t.Errorf("Kind = %q, want %q", notes[0].Kind, KindConfirmed)
	}
}

func TestDeclinedCarriesReason(t *testing.T) {
	evt := baseEvent()
	evt.Reason = "fully booked that week"
	notes := ForEvent("booking.declined.v1", evt)
	if len(notes) != 1 || !strings.Contains(notes[0].Body, "fully booked") {
		t.Fatalf("body = %q, want reason included", notes[0].Body)
	}
}

func TestCancelledSkipsTheCanceller(t *testing.T) {
	evt := baseEvent()
	evt.CancelledBy = "student-1"
	notes := ForEvent("booking.cancelled.v1", evt)
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	if notes[0].UserID != "mentor-1" {
		t.Errorf("UserID = %q, want mentor-1", notes[0].UserID)
	}

	evt.CancelledBy = "mentor-1"
	notes = ForEvent("booking.cancelled.v1", evt)
	if len(notes) != 1 || notes[0].UserID != "student-1" {
		t.Fatalf("notes = %+v, want single student note", notes)
	}
}

func TestCompletedNotifiesBothParties(t *testing.T) {
	notes := ForEvent("booking.completed.v1", baseEvent())
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	seen := map[string]bool{}
	for _, n := range notes {
		seen[n.UserID] = true
	}
	if !seen["student-1"] || !seen["mentor-1"] {
		t.Errorf("recipients = %v, want both parties", seen)
	}
}

func TestReminderReachesBothPartiesEmailsStudent(t *testing.T) {
	notes := ForEvent("session.reminder.due.v1", baseEvent())
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	for _, n := range notes {
		if n.UserID == "student-1" && !n.Email {
			t.Error("student reminder should email")
		}
		if n.UserID == "mentor-1" && n.Email {
			t.Error("mentor reminder should not email")
		}
	}
}

func TestUnknownEventProducesNothing(t *testing.T) {
	if notes := ForEvent("billing.invoice.paid.v1", baseEvent()); len(notes) != 0 {
		t.Fatalf("got %d notes, want 0", len(notes))
	}
}

func TestWhenFormatsTimestamp(t *testing.T) {
	notes := ForEvent("booking.confirmed.v1", baseEvent())
	if !strings.Contains(notes[0].Body, "Mon, 07 Sep 2026 14:00 UTC") {
		t.Errorf("body = %q, want formatted timestamp", notes[0].Body)
	}
}
