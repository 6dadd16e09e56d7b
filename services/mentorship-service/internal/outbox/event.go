// Package outbox names the booking lifecycle events this service emits.
// notification-service fans them out to in-app notifications and email;
// scheduler-service keys reminder jobs off confirmed/cancelled.
package outbox

const (
	EventBookingRequested = "booking.requested.v1"
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingDeclined  = "booking.declined.v1"
	EventBookingCompleted = "booking.completed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
)
