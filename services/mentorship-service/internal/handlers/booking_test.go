package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mentorloop/backend/libs/outboxx"
	"github.com/mentorloop/backend/services/mentorship-service/internal/model"
	"github.com/mentorloop/backend/services/mentorship-service/internal/outbox"
	"github.com/mentorloop/backend/services/mentorship-service/internal/policy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time {
	return time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
}

// These tests exercise the validation and authorization paths that fail
// before any database access; the handler is wired with nil repositories.

func newTestBookingHandler() *BookingHandler {
	return NewBookingHandler(nil, nil, nil, discardLogger(), fixedClock)
}

func TestRequestRejectsNonStudent(t *testing.T) {
	h := newTestBookingHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", "mentor-1")
	req.Header.Set("X-Role", "mentor")
	rec := httptest.NewRecorder()

	h.Request(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequestRejectsMissingIdentity(t *testing.T) {
	h := newTestBookingHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.Request(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequestRejectsSelfBooking(t *testing.T) {
	h := newTestBookingHandler()
	body := `{"mentor_id":"user-1","scheduled_at":"2026-09-07T14:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.Request(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "yourself") {
		t.Errorf("body = %q, want self-booking message", rec.Body.String())
	}
}

func TestRequestRejectsPastSlot(t *testing.T) {
	h := newTestBookingHandler()
	body := `{"mentor_id":"mentor-1","scheduled_at":"2026-08-31T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("X-User-Id", "student-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.Request(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRequestRejectsBadTimestamp(t *testing.T) {
	h := newTestBookingHandler()
	body := `{"mentor_id":"mentor-1","scheduled_at":"next tuesday"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("X-User-Id", "student-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.Request(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMutationRequiresBookingID(t *testing.T) {
	h := newTestBookingHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/confirm", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", "mentor-1")
	req.Header.Set("X-Role", "mentor")
	rec := httptest.NewRecorder()

	h.Confirm(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMutationRejectsGet(t *testing.T) {
	h := newTestBookingHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/cancel", nil)
	rec := httptest.NewRecorder()

	h.Cancel(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestListRejectsPost(t *testing.T) {
	h := newTestBookingHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings?limit=10", nil)
	req.Header.Set("X-User-Id", "student-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.List(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestCallerFromParsesHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "user-9")
	req.Header.Set("X-Role", "admin")

	caller, err := callerFrom(req)
	if err != nil {
		t.Fatalf("callerFrom: %v", err)
	}
	if caller.ID != "user-9" {
		t.Errorf("ID = %q, want user-9", caller.ID)
	}
	if caller.Role.String() != "admin" {
		t.Errorf("Role = %q, want admin", caller.Role)
	}
}

func TestCallerFromRejectsUnknownRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "user-9")
	req.Header.Set("X-Role", "superuser")

	if _, err := callerFrom(req); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// stubTx stands in for a pgx transaction. Only Begin, Commit and Rollback
// are ever reached from the handler; anything else panics loudly.
type stubTx struct{ pgx.Tx }

func (stubTx) Begin(context.Context) (pgx.Tx, error) { return stubTx{}, nil }
func (stubTx) Commit(context.Context) error          { return nil }
func (stubTx) Rollback(context.Context) error        { return nil }

// fakeBookingStore is an in-memory bookingStore for transition tests.
type fakeBookingStore struct {
	booking       model.Booking
	taken         bool
	created       []model.Booking
	confirmCalls  int
	completeCalls int
}

func (f *fakeBookingStore) Begin(context.Context) (pgx.Tx, error) { return stubTx{}, nil }

func (f *fakeBookingStore) Create(_ context.Context, _ pgx.Tx, b *model.Booking) (string, error) {
	f.created = append(f.created, *b)
	return "bk-new", nil
}

func (f *fakeBookingStore) GetForUpdate(context.Context, pgx.Tx, string) (model.Booking, error) {
	return f.booking, nil
}

func (f *fakeBookingStore) ExistsConfirmedAt(context.Context, pgx.Tx, string, time.Time) (bool, error) {
	return f.taken, nil
}

func (f *fakeBookingStore) SetConfirmed(context.Context, pgx.Tx, string) error {
	f.confirmCalls++
	return nil
}

func (f *fakeBookingStore) SetDeclined(context.Context, pgx.Tx, string, string) error { return nil }

func (f *fakeBookingStore) SetCompleted(context.Context, pgx.Tx, string) (time.Time, error) {
	f.completeCalls++
	return fixedClock(), nil
}

func (f *fakeBookingStore) SetCancelled(context.Context, pgx.Tx, string, string) (time.Time, error) {
	return fixedClock(), nil
}

func (f *fakeBookingStore) SetRating(context.Context, pgx.Tx, string, int) error { return nil }

func (f *fakeBookingStore) ListForUser(context.Context, string, int) ([]model.Booking, error) {
	if f.booking.ID == "" {
		return nil, nil
	}
	return []model.Booking{f.booking}, nil
}

type fakeEventStore struct {
	events []outboxx.Event
	err    error
}

func (f *fakeEventStore) Insert(_ context.Context, _ pgx.Tx, evt outboxx.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func pastSessionBooking(status model.Status) model.Booking {
	return model.Booking{
		ID:          "bk-1",
		StudentID:   "student-1",
		MentorID:    "mentor-1",
		Status:      status,
		ScheduledAt: time.Date(2026, time.August, 30, 14, 0, 0, 0, time.UTC),
		RequestedAt: time.Date(2026, time.August, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestCompleteAlreadyCompletedIsNoOp(t *testing.T) {
	store := &fakeBookingStore{booking: pastSessionBooking(model.StatusCompleted)}
	events := &fakeEventStore{}
	h := NewBookingHandler(store, events, nil, discardLogger(), fixedClock)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/complete", strings.NewReader(`{"booking_id":"bk-1"}`))
	req.Header.Set("X-User-Id", "student-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.Complete(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if store.completeCalls != 0 {
		t.Fatalf("SetCompleted called %d times, want 0", store.completeCalls)
	}
	if len(events.events) != 0 {
		t.Fatalf("enqueued %d events, want 0", len(events.events))
	}
}

func TestConfirmRejectsTakenSlot(t *testing.T) {
	store := &fakeBookingStore{
		booking: pastSessionBooking(model.StatusRequested),
		taken:   true,
	}
	h := NewBookingHandler(store, &fakeEventStore{}, nil, discardLogger(), fixedClock)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/confirm", strings.NewReader(`{"booking_id":"bk-1"}`))
	req.Header.Set("X-User-Id", "mentor-1")
	req.Header.Set("X-Role", "mentor")
	rec := httptest.NewRecorder()

	h.Confirm(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if store.confirmCalls != 0 {
		t.Fatalf("SetConfirmed called %d times, want 0", store.confirmCalls)
	}
}

func TestConfirmEnqueuesLifecycleEvent(t *testing.T) {
	store := &fakeBookingStore{booking: pastSessionBooking(model.StatusRequested)}
	events := &fakeEventStore{}
	h := NewBookingHandler(store, events, nil, discardLogger(), fixedClock)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/confirm", strings.NewReader(`{"booking_id":"bk-1"}`))
	req.Header.Set("X-User-Id", "mentor-1")
	req.Header.Set("X-Role", "mentor")
	rec := httptest.NewRecorder()

	h.Confirm(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if store.confirmCalls != 1 {
		t.Fatalf("SetConfirmed called %d times, want 1", store.confirmCalls)
	}
	if len(events.events) != 1 {
		t.Fatalf("enqueued %d events, want 1", len(events.events))
	}
	if events.events[0].EventType != outbox.EventBookingConfirmed {
		t.Errorf("event type = %q, want %q", events.events[0].EventType, outbox.EventBookingConfirmed)
	}
	if events.events[0].AggregateID != "bk-1" {
		t.Errorf("aggregate id = %q, want bk-1", events.events[0].AggregateID)
	}
}

// A broken outbox must not take the booking down with it; the event
// insert is best-effort under its own savepoint.
func TestRequestSucceedsWhenEventInsertFails(t *testing.T) {
	store := &fakeBookingStore{}
	events := &fakeEventStore{err: errors.New("outbox unavailable")}
	provider := policy.NewStaticProvider(policy.SessionPolicy{DurationMinutes: 60})
	h := NewBookingHandler(store, events, provider, discardLogger(), fixedClock)

	body := `{"mentor_id":"mentor-1","scheduled_at":"2026-09-07T14:00:00Z","career_topic":"interview prep"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("X-User-Id", "student-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.Request(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d bookings, want 1", len(store.created))
	}
	if store.created[0].DurationMinutes != 60 {
		t.Errorf("duration = %d, want 60", store.created[0].DurationMinutes)
	}
}

func TestHandleDispatchesGetToList(t *testing.T) {
	h := NewBookingHandler(&fakeBookingStore{}, &fakeEventStore{}, nil, discardLogger(), fixedClock)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("X-User-Id", "student-1")
	req.Header.Set("X-Role", "student")
	rec := httptest.NewRecorder()

	h.Handle(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleDispatchesPostToRequest(t *testing.T) {
	h := newTestBookingHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	// No identity headers: Request rejects with 403, proving the POST was
	// dispatched rather than answered with 405.
	h.Handle(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
