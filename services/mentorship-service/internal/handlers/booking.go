package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mentorloop/backend/libs/outboxx"
	"github.com/mentorloop/backend/services/mentorship-service/internal/model"
	"github.com/mentorloop/backend/services/mentorship-service/internal/outbox"
	"github.com/mentorloop/backend/services/mentorship-service/internal/policy"
	"github.com/mentorloop/backend/services/mentorship-service/internal/storage"
)

// bookingStore is the slice of the booking repository the handler needs.
// *storage.BookingRepository satisfies it in production.
type bookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error)
	ExistsConfirmedAt(ctx context.Context, tx pgx.Tx, mentorID string, scheduledAt time.Time) (bool, error)
	SetConfirmed(ctx context.Context, tx pgx.Tx, bookingID string) error
	SetDeclined(ctx context.Context, tx pgx.Tx, bookingID, reason string) error
	SetCompleted(ctx context.Context, tx pgx.Tx, bookingID string) (time.Time, error)
	SetCancelled(ctx context.Context, tx pgx.Tx, bookingID, cancelledBy string) (time.Time, error)
	SetRating(ctx context.Context, tx pgx.Tx, bookingID string, rating int) error
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Booking, error)
}

// eventStore is the outbox insert the handler needs; *outboxx.Repository
// satisfies it.
type eventStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outboxx.Event) error
}

type BookingHandler struct {
	repo       bookingStore
	outboxRepo eventStore
	policy     policy.Provider
	logger     *slog.Logger
	now        func() time.Time
}

func NewBookingHandler(repo bookingStore, outboxRepo eventStore, policyProvider policy.Provider, logger *slog.Logger, now func() time.Time) *BookingHandler {
	if now == nil {
		now = time.Now
	}
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		policy:     policyProvider,
		logger:     logger,
		now:        now,
	}
}

type requestBookingRequest struct {
	MentorID    string `json:"mentor_id"`
	ScheduledAt string `json:"scheduled_at"`
	CareerTopic string `json:"career_topic"`
}

type requestBookingResponse struct {
	BookingID string `json:"booking_id"`
}

type bookingMutationRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
	Rating    int    `json:"rating,omitempty"`
}

type bookingMutationResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type bookingItem struct {
	BookingID       string `json:"booking_id"`
	StudentID       string `json:"student_id"`
	MentorID        string `json:"mentor_id"`
	Status          string `json:"status"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
	CareerTopic     string `json:"career_topic,omitempty"`
	DeclineReason   string `json:"decline_reason,omitempty"`
	Rating          int    `json:"rating,omitempty"`
	RequestedAt     string `json:"requested_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
}

// Handle serves the bookings collection path: GET lists the caller's
// bookings, POST requests a new one.
func (h *BookingHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.List(w, r)
		return
	}
	h.Request(w, r)
}

// Request creates a booking in requested state. The slot list the student
// picked from is a read snapshot that may be stale, so availability is
// re-validated here under the transaction rather than trusted.
func (h *BookingHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if caller.Role != model.RoleStudent {
		respondError(w, fmt.Errorf("%w: only students request bookings", model.ErrForbidden))
		return
	}

	var req requestBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MentorID = strings.TrimSpace(req.MentorID)
	if req.MentorID == "" {
		http.Error(w, "mentor_id required", http.StatusBadRequest)
		return
	}
	if req.MentorID == caller.ID {
		respondError(w, fmt.Errorf("%w: cannot book a session with yourself", model.ErrValidation))
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		http.Error(w, "invalid scheduled_at (want RFC3339)", http.StatusBadRequest)
		return
	}
	if scheduledAt.Before(h.now()) {
		respondError(w, fmt.Errorf("%w: slot is in the past", model.ErrValidation))
		return
	}

	sessionPolicy, err := h.policy.SessionPolicy(r.Context(), req.MentorID)
	if err != nil {
		h.logger.Warn("session policy lookup failed, using defaults", "err", err)
		sessionPolicy = policy.SessionPolicy{DurationMinutes: 60}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	taken, err := h.repo.ExistsConfirmedAt(ctx, tx, req.MentorID, scheduledAt)
	if err != nil {
		http.Error(w, "failed to check slot", http.StatusInternalServerError)
		return
	}
	if taken {
		respondError(w, fmt.Errorf("%w: slot already confirmed for another booking", model.ErrConflict))
		return
	}

	booking := &model.Booking{
		StudentID:       caller.ID,
		StudentEmail:    caller.Email,
		MentorID:        req.MentorID,
		Status:          model.StatusRequested,
		ScheduledAt:     scheduledAt,
		DurationMinutes: sessionPolicy.DurationMinutes,
		CareerTopic:     strings.TrimSpace(req.CareerTopic),
	}
	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}
	booking.ID = id

	h.enqueueEvent(ctx, tx, outbox.EventBookingRequested, booking, map[string]any{
		"career_topic": booking.CareerTopic,
	})

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, requestBookingResponse{BookingID: id})
}

// Confirm moves requested -> confirmed. Two students can both reach
// requested for the same occurrence; the re-check here plus the partial
// unique index guarantee at most one of them ever reaches confirmed.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, tx pgx.Tx, caller Caller, b model.Booking, req bookingMutationRequest) error {
		if caller.Role != model.RoleMentor || b.MentorID != caller.ID {
			return fmt.Errorf("%w: only the booked mentor may confirm", model.ErrForbidden)
		}
		if !model.CanTransition(b.Status, model.StatusConfirmed) {
			return fmt.Errorf("%w: cannot confirm a %s booking", model.ErrInvalidState, b.Status)
		}

		taken, err := h.repo.ExistsConfirmedAt(ctx, tx, b.MentorID, b.ScheduledAt)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: another booking already holds this slot", model.ErrConflict)
		}

		if err := h.repo.SetConfirmed(ctx, tx, b.ID); err != nil {
			if storage.IsConflict(err) {
				return fmt.Errorf("%w: another booking already holds this slot", model.ErrConflict)
			}
			return err
		}

		b.Status = model.StatusConfirmed
		h.enqueueEvent(ctx, tx, outbox.EventBookingConfirmed, &b, map[string]any{
			"career_topic": b.CareerTopic,
		})
		return nil
	})
}

// Decline moves requested -> declined with an optional reason for the student.
func (h *BookingHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, tx pgx.Tx, caller Caller, b model.Booking, req bookingMutationRequest) error {
		if caller.Role != model.RoleMentor || b.MentorID != caller.ID {
			return fmt.Errorf("%w: only the booked mentor may decline", model.ErrForbidden)
		}
		if !model.CanTransition(b.Status, model.StatusDeclined) {
			return fmt.Errorf("%w: cannot decline a %s booking", model.ErrInvalidState, b.Status)
		}

		reason := strings.TrimSpace(req.Reason)
		if err := h.repo.SetDeclined(ctx, tx, b.ID, reason); err != nil {
			return err
		}

		b.Status = model.StatusDeclined
		h.enqueueEvent(ctx, tx, outbox.EventBookingDeclined, &b, map[string]any{
			"reason": reason,
		})
		return nil
	})
}

// Complete marks a held session as done once its time has passed.
// Completing twice is a no-op, not an error.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, tx pgx.Tx, caller Caller, b model.Booking, req bookingMutationRequest) error {
		student, mentor := b.Party(caller.ID)
		if !student && !mentor && caller.Role != model.RoleAdmin {
			return fmt.Errorf("%w: not a party to this booking", model.ErrForbidden)
		}
		if b.Status == model.StatusCompleted {
			return nil // idempotent
		}
		if !model.CanTransition(b.Status, model.StatusCompleted) {
			return fmt.Errorf("%w: cannot complete a %s booking", model.ErrInvalidState, b.Status)
		}
		if b.ScheduledAt.After(h.now()) {
			return fmt.Errorf("%w: session has not happened yet", model.ErrInvalidState)
		}

		if _, err := h.repo.SetCompleted(ctx, tx, b.ID); err != nil {
			return err
		}

		b.Status = model.StatusCompleted
		h.enqueueEvent(ctx, tx, outbox.EventBookingCompleted, &b, nil)
		return nil
	})
}

// Cancel lets either party release a confirmed slot before the session.
// The freed occurrence shows up again on the next slot query because the
// collision filter only counts confirmed bookings.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, tx pgx.Tx, caller Caller, b model.Booking, req bookingMutationRequest) error {
		student, mentor := b.Party(caller.ID)
		if !student && !mentor {
			return fmt.Errorf("%w: not a party to this booking", model.ErrForbidden)
		}
		if !model.CanTransition(b.Status, model.StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s booking", model.ErrInvalidState, b.Status)
		}
		if !h.now().Before(b.ScheduledAt) {
			return fmt.Errorf("%w: session time has already passed", model.ErrInvalidState)
		}

		if _, err := h.repo.SetCancelled(ctx, tx, b.ID, caller.ID); err != nil {
			return err
		}

		b.Status = model.StatusCancelled
		h.enqueueEvent(ctx, tx, outbox.EventBookingCancelled, &b, map[string]any{
			"cancelled_by": caller.ID,
		})
		return nil
	})
}

// Rate records the student's 1..5 rating on a completed session.
func (h *BookingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, tx pgx.Tx, caller Caller, b model.Booking, req bookingMutationRequest) error {
		if b.StudentID != caller.ID {
			return fmt.Errorf("%w: only the student may rate the session", model.ErrForbidden)
		}
		if b.Status != model.StatusCompleted {
			return fmt.Errorf("%w: only completed sessions can be rated", model.ErrInvalidState)
		}
		if req.Rating < 1 || req.Rating > 5 {
			return fmt.Errorf("%w: rating must be between 1 and 5", model.ErrValidation)
		}
		return h.repo.SetRating(ctx, tx, b.ID, req.Rating)
	})
}

// List returns the caller's bookings, on either side of the table.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.repo.ListForUser(r.Context(), caller.ID, limit)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := bookingItem{
			BookingID:       b.ID,
			StudentID:       b.StudentID,
			MentorID:        b.MentorID,
			Status:          string(b.Status),
			ScheduledAt:     b.ScheduledAt.UTC().Format(time.RFC3339),
			DurationMinutes: b.DurationMinutes,
			CareerTopic:     b.CareerTopic,
			DeclineReason:   b.DeclineReason,
			Rating:          b.Rating,
			RequestedAt:     b.RequestedAt.UTC().Format(time.RFC3339),
		}
		if b.CompletedAt != nil {
			item.CompletedAt = b.CompletedAt.UTC().Format(time.RFC3339)
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, items)
}

type mutationFunc func(ctx context.Context, tx pgx.Tx, caller Caller, b model.Booking, req bookingMutationRequest) error

// mutate is the shared read-modify-write skeleton: load the booking under
// FOR UPDATE, apply the transition, commit, report the final status.
func (h *BookingHandler) mutate(w http.ResponseWriter, r *http.Request, fn mutationFunc) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req bookingMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			respondError(w, fmt.Errorf("%w: booking %s", model.ErrNotFound, req.BookingID))
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	if err := fn(ctx, tx, caller, booking, req); err != nil {
		respondError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	// Re-derive the final status for the response without another read.
	final, err := h.finalStatus(booking, r.URL.Path)
	if err != nil {
		final = booking.Status
	}
	respondJSON(w, http.StatusOK, bookingMutationResponse{BookingID: booking.ID, Status: string(final)})
}

func (h *BookingHandler) finalStatus(b model.Booking, path string) (model.Status, error) {
	switch {
	case strings.HasSuffix(path, "/confirm"):
		return model.StatusConfirmed, nil
	case strings.HasSuffix(path, "/decline"):
		return model.StatusDeclined, nil
	case strings.HasSuffix(path, "/complete"):
		return model.StatusCompleted, nil
	case strings.HasSuffix(path, "/cancel"):
		return model.StatusCancelled, nil
	case strings.HasSuffix(path, "/rate"):
		return b.Status, nil
	default:
		return b.Status, fmt.Errorf("unknown mutation path %s", path)
	}
}

// enqueueEvent writes the lifecycle event to the outbox. Best-effort:
// notification delivery is outside the booking's transactional boundary.
// The insert runs under a savepoint because a failed statement would
// otherwise abort the surrounding tx and take the transition down with it.
func (h *BookingHandler) enqueueEvent(ctx context.Context, tx pgx.Tx, eventType string, b *model.Booking, extra map[string]any) {
	payload := map[string]any{
		"booking_id":       b.ID,
		"student_id":       b.StudentID,
		"student_email":    b.StudentEmail,
		"mentor_id":        b.MentorID,
		"status":           string(b.Status),
		"scheduled_at":     b.ScheduledAt.UTC().Format(time.RFC3339),
		"duration_minutes": b.DurationMinutes,
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("booking event payload marshal failed", "err", err, "event_type", eventType)
		return
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		h.logger.Error("booking event savepoint failed", "err", err, "event_type", eventType, "booking_id", b.ID)
		return
	}
	if err := h.outboxRepo.Insert(ctx, sp, outboxx.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       raw,
	}); err != nil {
		_ = sp.Rollback(ctx)
		h.logger.Error("booking event enqueue failed", "err", err, "event_type", eventType, "booking_id", b.ID)
		return
	}
	if err := sp.Commit(ctx); err != nil {
		h.logger.Error("booking event savepoint commit failed", "err", err, "event_type", eventType, "booking_id", b.ID)
	}
}
