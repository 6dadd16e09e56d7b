package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mentorloop/backend/services/mentorship-service/internal/availability"
	"github.com/mentorloop/backend/services/mentorship-service/internal/storage"
)

// maxSlotWindowDays bounds how far ahead a single slot query may look;
// expansion cost is linear in the window.
const maxSlotWindowDays = 56

type SlotsHandler struct {
	rules    *storage.AvailabilityRepository
	bookings *storage.BookingRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewSlotsHandler(rules *storage.AvailabilityRepository, bookings *storage.BookingRepository, logger *slog.Logger, now func() time.Time) *SlotsHandler {
	if now == nil {
		now = time.Now
	}
	return &SlotsHandler{rules: rules, bookings: bookings, logger: logger, now: now}
}

type slotItem struct {
	RuleID   string `json:"rule_id"`
	MentorID string `json:"mentor_id"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
	Weekday  int    `json:"weekday"`
}

type slotsResponse struct {
	MentorID string     `json:"mentor_id"`
	Slots    []slotItem `json:"slots"`
}

// List resolves a mentor's bookable occurrences for a date window. Slots
// are recomputed from the weekly template and the confirmed bookings on
// every call; nothing is materialized.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	mentorID := strings.TrimSpace(q.Get("mentor_id"))
	if mentorID == "" {
		http.Error(w, "mentor_id required", http.StatusBadRequest)
		return
	}
	windowStart, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("start_date")))
	if err != nil {
		http.Error(w, "invalid start_date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	windowEnd, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("end_date")))
	if err != nil {
		http.Error(w, "invalid end_date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	resp := slotsResponse{MentorID: mentorID, Slots: []slotItem{}}

	// An inverted window resolves to no slots, not an error.
	if windowEnd.Before(windowStart) {
		respondJSON(w, http.StatusOK, resp)
		return
	}
	if windowEnd.Sub(windowStart) > maxSlotWindowDays*24*time.Hour {
		http.Error(w, "date window too large", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rules, err := h.rules.ListActive(ctx, mentorID)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	fetchFrom, fetchTo := confirmedFetchWindow(windowStart, windowEnd)
	confirmed, err := h.bookings.ListConfirmedStarts(ctx, mentorID, fetchFrom, fetchTo)
	if err != nil {
		http.Error(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}

	for _, slot := range availability.Expand(rules, confirmed, windowStart, windowEnd, h.now()) {
		resp.Slots = append(resp.Slots, slotItem{
			RuleID:   slot.RuleID,
			MentorID: slot.MentorID,
			StartsAt: slot.StartsAt.Format(time.RFC3339),
			EndsAt:   slot.EndsAt.Format(time.RFC3339),
			Weekday:  int(slot.Weekday),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// confirmedFetchWindow pads the UTC query window so that confirmed bookings
// whose local occurrence falls inside [windowStart, windowEnd] are always
// fetched. A UTC+14 rule can produce an occurrence up to 14h before the
// window's first UTC midnight, and a UTC-12 rule near local midnight on the
// last window day can land well past windowEnd in UTC. Over-fetching is
// harmless since Expand only drops exact start-time matches.
func confirmedFetchWindow(windowStart, windowEnd time.Time) (time.Time, time.Time) {
	return windowStart.AddDate(0, 0, -1), windowEnd.AddDate(0, 0, 2)
}
