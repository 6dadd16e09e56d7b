package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mentorloop/backend/services/mentorship-service/internal/availability"
	"github.com/mentorloop/backend/services/mentorship-service/internal/model"
	"github.com/mentorloop/backend/services/mentorship-service/internal/storage"
)

type AvailabilityHandler struct {
	repo   *storage.AvailabilityRepository
	logger *slog.Logger
}

func NewAvailabilityHandler(repo *storage.AvailabilityRepository, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{repo: repo, logger: logger}
}

type ruleItem struct {
	RuleID      string `json:"rule_id,omitempty"`
	Weekday     int    `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MaxBookings int    `json:"max_bookings"`
	Active      bool   `json:"active"`
}

type setAvailabilityRequest struct {
	Timezone string     `json:"timezone"`
	Rules    []ruleItem `json:"rules"`
}

type setAvailabilityResponse struct {
	RuleIDs []string `json:"rule_ids"`
}

type listAvailabilityResponse struct {
	MentorID string     `json:"mentor_id"`
	Timezone string     `json:"timezone,omitempty"`
	Rules    []ruleItem `json:"rules"`
}

// Handle serves the availability collection path: GET lists rules,
// PUT/POST replaces the template.
func (h *AvailabilityHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.Get(w, r)
		return
	}
	h.Set(w, r)
}

// Set replaces the mentor's whole weekly template. Replace-all rather than
// patch: any rule missing from the new set stops generating occurrences on
// the next slot query, while already-confirmed bookings stay valid.
func (h *AvailabilityHandler) Set(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if caller.Role != model.RoleMentor {
		respondError(w, fmt.Errorf("%w: only mentors manage availability", model.ErrForbidden))
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.Timezone = strings.TrimSpace(req.Timezone)
	rules := make([]availability.Rule, 0, len(req.Rules))
	for _, item := range req.Rules {
		rule := availability.Rule{
			MentorID:    caller.ID,
			Weekday:     time.Weekday(item.Weekday),
			Start:       strings.TrimSpace(item.StartTime),
			End:         strings.TrimSpace(item.EndTime),
			MaxBookings: item.MaxBookings,
			Active:      item.Active,
			Timezone:    req.Timezone,
		}
		if err := rule.Validate(); err != nil {
			respondError(w, err)
			return
		}
		rules = append(rules, rule)
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids, err := h.repo.ReplaceAll(ctx, tx, caller.ID, rules)
	if err != nil {
		http.Error(w, "failed to save availability", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.logger.Info("availability template replaced", "mentor_id", caller.ID, "rules", len(ids))
	respondJSON(w, http.StatusOK, setAvailabilityResponse{RuleIDs: ids})
}

// Get returns a mentor's active rules. The owning mentor may pass all=true
// to include toggled-off rules in the template view.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	mentorID := strings.TrimSpace(r.URL.Query().Get("mentor_id"))
	if mentorID == "" {
		mentorID = caller.ID
	}

	var rules []availability.Rule
	if mentorID == caller.ID && r.URL.Query().Get("all") == "true" {
		rules, err = h.repo.ListAll(r.Context(), mentorID)
	} else {
		rules, err = h.repo.ListActive(r.Context(), mentorID)
	}
	if err != nil {
		http.Error(w, "failed to list availability", http.StatusInternalServerError)
		return
	}

	resp := listAvailabilityResponse{MentorID: mentorID, Rules: make([]ruleItem, 0, len(rules))}
	for _, rule := range rules {
		resp.Timezone = rule.Timezone
		resp.Rules = append(resp.Rules, ruleItem{
			RuleID:      rule.ID,
			Weekday:     int(rule.Weekday),
			StartTime:   rule.Start,
			EndTime:     rule.End,
			MaxBookings: rule.MaxBookings,
			Active:      rule.Active,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

type ruleMutationRequest struct {
	RuleID string `json:"rule_id"`
}

type ruleMutationResponse struct {
	RuleID string `json:"rule_id"`
	Active bool   `json:"active,omitempty"`
}

// Toggle flips one rule's active flag; ownership checked under the tx.
func (h *AvailabilityHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.mutateRule(w, r, func(rule availability.Rule) (bool, bool) {
		return true, !rule.Active
	})
}

// Delete removes one rule from the template.
func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutateRule(w, r, func(availability.Rule) (bool, bool) {
		return false, false
	})
}

func (h *AvailabilityHandler) mutateRule(w http.ResponseWriter, r *http.Request, decide func(availability.Rule) (toggle, newActive bool)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if caller.Role != model.RoleMentor {
		respondError(w, fmt.Errorf("%w: only mentors manage availability", model.ErrForbidden))
		return
	}

	var req ruleMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RuleID = strings.TrimSpace(req.RuleID)
	if req.RuleID == "" {
		http.Error(w, "rule_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rule, err := h.repo.GetRuleForUpdate(ctx, tx, req.RuleID)
	if err != nil {
		if storage.IsNotFound(err) {
			respondError(w, fmt.Errorf("%w: rule %s", model.ErrNotFound, req.RuleID))
			return
		}
		http.Error(w, "failed to load rule", http.StatusInternalServerError)
		return
	}
	if rule.MentorID != caller.ID {
		respondError(w, fmt.Errorf("%w: rule belongs to another mentor", model.ErrForbidden))
		return
	}

	toggle, newActive := decide(rule)
	if toggle {
		err = h.repo.SetActive(ctx, tx, rule.ID, newActive)
	} else {
		err = h.repo.Delete(ctx, tx, rule.ID)
	}
	if err != nil {
		http.Error(w, "failed to update rule", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	if toggle {
		respondJSON(w, http.StatusOK, ruleMutationResponse{RuleID: rule.ID, Active: newActive})
		return
	}
	respondJSON(w, http.StatusOK, ruleMutationResponse{RuleID: rule.ID})
}
