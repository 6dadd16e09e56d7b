package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mentorloop/backend/services/notification-service/internal/storage"
)

type NotificationsHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewNotificationsHandler(repo *storage.Repository, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{repo: repo, logger: logger}
}

// userFrom trusts the gateway-forwarded identity header; the service is
// never exposed directly.
func userFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

type notificationItem struct {
	ID          string `json:"id"`
	BookingID   string `json:"booking_id,omitempty"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	EmailStatus string `json:"email_status,omitempty"`
	Read        bool   `json:"read"`
	CreatedAt   string `json:"created_at"`
}

type mutationRequest struct {
	NotificationID string `json:"notification_id"`
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userFrom(r)
	if userID == "" {
		http.Error(w, "missing identity", http.StatusForbidden)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	notes, err := h.repo.ListForUser(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err)
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}

	items := make([]notificationItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, notificationItem{
			ID:          n.ID,
			BookingID:   n.BookingID,
			Kind:        n.Kind,
			Title:       n.Title,
			Body:        n.Body,
			EmailStatus: n.EmailStatus,
			Read:        n.Read,
			CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.repo.MarkRead)
}

func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.repo.Delete)
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userFrom(r)
	if userID == "" {
		http.Error(w, "missing identity", http.StatusForbidden)
		return
	}
	updated, err := h.repo.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Error("mark all read failed", "err", err)
		http.Error(w, "failed to update notifications", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *NotificationsHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, notificationID string) (bool, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userFrom(r)
	if userID == "" {
		http.Error(w, "missing identity", http.StatusForbidden)
		return
	}

	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.NotificationID = strings.TrimSpace(req.NotificationID)
	if req.NotificationID == "" {
		http.Error(w, "notification_id required", http.StatusBadRequest)
		return
	}

	found, err := op(r.Context(), userID, req.NotificationID)
	if err != nil {
		h.logger.Error("notification mutation failed", "err", err)
		http.Error(w, "failed to update notification", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"notification_id": req.NotificationID})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
