package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tegward/housepoints/internal/middleware"
	"github.com/tegward/housepoints/internal/notify"
)

type NotificationsHandler struct {
	feed   *notify.Feed
	logger *slog.Logger
}

func NewNotificationsHandler(feed *notify.Feed, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{feed: feed, logger: logger}
}

func (h *NotificationsHandler) available(w http.ResponseWriter) bool {
	if h.feed == nil || !h.feed.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
		return false
	}
	return true
}

// Get handles GET /api/notifications. Viewing the feed marks it seen.
func (h *NotificationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := notify.DefaultFeedLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be 1-50")
			return
		}
		limit = n
	}

	entries, err := h.feed.View(id.UserID, limit)
	if err != nil {
		h.logger.Error("notification feed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get notifications")
		return
	}
	if entries == nil {
		entries = []notify.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Unread handles GET /api/notifications/unread
func (h *NotificationsHandler) Unread(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	n, err := h.feed.Unread(id.UserID)
	if err != nil {
		h.logger.Error("unread count", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

// Clear handles POST /api/notifications/clear
func (h *NotificationsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.feed.Clear(id.UserID); err != nil {
		h.logger.Error("clear notifications", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear notifications")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
