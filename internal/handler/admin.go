package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tegward/housepoints/internal/backup"
	"github.com/tegward/housepoints/internal/ledger"
	"github.com/tegward/housepoints/internal/middleware"
	"github.com/tegward/housepoints/internal/notify"
	"github.com/tegward/housepoints/internal/store"
	"github.com/tegward/housepoints/internal/websocket"
)

type AdminHandler struct {
	ledger   *ledger.Service
	feed     *notify.Feed
	settings *store.SettingsStore
	backups  *backup.Manager
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewAdminHandler(l *ledger.Service, feed *notify.Feed, settings *store.SettingsStore, backups *backup.Manager, hub *websocket.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{ledger: l, feed: feed, settings: settings, backups: backups, hub: hub, logger: logger}
}

// Reset handles POST /api/admin/reset. Scoreboard totals, the global
// log, and the shared notification list are wiped under a new reset
// version; per-user records invalidate lazily on their next read. The
// acting admin's own feed clears immediately, everyone else clears on
// next visit.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	totals, err := h.ledger.Reset()
	if err != nil {
		h.logger.Error("reset points", "staff_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}

	if h.feed != nil && h.feed.Enabled() {
		if err := h.feed.Clear(id.UserID); err != nil {
			h.logger.Warn("clear admin feed after reset", "user_id", id.UserID, "error", err)
		}
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.ResetEvent(totals.ResetTS))
	}

	h.logger.Info("points reset", "staff_id", id.UserID, "reset_version", totals.ResetVersion)

	writeJSON(w, http.StatusOK, map[string]any{
		"reset_version": totals.ResetVersion,
		"reset_ts":      totals.ResetTS,
	})
}

// GetBackupSettings handles GET /api/admin/backup/settings
func (h *AdminHandler) GetBackupSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetBackupSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	// Never echo the secret back
	settings["backup_s3_secret_key"] = ""
	writeJSON(w, http.StatusOK, settings)
}

// UpdateBackupSettings handles PUT /api/admin/backup/settings
func (h *AdminHandler) UpdateBackupSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.settings.UpdateBackupSettings(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.settings.GetBackupSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	if h.backups != nil {
		h.backups.UpdateS3Config(backup.S3Config{
			Endpoint:  settings["backup_s3_endpoint"],
			Bucket:    settings["backup_s3_bucket"],
			Region:    settings["backup_s3_region"],
			AccessKey: settings["backup_s3_access_key"],
			SecretKey: settings["backup_s3_secret_key"],
		})
	}

	settings["backup_s3_secret_key"] = ""
	writeJSON(w, http.StatusOK, settings)
}

// BackupStatus handles GET /api/admin/backup/status
func (h *AdminHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots unavailable")
		return
	}
	writeJSON(w, http.StatusOK, h.backups.Status())
}

// RunBackup handles POST /api/admin/backup/run
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots unavailable")
		return
	}

	key, err := h.backups.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

// RestoreBackup handles POST /api/admin/backup/restore
func (h *AdminHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots unavailable")
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.backups.Restore(r.Context(), req.Key); err != nil {
		h.logger.Error("restore snapshot", "key", req.Key, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
