package handler

import (
	"log/slog"
	"net/http"

	"github.com/tegward/housepoints/internal/ledger"
	"github.com/tegward/housepoints/internal/model"
	"github.com/tegward/housepoints/internal/names"
)

type LogHandler struct {
	ledger *ledger.Service
	names  *names.Resolver
	logger *slog.Logger
}

func NewLogHandler(l *ledger.Service, resolver *names.Resolver, logger *slog.Logger) *LogHandler {
	return &LogHandler{ledger: l, names: resolver, logger: logger}
}

// Get handles GET /api/log. Stored display names go stale after renames,
// so entries are re-resolved against the forum when a resolver is
// configured.
func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.VisibleLog()
	if err != nil {
		h.logger.Error("visible log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get log")
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}

	if h.names != nil {
		for i := range entries {
			entries[i].UserName = h.names.Resolve(entries[i].UserID, entries[i].UserName)
			entries[i].StaffName = h.names.Resolve(entries[i].StaffID, entries[i].StaffName)
		}
	}

	writeJSON(w, http.StatusOK, entries)
}
