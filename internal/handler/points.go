package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tegward/housepoints/internal/config"
	"github.com/tegward/housepoints/internal/ledger"
	"github.com/tegward/housepoints/internal/middleware"
	"github.com/tegward/housepoints/internal/push"
	"github.com/tegward/housepoints/internal/websocket"
)

type PointsHandler struct {
	cfg      config.Config
	ledger   *ledger.Service
	hub      *websocket.Hub
	notifier *push.Notifier
	logger   *slog.Logger
}

func NewPointsHandler(cfg config.Config, l *ledger.Service, hub *websocket.Hub, notifier *push.Notifier, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{cfg: cfg, ledger: l, hub: hub, notifier: notifier, logger: logger}
}

func (h *PointsHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// Get handles GET /api/users/{id}/points
func (h *PointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	dp, err := h.ledger.GetDisplayPoints(userID)
	if err != nil {
		h.logger.Error("get display points", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get points")
		return
	}

	writeJSON(w, http.StatusOK, dp)
}

type adjustRequest struct {
	TypeID   string `json:"type_id"`
	Delta    int    `json:"delta"`
	Reason   string `json:"reason"`
	GroupID  int64  `json:"group_id"`
	UserName string `json:"user_name"`
}

// Adjust handles POST /api/users/{id}/points. A reason is always
// required, and a negative delta on a type that disallows deductions is
// coerced to zero before it reaches the ledger.
func (h *PointsHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	staff, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "a reason is required to modify points")
		return
	}

	pt, ok := h.cfg.TypeByID(req.TypeID)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown point type")
		return
	}
	if !pt.AllowNegative && req.Delta < 0 {
		req.Delta = 0
	}

	res, err := h.ledger.Adjust(ledger.AdjustRequest{
		UserID:    userID,
		TypeID:    req.TypeID,
		Delta:     req.Delta,
		Reason:    req.Reason,
		GroupID:   req.GroupID,
		StaffID:   staff.UserID,
		StaffName: staff.Name,
		UserName:  req.UserName,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrMissingGroup):
			writeError(w, http.StatusBadRequest, "user has no team group")
		case errors.Is(err, ledger.ErrUnknownPointType):
			writeError(w, http.StatusBadRequest, "unknown point type")
		default:
			h.logger.Error("adjust points", "user_id", userID, "type_id", req.TypeID, "error", err)
			writeError(w, http.StatusInternalServerError, "could not save points")
		}
		return
	}

	if res.Notif != nil {
		h.broadcast(websocket.AdjustedEvent(res.Notif, res.GroupID))
		h.notifier.NotifyPointChange(res.Notif)
	}

	writeJSON(w, http.StatusOK, res)
}

// Scoreboard handles GET /api/scoreboard
func (h *PointsHandler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.Scoreboard()
	if err != nil {
		h.logger.Error("scoreboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get scoreboard")
		return
	}
	if rows == nil {
		rows = []ledger.ScoreboardRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}
