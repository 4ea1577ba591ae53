package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/tegward/housepoints/internal/config"
	"github.com/tegward/housepoints/internal/database"
	"github.com/tegward/housepoints/internal/ledger"
	"github.com/tegward/housepoints/internal/middleware"
	"github.com/tegward/housepoints/internal/model"
	"github.com/tegward/housepoints/internal/notify"
	"github.com/tegward/housepoints/internal/store"
)

type fixture struct {
	db     *sql.DB
	cfg    config.Config
	ledger *ledger.Service
	feed   *notify.Feed

	points *PointsHandler
	log    *LogHandler
	notifs *NotificationsHandler
	admin  *AdminHandler
	push   *PushHandler
}

func testConfig() config.Config {
	return config.Config{
		PointTypes: []model.PointType{
			{TypeID: "hp", Name: "House Points", Abbr: "HP", AllowNegative: true, IncludeInTotal: true, ShowOnLog: true, Enabled: true},
			{TypeID: "hwp", Name: "Homework Points", Abbr: "HWP", AllowNegative: false, IncludeInTotal: true, Enabled: true},
		},
		Teams: []model.Team{
			{GroupID: 7, Label: "Gryffindor"},
			{GroupID: 8, Label: "Slytherin"},
		},
		EditorGroupIDs: []int64{5},
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := testConfig()
	svc := ledger.New(cfg, store.NewTotalsStore(db), store.NewUserPointsStore(db))
	feed := notify.New(svc, store.NewSeenStore(db))
	logger := slog.Default()

	return &fixture{
		db:     db,
		cfg:    cfg,
		ledger: svc,
		feed:   feed,
		points: NewPointsHandler(cfg, svc, nil, nil, logger),
		log:    NewLogHandler(svc, nil, logger),
		notifs: NewNotificationsHandler(feed, logger),
		admin:  NewAdminHandler(svc, feed, store.NewSettingsStore(db), nil, nil, logger),
		push:   NewPushHandler(store.NewPushStore(db), nil, logger),
	}
}

func asStaff(req *http.Request, userID int64, admin bool) *http.Request {
	id := middleware.Identity{UserID: userID, Name: "Prof. Vector", GroupID: 5, Admin: admin}
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func adjustReq(t *testing.T, userID int64, body map[string]any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/users/"+strconv.FormatInt(userID, 10)+"/points", bytes.NewReader(data))
	req.SetPathValue("id", strconv.FormatInt(userID, 10))
	return asStaff(req, 900, false)
}

func (f *fixture) adjust(t *testing.T, userID int64, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.points.Adjust(rec, adjustReq(t, userID, body))
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestGetPointsUntouchedUser(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest("GET", "/api/users/42/points", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	f.points.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	dp := decodeJSON[ledger.DisplayPoints](t, rec)
	if dp.Total != 0 || dp.Points["hp"] != 0 {
		t.Errorf("display = %+v, want zeros", dp)
	}
	if len(dp.Types) != 2 {
		t.Errorf("types = %d, want 2", len(dp.Types))
	}
}

func TestAdjustHappyPath(t *testing.T) {
	f := setup(t)

	rec := f.adjust(t, 42, map[string]any{
		"type_id": "hp", "delta": 10, "reason": "Charms homework", "group_id": 7, "user_name": "Hermione",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	res := decodeJSON[ledger.AdjustResult](t, rec)
	if res.OldValue != 0 || res.NewValue != 10 || res.GroupID != 7 {
		t.Errorf("result = %+v", res)
	}
	if res.Notif == nil || res.Notif.Delta != 10 {
		t.Errorf("expected notification with delta 10, got %+v", res.Notif)
	}
	if !res.Logged {
		t.Error("positive visible adjustment should be logged")
	}
}

func TestAdjustRequiresReason(t *testing.T) {
	f := setup(t)

	for _, reason := range []string{"", "   "} {
		rec := f.adjust(t, 42, map[string]any{"type_id": "hp", "delta": 10, "reason": reason, "group_id": 7})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("reason %q: status = %d, want %d", reason, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestAdjustRequiresIdentity(t *testing.T) {
	f := setup(t)

	data, _ := json.Marshal(map[string]any{"type_id": "hp", "delta": 10, "reason": "r", "group_id": 7})
	req := httptest.NewRequest("POST", "/api/users/42/points", bytes.NewReader(data))
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	f.points.Adjust(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAdjustCoercesNegativeDeltaOnRestrictedType(t *testing.T) {
	f := setup(t)

	// Seed a balance first
	f.adjust(t, 42, map[string]any{"type_id": "hwp", "delta": 8, "reason": "essay", "group_id": 7})

	// hwp disallows deductions; a negative delta becomes a no-op
	rec := f.adjust(t, 42, map[string]any{"type_id": "hwp", "delta": -5, "reason": "late", "group_id": 7})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decodeJSON[ledger.AdjustResult](t, rec)
	if res.NewValue != 8 {
		t.Errorf("value = %d, want 8", res.NewValue)
	}
	if res.Notif != nil {
		t.Error("coerced no-op should not notify")
	}
}

func TestAdjustUnknownType(t *testing.T) {
	f := setup(t)

	rec := f.adjust(t, 42, map[string]any{"type_id": "qp", "delta": 10, "reason": "quidditch", "group_id": 7})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAdjustMissingGroup(t *testing.T) {
	f := setup(t)

	rec := f.adjust(t, 42, map[string]any{"type_id": "hp", "delta": 10, "reason": "no house"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestScoreboard(t *testing.T) {
	f := setup(t)

	f.adjust(t, 42, map[string]any{"type_id": "hp", "delta": 10, "reason": "r", "group_id": 7})
	f.adjust(t, 43, map[string]any{"type_id": "hp", "delta": 4, "reason": "r", "group_id": 8})

	rec := httptest.NewRecorder()
	f.points.Scoreboard(rec, httptest.NewRequest("GET", "/api/scoreboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rows := decodeJSON[[]ledger.ScoreboardRow](t, rec)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	byLabel := map[string]int{}
	for _, row := range rows {
		byLabel[row.Team.Label] = row.Total
	}
	if byLabel["Gryffindor"] != 10 || byLabel["Slytherin"] != 4 {
		t.Errorf("totals = %v", byLabel)
	}
}

func TestLogEndpoint(t *testing.T) {
	f := setup(t)

	f.adjust(t, 42, map[string]any{"type_id": "hp", "delta": 10, "reason": "Charms homework", "group_id": 7, "user_name": "Hermione"})
	// hwp has ShowOnLog false, so this never reaches the log
	f.adjust(t, 42, map[string]any{"type_id": "hwp", "delta": 3, "reason": "essay", "group_id": 7})

	rec := httptest.NewRecorder()
	f.log.Get(rec, httptest.NewRequest("GET", "/api/log", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	entries := decodeJSON[[]model.LogEntry](t, rec)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Reason != "Charms homework" || entries[0].UserName != "Hermione" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestNotificationsFlow(t *testing.T) {
	f := setup(t)

	f.adjust(t, 42, map[string]any{"type_id": "hp", "delta": 10, "reason": "r", "group_id": 7})

	asUser := func(req *http.Request) *http.Request {
		return req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: 42}))
	}

	rec := httptest.NewRecorder()
	f.notifs.Unread(rec, asUser(httptest.NewRequest("GET", "/api/notifications/unread", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("unread status = %d", rec.Code)
	}
	if got := decodeJSON[map[string]int](t, rec); got["unread"] != 1 {
		t.Errorf("unread = %d, want 1", got["unread"])
	}

	// Viewing the feed marks it seen
	rec = httptest.NewRecorder()
	f.notifs.Get(rec, asUser(httptest.NewRequest("GET", "/api/notifications", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d", rec.Code)
	}
	entries := decodeJSON[[]notify.Entry](t, rec)
	if len(entries) != 1 || !entries[0].New {
		t.Errorf("entries = %+v", entries)
	}

	rec = httptest.NewRecorder()
	f.notifs.Unread(rec, asUser(httptest.NewRequest("GET", "/api/notifications/unread", nil)))
	if got := decodeJSON[map[string]int](t, rec); got["unread"] != 0 {
		t.Errorf("unread after view = %d, want 0", got["unread"])
	}
}

func TestNotificationsUnavailable(t *testing.T) {
	f := setup(t)
	h := NewNotificationsHandler(notify.New(f.ledger, nil), slog.Default())

	req := httptest.NewRequest("GET", "/api/notifications", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: 42}))
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestNotificationsLimitValidation(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest("GET", "/api/notifications?limit=0", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: 42}))
	rec := httptest.NewRecorder()
	f.notifs.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAdminReset(t *testing.T) {
	f := setup(t)

	f.adjust(t, 42, map[string]any{"type_id": "hp", "delta": 10, "reason": "r", "group_id": 7})

	req := asStaff(httptest.NewRequest("POST", "/api/admin/reset", nil), 1, true)
	rec := httptest.NewRecorder()
	f.admin.Reset(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Prior balances read as zero under the new epoch
	getReq := httptest.NewRequest("GET", "/api/users/42/points", nil)
	getReq.SetPathValue("id", "42")
	getRec := httptest.NewRecorder()
	f.points.Get(getRec, getReq)
	dp := decodeJSON[ledger.DisplayPoints](t, getRec)
	if dp.Points["hp"] != 0 {
		t.Errorf("hp after reset = %d, want 0", dp.Points["hp"])
	}

	// Log is wiped too
	logRec := httptest.NewRecorder()
	f.log.Get(logRec, httptest.NewRequest("GET", "/api/log", nil))
	if entries := decodeJSON[[]model.LogEntry](t, logRec); len(entries) != 0 {
		t.Errorf("log after reset = %d entries, want 0", len(entries))
	}
}

func TestBackupSettingsMaskSecret(t *testing.T) {
	f := setup(t)

	body, _ := json.Marshal(map[string]string{
		"backup_enabled":       "true",
		"backup_s3_bucket":     "points-backups",
		"backup_s3_secret_key": "hunter2",
	})
	req := httptest.NewRequest("PUT", "/api/admin/backup/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.admin.UpdateBackupSettings(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	settings := decodeJSON[map[string]string](t, rec)
	if settings["backup_s3_secret_key"] != "" {
		t.Error("secret key should not be echoed back")
	}
	if settings["backup_s3_bucket"] != "points-backups" {
		t.Errorf("bucket = %q", settings["backup_s3_bucket"])
	}
}

func TestBackupSettingsRejectUnknownKey(t *testing.T) {
	f := setup(t)

	body, _ := json.Marshal(map[string]string{"favorite_color": "green"})
	req := httptest.NewRequest("PUT", "/api/admin/backup/settings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.admin.UpdateBackupSettings(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPushSubscribeAndList(t *testing.T) {
	f := setup(t)

	asUser := func(req *http.Request) *http.Request {
		return req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: 42}))
	}

	body, _ := json.Marshal(map[string]string{
		"endpoint": "https://push.example/ep1", "p256dh": "key", "auth": "auth", "device_name": "phone",
	})
	rec := httptest.NewRecorder()
	f.push.Subscribe(rec, asUser(httptest.NewRequest("POST", "/api/push/subscribe", bytes.NewReader(body))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	f.push.ListSubscriptions(rec, asUser(httptest.NewRequest("GET", "/api/push/subscriptions", nil)))
	subs := decodeJSON[[]model.PushSubscription](t, rec)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/ep1" {
		t.Errorf("subs = %+v", subs)
	}
}

func TestPushSubscribeValidation(t *testing.T) {
	f := setup(t)

	body, _ := json.Marshal(map[string]string{"endpoint": "https://push.example/ep1"})
	req := httptest.NewRequest("POST", "/api/push/subscribe", bytes.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: 42}))
	rec := httptest.NewRecorder()
	f.push.Subscribe(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPushUnsubscribeOwnershipCheck(t *testing.T) {
	f := setup(t)

	body, _ := json.Marshal(map[string]string{
		"endpoint": "https://push.example/ep1", "p256dh": "key", "auth": "auth",
	})
	req := httptest.NewRequest("POST", "/api/push/subscribe", bytes.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: 42}))
	rec := httptest.NewRecorder()
	f.push.Subscribe(rec, req)
	sub := decodeJSON[model.PushSubscription](t, rec)

	// A different user cannot delete it
	delReq := httptest.NewRequest("DELETE", "/api/push/subscriptions/1", nil)
	delReq.SetPathValue("id", strconv.FormatInt(sub.ID, 10))
	delReq = delReq.WithContext(middleware.WithIdentity(delReq.Context(), middleware.Identity{UserID: 99}))
	rec = httptest.NewRecorder()
	f.push.Unsubscribe(rec, delReq)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestVAPIDKeyUnavailable(t *testing.T) {
	f := setup(t)

	rec := httptest.NewRecorder()
	f.push.GetVAPIDKey(rec, httptest.NewRequest("GET", "/api/push/vapid-key", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
