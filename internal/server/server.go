package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tegward/housepoints/internal/backup"
	"github.com/tegward/housepoints/internal/config"
	"github.com/tegward/housepoints/internal/handler"
	"github.com/tegward/housepoints/internal/ledger"
	"github.com/tegward/housepoints/internal/middleware"
	"github.com/tegward/housepoints/internal/names"
	"github.com/tegward/housepoints/internal/notify"
	"github.com/tegward/housepoints/internal/push"
	"github.com/tegward/housepoints/internal/store"
	ws "github.com/tegward/housepoints/internal/websocket"
)

type Server struct {
	db  *sql.DB
	cfg config.Config
	hub *ws.Hub

	pointsH *handler.PointsHandler
	logH    *handler.LogHandler
	notifsH *handler.NotificationsHandler
	adminH  *handler.AdminHandler
	pushH   *handler.PushHandler

	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushService   *push.Service
	logger        *slog.Logger
}

// Options carries the deployment-level knobs that do not live in the
// plugin settings document.
type Options struct {
	ForumBaseURL string
	PushCfg      push.Config
	BackupCfg    backup.Config
}

func New(db *sql.DB, cfg config.Config, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	totalsStore := store.NewTotalsStore(db)
	userStore := store.NewUserPointsStore(db)
	seenStore := store.NewSeenStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)

	ledgerSvc := ledger.New(cfg, totalsStore, userStore)
	feed := notify.New(ledgerSvc, seenStore)

	var resolver *names.Resolver
	if opts.ForumBaseURL != "" {
		resolver = names.NewResolver(opts.ForumBaseURL)
	}

	// Push stays nil without VAPID keys; the notifier no-ops and the
	// push routes report the feature as unavailable.
	var pushSvc *push.Service
	var notifier *push.Notifier
	if opts.PushCfg.VAPIDPublicKey != "" && opts.PushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(opts.PushCfg)
		notifier = push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))
	}

	backupMgr := backup.NewManager(opts.BackupCfg, db, settingsStore, logger.With("component", "backup"))

	return &Server{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		pointsH:       handler.NewPointsHandler(cfg, ledgerSvc, hub, notifier, logger.With("component", "points")),
		logH:          handler.NewLogHandler(ledgerSvc, resolver, logger.With("component", "log")),
		notifsH:       handler.NewNotificationsHandler(feed, logger.With("component", "notifications")),
		adminH:        handler.NewAdminHandler(ledgerSvc, feed, settingsStore, backupMgr, hub, logger.With("component", "admin")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushService:   pushSvc,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the snapshot manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Read surfaces: any identified forum user
	userMux := http.NewServeMux()
	userMux.HandleFunc("GET /api/users/{id}/points", s.pointsH.Get)
	userMux.HandleFunc("GET /api/scoreboard", s.pointsH.Scoreboard)
	userMux.HandleFunc("GET /api/log", s.logH.Get)
	userMux.HandleFunc("GET /api/notifications", s.notifsH.Get)
	userMux.HandleFunc("GET /api/notifications/unread", s.notifsH.Unread)
	userMux.HandleFunc("POST /api/notifications/clear", s.notifsH.Clear)
	userMux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	userMux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	userMux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	userMux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	userMux.HandleFunc("GET /ws", ws.Handler(s.hub))
	mux.Handle("/api/", middleware.RequireUser(userMux))
	mux.Handle("/ws", middleware.RequireUser(userMux))

	// Write surface: admins and editor groups, rate limited per actor
	editorMux := http.NewServeMux()
	editorMux.HandleFunc("POST /api/users/{id}/points", s.rateLimited(s.pointsH.Adjust))
	mux.Handle("POST /api/users/{id}/points", middleware.RequireEditor(s.cfg)(editorMux))

	// Admin surface
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("POST /api/admin/reset", s.adminH.Reset)
	adminMux.HandleFunc("GET /api/admin/backup/settings", s.adminH.GetBackupSettings)
	adminMux.HandleFunc("PUT /api/admin/backup/settings", s.adminH.UpdateBackupSettings)
	adminMux.HandleFunc("GET /api/admin/backup/status", s.adminH.BackupStatus)
	adminMux.HandleFunc("POST /api/admin/backup/run", s.adminH.RunBackup)
	adminMux.HandleFunc("POST /api/admin/backup/restore", s.adminH.RestoreBackup)
	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	h := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.Identify(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	limited := middleware.RateLimit(s.rateLimiter, middleware.ActorKey, 30, time.Minute)(h)
	return limited.ServeHTTP
}
