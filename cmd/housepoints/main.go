package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tegward/housepoints/internal/backup"
	"github.com/tegward/housepoints/internal/config"
	"github.com/tegward/housepoints/internal/database"
	"github.com/tegward/housepoints/internal/logging"
	"github.com/tegward/housepoints/internal/push"
	"github.com/tegward/housepoints/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := logging.Setup(os.Getenv("HP_LOG_LEVEL"), os.Getenv("HP_LOG_FORMAT"))

	port := envOr("HP_PORT", "8080")
	dbPath := envOr("HP_DB_PATH", "housepoints.db")
	settingsPath := envOr("HP_SETTINGS_PATH", "settings.json")

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg, err := config.Load(settingsPath)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	opts := server.Options{
		ForumBaseURL: os.Getenv("HP_FORUM_URL"),
		PushCfg: push.Config{
			VAPIDPublicKey:  os.Getenv("HP_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("HP_VAPID_PRIVATE_KEY"),
			Subscriber:      os.Getenv("HP_VAPID_SUBSCRIBER"),
		},
		BackupCfg: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("HP_S3_ENDPOINT"),
				Bucket:    os.Getenv("HP_S3_BUCKET"),
				Region:    envOr("HP_S3_REGION", "auto"),
				AccessKey: os.Getenv("HP_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("HP_S3_SECRET_KEY"),
			},
			Passphrase: os.Getenv("HP_BACKUP_PASSPHRASE"),
		},
	}

	srv := server.New(db, cfg, opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Expired rate-limit entries accumulate until swept
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("housepoints listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
