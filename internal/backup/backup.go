package backup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tegward/housepoints/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds snapshot manager configuration.
type Config struct {
	S3         S3Config
	Passphrase string
}

// State represents the snapshot manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current snapshot manager status.
type Status struct {
	State        State      `json:"state"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
	LastKey      string     `json:"last_key,omitempty"`
	Error        string     `json:"error,omitempty"`
	InProgress   bool       `json:"in_progress"`
}

// snapshotRecord is one row of the plugin record table.
type snapshotRecord struct {
	Record    string          `json:"record"`
	ObjectID  string          `json:"object_id"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt string          `json:"updated_at"`
}

// snapshot is the exported plugin state.
type snapshot struct {
	CreatedAt int64            `json:"created_at"`
	Records   []snapshotRecord `json:"records"`
}

// Manager exports encrypted snapshots of the plugin state to
// S3-compatible storage and restores from them.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	db       *sql.DB
	settings *store.SettingsStore
	client   s3Client
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new snapshot manager. Snapshots stay disabled
// until S3 credentials and a passphrase are configured.
func NewManager(cfg Config, db *sql.DB, settings *store.SettingsStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		settings: settings,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}

	if configured(cfg) {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func configured(cfg Config) bool {
	return cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != ""
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// UpdateS3Config hot-reloads the S3 configuration.
func (m *Manager) UpdateS3Config(s3cfg S3Config) {
	m.mu.Lock()
	m.cfg.S3 = s3cfg
	if configured(m.cfg) {
		m.client = newS3Client(s3cfg)
		m.status.State = StateIdle
	} else {
		m.client = nil
		m.status.State = StateDisabled
	}
	m.mu.Unlock()
}

// Start begins the scheduled snapshot loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the snapshot manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current snapshot status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// checkSchedule runs one snapshot per day at 03:00 UTC when snapshots
// are enabled in settings.
func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != 3 || now.Minute() != 0 {
		return
	}

	settings, err := m.settings.GetBackupSettings()
	if err != nil || settings["backup_enabled"] != "true" {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
	}
}

// RunNow exports, encrypts, and uploads a snapshot immediately. It
// returns the object key written to the bucket.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("snapshots not configured")
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	snap, err := m.export(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", err
	}

	plaintext, err := json.Marshal(snap)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	sealed, err := Encrypt(plaintext, passphrase)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("housepoints/snapshot-%s.json.enc", time.Now().UTC().Format("2006-01-02T150405Z"))

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastSnapshot: &now, LastKey: key})
	m.logger.Info("snapshot uploaded", "key", key, "bytes", len(sealed))

	return key, nil
}

func (m *Manager) export(ctx context.Context) (*snapshot, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT record, object_id, value, updated_at FROM plugin_records ORDER BY record, object_id`)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	defer rows.Close()

	snap := &snapshot{CreatedAt: time.Now().UTC().Unix()}
	for rows.Next() {
		var rec snapshotRecord
		var value string
		if err := rows.Scan(&rec.Record, &rec.ObjectID, &value, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Value = json.RawMessage(value)
		snap.Records = append(snap.Records, rec)
	}
	return snap, rows.Err()
}

// Restore downloads a snapshot, decrypts it, and replaces the plugin
// record table with its contents in one transaction.
func (m *Manager) Restore(ctx context.Context, key string) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("snapshots not configured")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	var sealed bytes.Buffer
	if _, err := sealed.ReadFrom(result.Body); err != nil {
		return fmt.Errorf("read snapshot body: %w", err)
	}

	plaintext, err := Decrypt(sealed.Bytes(), passphrase)
	if err != nil {
		return fmt.Errorf("decrypt snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	return m.importRecords(ctx, &snap)
}

func (m *Manager) importRecords(ctx context.Context, snap *snapshot) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plugin_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	for _, rec := range snap.Records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO plugin_records (record, object_id, value, updated_at) VALUES (?, ?, ?, ?)`,
			rec.Record, rec.ObjectID, string(rec.Value), rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert record %s/%s: %w", rec.Record, rec.ObjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	m.logger.Info("snapshot restored", "records", len(snap.Records))
	return nil
}
