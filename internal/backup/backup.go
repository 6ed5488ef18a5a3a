package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/store"
)

// ErrNotConfigured is returned when storage or the passphrase is missing.
var ErrNotConfigured = errors.New("backup not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	Prefix     string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"inProgress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager snapshots the database, encrypts it and uploads it to S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	run      sync.Mutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger
	now      func() time.Time

	db      *sql.DB
	backups *store.BackupStore
	client  s3Client

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Manager)

// WithStatusCallback registers a listener for state changes.
func WithStatusCallback(cb StatusCallback) Option {
	return func(m *Manager) {
		m.callback = cb
	}
}

func withClient(c s3Client) Option {
	return func(m *Manager) {
		m.client = c
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new backup manager. It stays disabled until both the
// bucket credentials and a passphrase are configured.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "submitlink"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: store.NewBackupStore(db),
		logger:  logger.With("component", "backup"),
		now:     func() time.Time { return time.Now().UTC() },
		status:  Status{State: StateDisabled},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil && cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
	}
	if m.client != nil && cfg.Passphrase != "" {
		m.status.State = StateIdle
	}
	return m
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

// Enabled reports whether backups can run.
func (m *Manager) Enabled() bool {
	return m.Status().State != StateDisabled
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
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

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// List returns the most recent backup records.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.backups.List(ctx, limit)
}

// RunNow takes a snapshot immediately and returns the completed record.
// Only one backup runs at a time.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if !m.Enabled() {
		return nil, ErrNotConfigured
	}
	m.run.Lock()
	defer m.run.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	now := m.now()
	filename := fmt.Sprintf("backup-%s.db.enc", now.Format("2006-01-02T150405Z"))
	s3Key := fmt.Sprintf("%s/%s", m.cfg.Prefix, filename)

	record, err := m.backups.Create(ctx, filename, s3Key, now)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	size, err := m.snapshotAndUpload(ctx, record)
	if err != nil {
		if uerr := m.backups.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error(), m.now()); uerr != nil {
			m.logger.Error("failed to mark backup failed", "backup_id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	done := m.now()
	if err := m.backups.UpdateCompleted(ctx, record.ID, size, done); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("complete backup record: %w", err)
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &done})
	m.logger.Info("backup completed", "backup_id", record.ID, "key", s3Key, "size_bytes", size)

	return m.backups.GetByID(ctx, record.ID)
}

func (m *Manager) snapshotAndUpload(ctx context.Context, record *model.Backup) (int64, error) {
	if err := m.backups.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, "", m.now()); err != nil {
		return 0, fmt.Errorf("mark uploading: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "submitlink-backup-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dbCopy := filepath.Join(tmpDir, "snapshot.db")
	encFile := filepath.Join(tmpDir, record.Filename)

	// VACUUM INTO writes a consistent copy without stopping writers.
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", dbCopy); err != nil {
		return 0, fmt.Errorf("snapshot database: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return 0, err
	}
	if err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase, salt); err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return 0, fmt.Errorf("open encrypted file: %w", err)
	}
	defer encData.Close()

	stat, err := encData.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat encrypted file: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(record.S3Key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return stat.Size(), nil
}

// Cleanup deletes backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	before := m.now().Add(-m.cfg.Retention)
	keys, err := m.backups.DeleteOlderThan(ctx, before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("failed to delete S3 object", "key", key, "error", err)
		}
	}
	return nil
}
