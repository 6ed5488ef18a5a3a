// Package config reads service configuration from SUBMITLINK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/submitlink/internal/backup"
	"github.com/dukerupert/submitlink/internal/email"
	"github.com/dukerupert/submitlink/internal/submission"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	Engine         submission.Config
	JWTSecret      string
	AllowedOrigins []string

	ProductName   string
	PostmarkToken string
	MailFrom      string
	SMTP          email.SMTPConfig

	ExtractionURL    string
	ExtractionAPIKey string

	Backup          backup.Config
	CleanupInterval time.Duration

	VerifyRateLimit int
}

// FromEnv builds a Config from the environment. Unset variables take their
// defaults; malformed numbers are reported together.
func FromEnv() (*Config, error) {
	p := &parser{}

	port := getEnv("SUBMITLINK_PORT", "8080")
	cfg := &Config{
		Port:      port,
		DBPath:    getEnv("SUBMITLINK_DB_PATH", "submitlink.db"),
		LogLevel:  getEnv("SUBMITLINK_LOG_LEVEL", "info"),
		LogFormat: getEnv("SUBMITLINK_LOG_FORMAT", "text"),

		Engine: submission.Config{
			LinkTTL:              p.days("SUBMITLINK_LINK_TTL_DAYS", 14),
			VerifyCodeTTL:        p.minutes("SUBMITLINK_VERIFY_CODE_TTL_MINUTES", 10),
			MaxVerifyAttempts:    p.integer("SUBMITLINK_MAX_VERIFY_ATTEMPTS", 5),
			SessionTTL:           p.hours("SUBMITLINK_SESSION_TTL_HOURS", 12),
			LinkRecoveryCooldown: p.seconds("SUBMITLINK_LINK_RECOVERY_COOLDOWN_SECONDS", 60),
			PublicURLTemplate:    getEnv("SUBMITLINK_PUBLIC_URL_TEMPLATE", "http://localhost:"+port+"/submit/{token}"),
		},
		JWTSecret:      os.Getenv("SUBMITLINK_JWT_SECRET"),
		AllowedOrigins: splitList(os.Getenv("SUBMITLINK_ALLOWED_ORIGINS")),

		ProductName:   getEnv("SUBMITLINK_PRODUCT_NAME", "Profile Submission"),
		PostmarkToken: os.Getenv("SUBMITLINK_POSTMARK_TOKEN"),
		MailFrom:      os.Getenv("SUBMITLINK_MAIL_FROM"),
		SMTP: email.SMTPConfig{
			Host:          os.Getenv("SUBMITLINK_SMTP_HOST"),
			Port:          p.integer("SUBMITLINK_SMTP_PORT", 587),
			Username:      os.Getenv("SUBMITLINK_SMTP_USER"),
			Password:      os.Getenv("SUBMITLINK_SMTP_PASS"),
			From:          os.Getenv("SUBMITLINK_MAIL_FROM"),
			SkipTLSVerify: os.Getenv("SUBMITLINK_SMTP_SKIP_TLS_VERIFY") == "1",
		},

		ExtractionURL:    os.Getenv("SUBMITLINK_EXTRACTION_URL"),
		ExtractionAPIKey: os.Getenv("SUBMITLINK_EXTRACTION_API_KEY"),

		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("SUBMITLINK_S3_ENDPOINT"),
				Bucket:    os.Getenv("SUBMITLINK_S3_BUCKET"),
				Region:    getEnv("SUBMITLINK_S3_REGION", "us-east-1"),
				AccessKey: os.Getenv("SUBMITLINK_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("SUBMITLINK_S3_SECRET_KEY"),
			},
			Prefix:     getEnv("SUBMITLINK_BACKUP_PREFIX", "submitlink"),
			Passphrase: os.Getenv("SUBMITLINK_BACKUP_PASSPHRASE"),
			Interval:   p.hours("SUBMITLINK_BACKUP_INTERVAL_HOURS", 24),
			Retention:  p.days("SUBMITLINK_BACKUP_RETENTION_DAYS", 30),
		},
		CleanupInterval: p.minutes("SUBMITLINK_CLEANUP_INTERVAL_MINUTES", 15),

		VerifyRateLimit: p.integer("SUBMITLINK_VERIFY_RATE_LIMIT", 10),
	}

	if cfg.JWTSecret == "" {
		p.errs = append(p.errs, errors.New("SUBMITLINK_JWT_SECRET is required"))
	}
	if cfg.Engine.MaxVerifyAttempts < 1 {
		p.errs = append(p.errs, errors.New("SUBMITLINK_MAX_VERIFY_ATTEMPTS must be at least 1"))
	}
	if cfg.CleanupInterval <= 0 {
		p.errs = append(p.errs, errors.New("SUBMITLINK_CLEANUP_INTERVAL_MINUTES must be at least 1"))
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a non-negative integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) seconds(key string, fallback int) time.Duration {
	return time.Duration(p.integer(key, fallback)) * time.Second
}

func (p *parser) minutes(key string, fallback int) time.Duration {
	return time.Duration(p.integer(key, fallback)) * time.Minute
}

func (p *parser) hours(key string, fallback int) time.Duration {
	return time.Duration(p.integer(key, fallback)) * time.Hour
}

func (p *parser) days(key string, fallback int) time.Duration {
	return time.Duration(p.integer(key, fallback)) * 24 * time.Hour
}
