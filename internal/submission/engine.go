// Package submission implements the public profile submission workflow:
// link issue, email verification, draft editing and staff review.
package submission

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/store"
)

// Config holds the workflow's tunables.
type Config struct {
	LinkTTL              time.Duration
	VerifyCodeTTL        time.Duration
	MaxVerifyAttempts    int
	SessionTTL           time.Duration
	LinkRecoveryCooldown time.Duration
	// PublicURLTemplate is the link URL with a {token} placeholder. Without
	// the placeholder the token is appended.
	PublicURLTemplate string
}

func DefaultConfig() Config {
	return Config{
		LinkTTL:              14 * 24 * time.Hour,
		VerifyCodeTTL:        10 * time.Minute,
		MaxVerifyAttempts:    5,
		SessionTTL:           12 * time.Hour,
		LinkRecoveryCooldown: 60 * time.Second,
		PublicURLTemplate:    "http://localhost:8080/submit/{token}",
	}
}

// Mailer delivers the two outbound messages of the workflow.
type Mailer interface {
	SendSubmissionLink(ctx context.Context, to, url string, expiresAt time.Time) error
	SendVerifyCode(ctx context.Context, to, code string, expiresAt time.Time) error
}

// Importer writes an accepted item into the person's permanent records and
// returns the new record id. It runs inside the review transaction.
type Importer interface {
	Import(ctx context.Context, tx store.DBTX, personID, itemID int64, payload model.ItemPayload, now time.Time) (int64, error)
}

// Extractor turns an uploaded document into draft suggestions.
type Extractor interface {
	Extract(ctx context.Context, filename, contentType string, data []byte) (*model.DraftPayload, error)
}

// Publisher receives workflow events for live staff views.
type Publisher interface {
	Publish(entity, action string, id int64, extra map[string]any)
}

type Option func(*Engine)

func WithImporter(i Importer) Option { return func(e *Engine) { e.importer = i } }

func WithExtractor(x Extractor) Option { return func(e *Engine) { e.extractor = x } }

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

// WithClock overrides time.Now. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.clock = now } }

// Engine runs the workflow. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	db        *sql.DB
	mailer    Mailer
	importer  Importer
	extractor Extractor
	publisher Publisher
	cfg       Config
	clock     func() time.Time
	logger    *slog.Logger
}

func NewEngine(db *sql.DB, mailer Mailer, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		mailer:   mailer,
		importer: ProfileImporter{},
		cfg:      cfg,
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// stores bundles the table stores bound to one transaction.
type stores struct {
	tx          *sql.Tx
	links       *store.LinkStore
	submissions *store.SubmissionStore
	challenges  *store.ChallengeStore
	sessions    *store.SessionStore
	items       *store.ItemStore
	people      *store.PersonStore
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (e *Engine) inTx(ctx context.Context, fn func(s *stores) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	s := &stores{
		tx:          tx,
		links:       store.NewLinkStore(tx),
		submissions: store.NewSubmissionStore(tx),
		challenges:  store.NewChallengeStore(tx),
		sessions:    store.NewSessionStore(tx),
		items:       store.NewItemStore(tx),
		people:      store.NewPersonStore(tx),
	}
	if err := fn(s); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (e *Engine) publish(entity, action string, id int64, extra map[string]any) {
	if e.publisher != nil {
		e.publisher.Publish(entity, action, id, extra)
	}
}

// cleanupGrace keeps expired challenges around long enough for late
// confirmations to see an expiry error rather than a missing challenge.
const cleanupGrace = 24 * time.Hour

// CleanupExpired deletes verification challenges and sessions that expired
// more than a day ago.
func (e *Engine) CleanupExpired(ctx context.Context) (challenges, sessions int64, err error) {
	cutoff := e.now().Add(-cleanupGrace)
	challenges, err = store.NewChallengeStore(e.db).DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	sessions, err = store.NewSessionStore(e.db).DeleteExpired(ctx, cutoff)
	if err != nil {
		return challenges, 0, err
	}
	return challenges, sessions, nil
}
