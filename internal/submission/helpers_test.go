package submission

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/submitlink/internal/database"
	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/store"
	"github.com/dukerupert/submitlink/internal/token"
)

type sentMail struct {
	kind      string
	to        string
	body      string
	expiresAt time.Time
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendSubmissionLink(_ context.Context, to, url string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: "link", to: to, body: url, expiresAt: expiresAt})
	return nil
}

func (m *fakeMailer) SendVerifyCode(_ context.Context, to, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: "code", to: to, body: code, expiresAt: expiresAt})
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == "code" {
			return m.sent[i].body
		}
	}
	t.Fatal("no verification code was mailed")
	return ""
}

type published struct {
	entity, action string
	id             int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(entity, action string, id int64, _ map[string]any) {
	p.mu.Lock()
	p.events = append(p.events, published{entity, action, id})
	p.mu.Unlock()
}

func (p *fakePublisher) has(entity, action string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.entity == entity && e.action == action {
			return true
		}
	}
	return false
}

type fakeExtractor struct {
	result *model.DraftPayload
	calls  int
}

func (x *fakeExtractor) Extract(_ context.Context, _, _ string, _ []byte) (*model.DraftPayload, error) {
	x.calls++
	return x.result, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db        *sql.DB
	engine    *Engine
	mailer    *fakeMailer
	publisher *fakePublisher
	clock     *testClock
	personID  int64
	staffID   int64
}

func setupEngine(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	token.CodeCost = bcrypt.MinCost

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	email := "ada@example.com"
	person, err := store.NewPersonStore(db).Create(ctx, "Ada Lovelace", &email, start)
	if err != nil {
		t.Fatalf("seed person: %v", err)
	}
	staff, err := store.NewPersonStore(db).Create(ctx, "Grace Staff", nil, start)
	if err != nil {
		t.Fatalf("seed staff: %v", err)
	}

	env := &testEnv{
		db:        db,
		mailer:    &fakeMailer{},
		publisher: &fakePublisher{},
		clock:     &testClock{now: start},
		personID:  person.ID,
		staffID:   staff.ID,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	all := append([]Option{WithClock(env.clock.Now), WithPublisher(env.publisher)}, opts...)
	env.engine = NewEngine(db, env.mailer, DefaultConfig(), logger, all...)
	return env
}

// issueLink creates a link without mail and steps past the cooldown.
func (env *testEnv) issueLink(t *testing.T) *LinkResult {
	t.Helper()
	res, err := env.engine.CreateOrRefreshLink(context.Background(), env.personID, env.staffID, LinkRequest{})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	env.clock.Advance(2 * time.Minute)
	return res
}

// verify runs the code flow for the link and returns a session token.
func (env *testEnv) verify(t *testing.T, tok string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.RequestVerifyCode(ctx, tok, "a@b.com"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	res, err := env.engine.ConfirmVerifyCode(ctx, tok, "a@b.com", env.mailer.lastCode(t))
	if err != nil {
		t.Fatalf("confirm code: %v", err)
	}
	return res.PublicSessionToken
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

var errMailDown = errors.New("smtp: connection refused")
