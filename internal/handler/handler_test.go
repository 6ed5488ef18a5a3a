package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/submitlink/internal/auth"
	"github.com/dukerupert/submitlink/internal/database"
	"github.com/dukerupert/submitlink/internal/middleware"
	"github.com/dukerupert/submitlink/internal/store"
	"github.com/dukerupert/submitlink/internal/submission"
	"github.com/dukerupert/submitlink/internal/token"
)

type captureMailer struct {
	mu    sync.Mutex
	codes []string
	links []string
}

func (m *captureMailer) SendSubmissionLink(_ context.Context, _, url string, _ time.Time) error {
	m.mu.Lock()
	m.links = append(m.links, url)
	m.mu.Unlock()
	return nil
}

func (m *captureMailer) SendVerifyCode(_ context.Context, _, code string, _ time.Time) error {
	m.mu.Lock()
	m.codes = append(m.codes, code)
	m.mu.Unlock()
	return nil
}

func (m *captureMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

type testEnv struct {
	mux      http.Handler
	mailer   *captureMailer
	jwt      *auth.JWTResolver
	personID int64
	staffID  int64
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	token.CodeCost = bcrypt.MinCost

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	email := "ada@example.com"
	person, err := store.NewPersonStore(db).Create(ctx, "Ada Lovelace", &email, now)
	if err != nil {
		t.Fatalf("seed person: %v", err)
	}
	staff, err := store.NewPersonStore(db).Create(ctx, "Grace Staff", nil, now)
	if err != nil {
		t.Fatalf("seed staff: %v", err)
	}

	mailer := &captureMailer{}
	engine := submission.NewEngine(db, mailer, submission.DefaultConfig(), testLogger())
	staffH := NewStaffHandler(engine, testLogger())
	publicH := NewPublicHandler(engine, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /staff/people/{personId}/submission-link", staffH.CreateLink)
	mux.HandleFunc("GET /staff/people/{personId}/submissions", staffH.Search)
	mux.HandleFunc("GET /staff/people/{personId}/submissions/{submissionId}", staffH.Get)
	mux.HandleFunc("POST /staff/people/{personId}/submissions/{submissionId}/items/{itemId}/review", staffH.Review)
	mux.HandleFunc("POST /staff/people/{personId}/submissions/{submissionId}/close", staffH.Close)
	mux.HandleFunc("GET /public/{token}", publicH.Get)
	mux.HandleFunc("POST /public/{token}/verify/request", publicH.RequestCode)
	mux.HandleFunc("POST /public/{token}/verify/confirm", publicH.ConfirmCode)
	mux.HandleFunc("GET /public/{token}/draft", publicH.GetDraft)
	mux.HandleFunc("PUT /public/{token}/draft", publicH.UpdateDraft)
	mux.HandleFunc("POST /public/{token}/analyze", publicH.Analyze)
	mux.HandleFunc("POST /public/{token}/submit", publicH.Submit)

	resolver := auth.NewJWTResolver("test-secret")
	return &testEnv{
		mux:      middleware.ResolveStaff(resolver, testLogger())(mux),
		mailer:   mailer,
		jwt:      resolver,
		personID: person.ID,
		staffID:  staff.ID,
	}
}

func (env *testEnv) staffToken(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := env.jwt.Issue(env.staffID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue staff token: %v", err)
	}
	return tok
}

func (env *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if got := decode[errorBody](t, rec).Error.Code; got != code {
		t.Fatalf("code = %q, want %q", got, code)
	}
}

// issueAndVerify creates a link as staff and completes email verification.
func (env *testEnv) issueAndVerify(t *testing.T) (linkToken, session string) {
	t.Helper()
	staff := env.staffToken(t, auth.RoleHR)
	rec := env.do(t, "POST", fmt.Sprintf("/staff/people/%d/submission-link", env.personID), staff, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create link: status %d: %s", rec.Code, rec.Body.String())
	}
	link := decode[submission.LinkResult](t, rec)

	rec = env.do(t, "POST", "/public/"+link.Token+"/verify/request", "", map[string]string{"email": "ada@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("request code: status %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, "POST", "/public/"+link.Token+"/verify/confirm", "", map[string]string{
		"email": "ada@example.com",
		"code":  env.mailer.lastCode(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm code: status %d: %s", rec.Code, rec.Body.String())
	}
	return link.Token, decode[submission.VerifyConfirmResult](t, rec).PublicSessionToken
}

func TestSubmitAndReviewFlow(t *testing.T) {
	env := setup(t)
	linkToken, session := env.issueAndVerify(t)
	staff := env.staffToken(t, auth.RoleManager)

	rec := env.do(t, "PUT", "/public/"+linkToken+"/draft", session, map[string]any{
		"experiences": []map[string]any{{"title": "Analyst", "organization": "Babbage & Co"}},
		"skills":      []map[string]any{{"name": "Mathematics"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update draft: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "POST", "/public/"+linkToken+"/submit", session, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body.String())
	}
	subID := decode[struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}](t, rec).ID

	rec = env.do(t, "GET", fmt.Sprintf("/staff/people/%d/submissions?status=SUBMITTED", env.personID), staff, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[[]map[string]any](t, rec); len(got) != 1 {
		t.Fatalf("search returned %d, want 1", len(got))
	}

	rec = env.do(t, "GET", fmt.Sprintf("/staff/people/%d/submissions/%d", env.personID, subID), staff, nil)
	details := decode[submission.SubmissionDetails](t, rec)
	if len(details.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(details.Items))
	}

	var expID, skillID int64
	for _, it := range details.Items {
		switch it.ItemType {
		case "EXPERIENCE":
			expID = it.ID
		case "SKILL":
			skillID = it.ID
		}
	}

	reviewPath := func(itemID int64) string {
		return fmt.Sprintf("/staff/people/%d/submissions/%d/items/%d/review", env.personID, subID, itemID)
	}

	rec = env.do(t, "POST", reviewPath(skillID), staff, map[string]string{"decision": "REJECT"})
	expectError(t, rec, http.StatusBadRequest, "REJECTION_COMMENT_REQUIRED")

	rec = env.do(t, "POST", reviewPath(skillID), staff, map[string]string{"decision": "maybe"})
	expectError(t, rec, http.StatusBadRequest, "INVALID_DECISION")

	rec = env.do(t, "POST", reviewPath(skillID), staff, map[string]string{"decision": "REJECT", "comment": "too vague"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: status %d: %s", rec.Code, rec.Body.String())
	}
	if decode[submission.ReviewResult](t, rec).AutoClosed {
		t.Error("submission should stay open while an item is pending")
	}

	rec = env.do(t, "POST", reviewPath(expID), staff, map[string]string{"decision": "ACCEPT"})
	result := decode[submission.ReviewResult](t, rec)
	if !result.AutoClosed || result.AcceptedTargetID == nil {
		t.Errorf("accept result = %+v, want auto-closed with target id", result)
	}

	rec = env.do(t, "POST", reviewPath(expID), staff, map[string]string{"decision": "ACCEPT"})
	expectError(t, rec, http.StatusConflict, "ITEM_ALREADY_RESOLVED")

	rec = env.do(t, "PUT", "/public/"+linkToken+"/draft", session, map[string]any{"skills": []any{}})
	expectError(t, rec, http.StatusConflict, "SUBMISSION_ALREADY_CLOSED")
}

func TestStaffRoutesRequireStaff(t *testing.T) {
	env := setup(t)
	linkPath := fmt.Sprintf("/staff/people/%d/submission-link", env.personID)

	rec := env.do(t, "POST", linkPath, "", nil)
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	forged, _ := auth.NewJWTResolver("other-secret").Issue(env.staffID, auth.RoleAdmin, time.Hour)
	rec = env.do(t, "POST", linkPath, forged, nil)
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = env.do(t, "POST", linkPath, env.staffToken(t, "INTERN"), nil)
	expectError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = env.do(t, "POST", "/staff/people/abc/submission-link", env.staffToken(t, auth.RoleHR), nil)
	expectError(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestCreateLinkCooldownRetryAfter(t *testing.T) {
	env := setup(t)
	staff := env.staffToken(t, auth.RoleAdmin)
	linkPath := fmt.Sprintf("/staff/people/%d/submission-link", env.personID)

	rec := env.do(t, "POST", linkPath, staff, map[string]any{"sendNow": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create link: status %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.mailer.links) != 1 {
		t.Errorf("links mailed = %d, want 1", len(env.mailer.links))
	}

	rec = env.do(t, "POST", linkPath, staff, nil)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	expectError(t, rec, http.StatusTooManyRequests, "LINK_RECOVERY_RATE_LIMITED")
}

func TestPublicErrors(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "GET", "/public/unknown-token", "", nil)
	expectError(t, rec, http.StatusNotFound, "LINK_NOT_FOUND")

	linkToken, session := env.issueAndVerify(t)

	rec = env.do(t, "GET", "/public/"+linkToken+"/draft", "", nil)
	expectError(t, rec, http.StatusUnauthorized, "EMAIL_VERIFY_REQUIRED")

	req := httptest.NewRequest("PUT", "/public/"+linkToken+"/draft", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+session)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusBadRequest, "INVALID_REQUEST")

	rec = env.do(t, "PUT", "/public/"+linkToken+"/draft", session, map[string]any{
		"experiences": []map[string]any{{"organization": "No title"}},
	})
	expectError(t, rec, http.StatusBadRequest, "INVALID_ITEM_PAYLOAD")

	rec = env.do(t, "GET", "/public/"+linkToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public get: status %d", rec.Code)
	}
	if !decode[submission.PublicSubmission](t, rec).EmailRecorded {
		t.Error("expected emailRecorded after verification")
	}
}

func multipartFile(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(data)
	} else {
		mw.WriteField("note", "no file")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestAnalyze(t *testing.T) {
	env := setup(t)
	linkToken, session := env.issueAndVerify(t)

	send := func(field string, data []byte) *httptest.ResponseRecorder {
		body, contentType := multipartFile(t, field, "cv.pdf", data)
		req := httptest.NewRequest("POST", "/public/"+linkToken+"/analyze", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+session)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		return rec
	}

	expectError(t, send("", nil), http.StatusBadRequest, "INVALID_FILE")
	expectError(t, send("file", nil), http.StatusBadRequest, "INVALID_FILE")
	expectError(t, send("file", []byte("%PDF-1.7")), http.StatusServiceUnavailable, "EXTRACTION_UNAVAILABLE")
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	writeError(rec, req, testLogger(), errors.New("database is locked"))

	expectError(t, rec, http.StatusInternalServerError, "INTERNAL")
	if strings.Contains(rec.Body.String(), "locked") {
		t.Error("internal error detail leaked to client")
	}
}
