package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/submitlink/internal/auth"
	"github.com/dukerupert/submitlink/internal/backup"
	"github.com/dukerupert/submitlink/internal/handler"
	"github.com/dukerupert/submitlink/internal/middleware"
	"github.com/dukerupert/submitlink/internal/submission"
	ws "github.com/dukerupert/submitlink/internal/websocket"
)

// Config is the HTTP surface configuration.
type Config struct {
	Engine         submission.Config
	JWTSecret      string
	AllowedOrigins []string
	Backup         backup.Config
	// Requests per window per client IP on each public verify endpoint.
	VerifyRateLimit  int
	VerifyRateWindow time.Duration
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	engine        *submission.Engine
	staffH        *handler.StaffHandler
	publicH       *handler.PublicHandler
	backupH       *handler.BackupHandler
	staffResolver middleware.StaffResolver
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	cfg           Config
	logger        *slog.Logger
}

// New wires the engine, live feed and backup manager. extractor may be nil.
func New(cfg Config, db *sql.DB, mailer submission.Mailer, extractor submission.Extractor, logger *slog.Logger) *Server {
	if cfg.VerifyRateLimit <= 0 {
		cfg.VerifyRateLimit = 10
	}
	if cfg.VerifyRateWindow <= 0 {
		cfg.VerifyRateWindow = time.Minute
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	opts := []submission.Option{submission.WithPublisher(hub)}
	if extractor != nil {
		opts = append(opts, submission.WithExtractor(extractor))
	}
	engine := submission.NewEngine(db, mailer, cfg.Engine, logger.With("component", "submission"), opts...)

	backupMgr := backup.NewManager(cfg.Backup, db, logger, backup.WithStatusCallback(func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			At:     time.Now().UTC(),
			Extra: map[string]any{
				"inProgress": s.InProgress,
				"error":      s.Error,
			},
		})
	}))

	return &Server{
		db:            db,
		hub:           hub,
		engine:        engine,
		staffH:        handler.NewStaffHandler(engine, logger.With("component", "staff")),
		publicH:       handler.NewPublicHandler(engine, logger.With("component", "public")),
		backupH:       handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		staffResolver: auth.NewJWTResolver(cfg.JWTSecret),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		cfg:           cfg,
		logger:        logger,
	}
}

// Engine returns the submission engine for background cleanup.
func (s *Server) Engine() *submission.Engine {
	return s.engine
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	staff := middleware.ResolveStaff(s.staffResolver, s.logger.With("component", "staff_auth"))
	staffRoute := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, staff(h))
	}
	staffRoute("POST /api/staff/people/{personId}/submission-link", s.staffH.CreateLink)
	staffRoute("GET /api/staff/people/{personId}/submissions", s.staffH.Search)
	staffRoute("GET /api/staff/people/{personId}/submissions/{submissionId}", s.staffH.Get)
	staffRoute("POST /api/staff/people/{personId}/submissions/{submissionId}/items/{itemId}/review", s.staffH.Review)
	staffRoute("POST /api/staff/people/{personId}/submissions/{submissionId}/close", s.staffH.Close)
	staffRoute("GET /api/staff/backups", s.backupH.List)
	staffRoute("POST /api/staff/backups", s.backupH.Trigger)
	staffRoute("GET /api/staff/events", ws.HandleStaffFeed(s.hub, auth.EnsureStaffAccess, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))

	limited := middleware.RateLimit(s.rateLimiter, middleware.ByIP, s.cfg.VerifyRateLimit, s.cfg.VerifyRateWindow)
	mux.HandleFunc("GET /api/public/submissions/{token}", s.publicH.Get)
	mux.Handle("POST /api/public/submissions/{token}/verify/request", limited(http.HandlerFunc(s.publicH.RequestCode)))
	mux.Handle("POST /api/public/submissions/{token}/verify/confirm", limited(http.HandlerFunc(s.publicH.ConfirmCode)))
	mux.HandleFunc("GET /api/public/submissions/{token}/draft", s.publicH.GetDraft)
	mux.HandleFunc("PUT /api/public/submissions/{token}/draft", s.publicH.UpdateDraft)
	mux.HandleFunc("POST /api/public/submissions/{token}/analyze", s.publicH.Analyze)
	mux.HandleFunc("POST /api/public/submissions/{token}/submit", s.publicH.Submit)

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"wsClients": s.hub.ClientCount(),
		"wsDropped": s.hub.Dropped(),
		"backup":    s.backupManager.Status().State,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
